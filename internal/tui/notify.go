package tui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/thruflo/conductor/internal/workflow"
)

// Bell is the terminal bell character.
const Bell = "\a"

// Notifier alerts the operator when the workflow needs attention.
// In the foreground it rings the terminal bell, otherwise it uses
// OS-native notifications.
type Notifier struct {
	out io.Writer
}

// NewNotifier creates a Notifier that writes the bell to out.
func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

// Bell writes the terminal bell character to output.
func (n *Notifier) Bell() {
	fmt.Fprint(n.out, Bell)
}

// NotifyOS sends an OS-native notification.
// On macOS, this uses osascript to display a notification.
// On other platforms, this is a no-op.
func (n *Notifier) NotifyOS(title, message string) error {
	if runtime.GOOS != "darwin" {
		return nil
	}
	return notifyMacOS(title, message)
}

// NotifyAttention rings the bell when isForeground, otherwise it sends an
// OS notification.
func (n *Notifier) NotifyAttention(title, message string, isForeground bool) error {
	if isForeground {
		n.Bell()
		return nil
	}
	return n.NotifyOS(title, message)
}

func notifyMacOS(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// NotificationReason represents why a notification is being sent.
type NotificationReason int

const (
	NotifyReasonNone NotificationReason = iota
	NotifyReasonNeedsInput
	NotifyReasonPlanReady
	NotifyReasonDone
	NotifyReasonStalled
	NotifyReasonCrash
)

// String returns a human-readable title for the notification reason.
func (r NotificationReason) String() string {
	switch r {
	case NotifyReasonNeedsInput:
		return "Input Required"
	case NotifyReasonPlanReady:
		return "Plan Ready"
	case NotifyReasonDone:
		return "Completed"
	case NotifyReasonStalled:
		return "Stalled"
	case NotifyReasonCrash:
		return "Error"
	default:
		return "Conductor"
	}
}

// DefaultMessage returns a default notification message for the reason.
func (r NotificationReason) DefaultMessage(project string) string {
	if project == "" {
		project = "The project"
	}
	switch r {
	case NotifyReasonNeedsInput:
		return fmt.Sprintf("%s needs your answers", project)
	case NotifyReasonPlanReady:
		return fmt.Sprintf("%s has a plan ready to execute", project)
	case NotifyReasonDone:
		return fmt.Sprintf("%s finished executing", project)
	case NotifyReasonStalled:
		return fmt.Sprintf("%s has stopped making progress", project)
	case NotifyReasonCrash:
		return fmt.Sprintf("%s hit an error", project)
	default:
		return fmt.Sprintf("%s needs attention", project)
	}
}

// ReasonFor classifies the change from prev to next. It returns
// NotifyReasonNone when the change is not worth an alert.
func ReasonFor(prev, next workflow.Snapshot) NotificationReason {
	if next.State != prev.State {
		switch next.State {
		case workflow.StateQuestions, workflow.StatePlanQuestions:
			return NotifyReasonNeedsInput
		case workflow.StatePlanned:
			if prev.State == workflow.StatePlanning {
				return NotifyReasonPlanReady
			}
		case workflow.StateComplete:
			return NotifyReasonDone
		case workflow.StateError:
			return NotifyReasonCrash
		}
		return NotifyReasonNone
	}
	if next.Stalled && !prev.Stalled {
		return NotifyReasonStalled
	}
	return NotifyReasonNone
}

// NotifyForReason sends a notification for the given reason.
func (n *Notifier) NotifyForReason(reason NotificationReason, project string, isForeground bool) error {
	title := "conductor: " + reason.String()
	return n.NotifyAttention(title, reason.DefaultMessage(project), isForeground)
}
