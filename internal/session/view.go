package session

import (
	"strings"

	"github.com/thruflo/conductor/internal/heartbeat"
	"github.com/thruflo/conductor/internal/workflow"
)

// ConnectionStatus mirrors the update channel's connectivity.
type ConnectionStatus struct {
	Connected         bool
	ReconnectAttempts int
}

// View is an immutable copy of the session record. Presentation code derives
// every label and guard from a View and never reads the Client directly.
type View struct {
	State              workflow.Snapshot
	Connection         ConnectionStatus
	Config             workflow.ProjectConfig
	ConfigExpanded     bool
	NoReferenceFiles   bool
	References         []workflow.ReferenceFile
	Questions          []workflow.Question
	System             workflow.SystemStatus
	SystemChecked      bool
	Busy               bool
	SecondsSinceUpdate int
}

// CanPerformAction reports whether the primary action is offerable.
func CanPerformAction(state workflow.State, busy bool, cfg workflow.ProjectConfig, refCount int, noReferenceFiles bool) bool {
	if busy || state.Busy() {
		return false
	}
	if state == workflow.StateReset || state == workflow.StateConfigured {
		if strings.TrimSpace(cfg.ProjectName) == "" || strings.TrimSpace(cfg.ProjectDescription) == "" {
			return false
		}
		return refCount > 0 || noReferenceFiles
	}
	return true
}

// CanCancel reports whether a running operation can be cancelled.
func CanCancel(state workflow.State) bool {
	return state.Busy()
}

// CanReset reports whether a full project reset is offerable.
func CanReset(state workflow.State, busy bool) bool {
	return !busy && !state.Busy() && state != workflow.StateReset
}

func (v View) CanPerformAction() bool {
	return CanPerformAction(v.State.State, v.Busy, v.Config, len(v.References), v.NoReferenceFiles)
}

func (v View) CanCancel() bool {
	return CanCancel(v.State.State)
}

func (v View) CanReset() bool {
	return CanReset(v.State.State, v.Busy)
}

func (v View) StatusTitle() string {
	return v.State.State.Traits().Title
}

// ActionLabel is the primary button text.
func (v View) ActionLabel() string {
	if v.Busy {
		return "Working..."
	}
	return v.State.State.Traits().ActionLabel
}

func (v View) StatusTone() workflow.Tone {
	return v.State.State.Traits().Tone
}

func (v View) PhaseLabel() string {
	return v.State.PhaseLabel()
}

func (v View) ProgressPercent() int {
	return v.State.ProgressPercent()
}

// ShowHeartbeat reports whether the staleness hint is shown.
func (v View) ShowHeartbeat() bool {
	return v.State.State.Traits().ShowHeartbeat()
}

func (v View) HeartbeatText() string {
	return heartbeat.Text(v.SecondsSinceUpdate)
}

func (v View) HeartbeatLevel() heartbeat.Level {
	return heartbeat.LevelFor(v.SecondsSinceUpdate)
}

// ShowConfig reports whether the project form is editable.
func (v View) ShowConfig() bool {
	return v.State.State.Traits().ShowConfig
}

func (v View) ShowPlanQuestions() bool {
	return v.State.State == workflow.StatePlanQuestions
}

func (v View) ShowQuestions() bool {
	return v.State.State == workflow.StateQuestions && len(v.Questions) > 0
}

func (v View) StageComplete(stage workflow.State) bool {
	return workflow.StageComplete(v.State.State, stage)
}

func (v View) StageActive(stage workflow.State) bool {
	return workflow.StageActive(v.State.State, stage)
}
