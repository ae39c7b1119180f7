package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thruflo/conductor/internal/session"
	"github.com/thruflo/conductor/internal/workflow"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the workflow state",
	Long: `Shows the current workflow state, phase progress, the project form and
the reference files known to the backend.

Example:
  conductor status
  conductor status --output json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(statusCmd)
}

// statusReport is the machine-readable status.
type statusReport struct {
	State      workflow.Snapshot        `json:"workflow" yaml:"workflow"`
	Title      string                   `json:"title" yaml:"title"`
	Progress   int                      `json:"progress" yaml:"progress"`
	Action     string                   `json:"action" yaml:"action"`
	Offerable  bool                     `json:"actionAvailable" yaml:"action_available"`
	Project    workflow.ProjectConfig   `json:"project" yaml:"project"`
	References []workflow.ReferenceFile `json:"references" yaml:"references"`
	System     *workflow.SystemStatus   `json:"system,omitempty" yaml:"system,omitempty"`
}

func newStatusReport(v session.View) statusReport {
	r := statusReport{
		State:      v.State,
		Title:      v.StatusTitle(),
		Progress:   v.ProgressPercent(),
		Action:     v.ActionLabel(),
		Offerable:  v.CanPerformAction(),
		Project:    v.Config,
		References: v.References,
	}
	if r.References == nil {
		r.References = []workflow.ReferenceFile{}
	}
	if v.SystemChecked {
		sys := v.System
		r.System = &sys
	}
	return r
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(statusOutput)
	if format != "text" && format != "json" && format != "yaml" {
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", statusOutput)
	}

	sess, err := startSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	return writeStatus(cmd.OutOrStdout(), format, sess.View())
}

func writeStatus(w io.Writer, format string, v session.View) error {
	report := newStatusReport(v)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		return enc.Close()
	}

	s := v.State
	fmt.Fprintf(w, "State:     %s (%s)\n", v.StatusTitle(), s.State)
	if s.TotalPhases > 0 {
		fmt.Fprintf(w, "Progress:  %s (%d%%)\n", v.PhaseLabel(), v.ProgressPercent())
	}
	if s.Activity != "" {
		fmt.Fprintf(w, "Activity:  %s\n", s.Activity)
	}
	if s.Error != nil && *s.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", *s.Error)
	}
	if s.ClaudeRunning {
		pid := "unknown"
		if s.ProcessPID != nil {
			pid = fmt.Sprint(*s.ProcessPID)
		}
		fmt.Fprintf(w, "Agent:     running (pid %s)\n", pid)
	}
	if s.Stalled {
		fmt.Fprintln(w, "Warning:   the process looks stalled")
	}
	if s.TimedOut {
		fmt.Fprintln(w, "Warning:   the process timed out")
	}
	if s.LastUpdated != nil {
		fmt.Fprintf(w, "Updated:   %s\n", *s.LastUpdated)
	}

	fmt.Fprintln(w)
	name := v.Config.ProjectName
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "Project:   %s\n", name)
	if v.Config.ProjectDescription != "" {
		fmt.Fprintf(w, "           %s\n", firstLine(v.Config.ProjectDescription))
	}
	fmt.Fprintf(w, "Model:     %s\n", v.Config.DefaultModel)
	fmt.Fprintf(w, "Files:     %d reference file(s)\n", len(v.References))

	if v.SystemChecked && !v.System.Ready() {
		fmt.Fprintln(w)
		switch {
		case v.System.Error != "":
			fmt.Fprintf(w, "Agent check failed: %s\n", v.System.Error)
		case !v.System.Installed:
			fmt.Fprintln(w, "The agent CLI is not installed on the server.")
		default:
			fmt.Fprintln(w, "The agent CLI is not logged in on the server.")
		}
	}

	if label := v.ActionLabel(); label != "" {
		fmt.Fprintln(w)
		if v.CanPerformAction() {
			fmt.Fprintf(w, "Next: %s (conductor act)\n", label)
		} else if hint := notOfferableReason(v); hint != "" {
			fmt.Fprintf(w, "Next: %s (%s)\n", label, hint)
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
