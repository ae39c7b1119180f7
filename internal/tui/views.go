package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/thruflo/conductor/internal/session"
	"github.com/thruflo/conductor/internal/workflow"
)

// renderHeader renders the title line with the connection indicator.
func renderHeader(v session.View, spin string, width int) string {
	title := ToneStyle(v.StatusTone()).Render(v.StatusTitle())
	if v.Busy || v.State.State.Busy() {
		title = spin + " " + title
	}
	left := accentStyle.Render("conductor") + mutedStyle.Render(" │ ") + title

	right := renderConnection(v.Connection)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", gap) + right
}

func renderConnection(c session.ConnectionStatus) string {
	switch {
	case c.Connected:
		return lipgloss.NewStyle().Foreground(colorSuccess).Render("● live")
	case c.ReconnectAttempts > 0:
		return lipgloss.NewStyle().Foreground(colorWarning).
			Render(fmt.Sprintf("○ reconnecting (%d)", c.ReconnectAttempts))
	default:
		return mutedStyle.Render("○ offline")
	}
}

// renderStages renders the progress stages on one line.
func renderStages(v session.View) string {
	var parts []string
	for _, st := range workflow.Stages() {
		switch {
		case v.StageActive(st.ID):
			parts = append(parts, accentStyle.Render("▶ "+st.Label))
		case v.StageComplete(st.ID):
			parts = append(parts, lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ "+st.Label))
		default:
			parts = append(parts, mutedStyle.Render("· "+st.Label))
		}
	}
	return strings.Join(parts, mutedStyle.Render("  ─  "))
}

// renderProgress renders the phase label and bar, or nothing without phases.
func renderProgress(v session.View, bar progress.Model) string {
	if v.State.TotalPhases == 0 {
		return ""
	}
	return v.PhaseLabel() + "\n" + bar.ViewAs(float64(v.ProgressPercent())/100)
}

// renderActivity renders the activity line and liveness hints.
func renderActivity(v session.View, width int) []string {
	lines := WrapText(v.State.Activity, width)
	if v.ShowHeartbeat() {
		lines = append(lines, HeartbeatStyle(v.HeartbeatLevel()).Render(v.HeartbeatText()))
	}
	if v.State.Stalled {
		lines = append(lines, noteStyle.Render("The process looks stalled."))
	}
	if v.State.TimedOut {
		lines = append(lines, noteStyle.Render("The process timed out."))
	}
	if v.State.Error != nil && *v.State.Error != "" {
		for _, l := range WrapText("Error: "+*v.State.Error, width) {
			lines = append(lines, errorStyle.Render(l))
		}
	}
	return lines
}

// renderSystem renders a warning when the agent cannot run.
func renderSystem(v session.View) string {
	if !v.SystemChecked || v.System.Ready() {
		return ""
	}
	switch {
	case v.System.Error != "":
		return errorStyle.Render("Agent check failed: " + v.System.Error)
	case !v.System.Installed:
		return errorStyle.Render("The agent CLI is not installed on the server.")
	default:
		return errorStyle.Render("The agent CLI is not logged in on the server.")
	}
}

// renderProject renders the project form summary.
func renderProject(v session.View, width int) []string {
	cfg := v.Config
	name := cfg.ProjectName
	if name == "" {
		name = mutedStyle.Render("(unnamed)")
	}
	if !v.ConfigExpanded || !v.ShowConfig() {
		return []string{titleStyle.Render("Project: ") + name}
	}

	lines := []string{
		titleStyle.Render("Project: ") + name,
		titleStyle.Render("Model: ") + cfg.DefaultModel,
		titleStyle.Render("Planning questions: ") + yesNo(cfg.AllowPlanningQuestions),
	}
	desc := cfg.ProjectDescription
	if desc == "" {
		lines = append(lines, mutedStyle.Render("No description yet. Press e to edit."))
	} else {
		lines = append(lines, Indent(WrapText(desc, width-2), 2)...)
	}
	return lines
}

// renderReferences renders the reference file listing.
func renderReferences(v session.View, width int) []string {
	if len(v.References) == 0 {
		if v.NoReferenceFiles {
			return []string{mutedStyle.Render("Reference files: none needed")}
		}
		return []string{mutedStyle.Render("Reference files: none uploaded (press n if none are needed)")}
	}
	lines := []string{titleStyle.Render(fmt.Sprintf("Reference files (%d)", len(v.References)))}
	nameWidth := width - 14
	if nameWidth < 10 {
		nameWidth = 10
	}
	for _, f := range v.References {
		size := HumanSize(f.Size)
		if f.IsDir {
			size = "dir"
		}
		lines = append(lines, "  "+PadOrTruncate(f.Name, nameWidth)+" "+mutedStyle.Render(size))
	}
	return lines
}

// renderQuestions renders the pending questions. focus is the index being
// answered, or -1.
func renderQuestions(v session.View, width, focus int, input string) []string {
	lines := []string{titleStyle.Render(fmt.Sprintf("Questions (%d)", len(v.Questions)))}
	for i, q := range v.Questions {
		head := fmt.Sprintf("%d. [%s] ", q.Number, q.Topic)
		text := WrapText(q.Text, width-len(head))
		if len(text) == 0 {
			text = []string{""}
		}
		marker := "  "
		if i == focus {
			marker = accentStyle.Render("▶ ")
		}
		lines = append(lines, marker+head+text[0])
		lines = append(lines, Indent(text[1:], 2+len(head))...)

		switch {
		case i == focus:
			lines = append(lines, "     "+input)
		case strings.TrimSpace(q.Answer) == "":
			lines = append(lines, "     "+mutedStyle.Render(workflow.NoAnswerPlaceholder))
		default:
			for _, l := range WrapText(q.Answer, width-5) {
				lines = append(lines, "     "+lipgloss.NewStyle().Foreground(colorSuccess).Render(l))
			}
		}
	}
	return lines
}

// renderPlanQuestions renders the prompt shown while planning questions are
// pending.
func renderPlanQuestions(width int) []string {
	return WrapText("The planner has questions. Answer them in the questions file, "+
		"then press enter to refine the plan or s to let it assume defaults.", width)
}

// renderAction renders the primary action button.
func renderAction(v session.View) string {
	label := v.ActionLabel()
	if label == "" {
		return ""
	}
	style := lipgloss.NewStyle().Padding(0, 2).Bold(true)
	if v.CanPerformAction() {
		style = style.Foreground(lipgloss.Color("#FFFFFF")).Background(colorAccent)
	} else {
		style = style.Foreground(colorMuted)
	}
	return style.Render(label)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
