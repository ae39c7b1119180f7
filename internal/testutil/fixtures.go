package testutil

import "github.com/thruflo/conductor/internal/workflow"

// SampleDescription is a project description long enough to wrap.
const SampleDescription = `Build an internal directory of every office, with floor plans,
desk bookings and an export for facilities. Start with the London and
Lisbon sites.`

// SampleQuestions returns the questions an execution typically stops on.
// Returns a new slice each time to prevent test interference.
func SampleQuestions() []workflow.Question {
	return []workflow.Question{
		{Number: 1, Topic: "Exports", Text: "Which formats?"},
		{Number: 2, Topic: "Auth", Text: "SSO needed?"},
		{Number: 3, Topic: "Scope", Text: "Should meeting rooms be bookable too?"},
	}
}

// SampleProjectConfig returns a complete project form.
func SampleProjectConfig() workflow.ProjectConfig {
	cfg := workflow.DefaultProjectConfig()
	cfg.ProjectName = "Atlas"
	cfg.ProjectDescription = SampleDescription
	return cfg
}

// SampleReferences returns a reference folder listing.
func SampleReferences() []workflow.ReferenceFile {
	return []workflow.ReferenceFile{
		{Name: "brief.pdf", Size: 48_213},
		{Name: "floorplans", IsDir: true},
		{Name: "offices.csv", Size: 1_024},
	}
}

// SampleSnapshot returns a snapshot in state s with the fields the backend
// sets for it.
func SampleSnapshot(s workflow.State) workflow.Snapshot {
	snap := workflow.InitialSnapshot()
	snap.State = s
	stamp := "2026-03-14T09:26:53Z"
	snap.LastUpdated = &stamp

	switch s {
	case workflow.StatePlanned:
		snap.Phase, snap.TotalPhases = 1, 3
		snap.Activity = "Plan generated with 3 phase(s). Ready to execute!"
	case workflow.StateExecuting, workflow.StateQuestions:
		name := "Desk bookings"
		snap.Phase, snap.TotalPhases, snap.PhaseName = 2, 3, &name
		snap.Activity = "Executing phase 2..."
		if s == workflow.StateQuestions {
			snap.Activity = "Claude has questions for you"
		}
	case workflow.StateComplete:
		snap.Phase, snap.TotalPhases = 3, 3
		snap.Activity = "Execution complete!"
	case workflow.StateError:
		msg := "claude exited with status 1"
		snap.Error = &msg
		snap.Activity = "An error occurred"
	}
	if s.Busy() {
		pid := 4242
		snap.ClaudeRunning = true
		snap.ProcessPID = &pid
	}
	return snap
}
