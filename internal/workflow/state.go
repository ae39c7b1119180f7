// Package workflow defines the data model shared by the conductor client:
// the backend's workflow states and their presentation traits, the snapshot
// and patch types pushed over the update channel, and the project, question
// and reference-file records exchanged with the backend.
package workflow

import (
	"encoding/json"
	"fmt"
)

// State is the backend workflow state tag.
type State string

const (
	StateReset         State = "reset"
	StateConfigured    State = "configured"
	StatePlanning      State = "planning"
	StatePlanQuestions State = "plan_questions"
	StatePlanned       State = "planned"
	StateExecuting     State = "executing"
	StateQuestions     State = "questions"
	StateComplete      State = "complete"
	StateError         State = "error"
)

// Tone classifies a state for status indicators.
type Tone int

const (
	ToneNeutral Tone = iota
	ToneSuccess
	ToneWarning
	ToneError
)

func (t Tone) String() string {
	switch t {
	case ToneSuccess:
		return "success"
	case ToneWarning:
		return "warning"
	case ToneError:
		return "error"
	default:
		return "neutral"
	}
}

// Traits is the presentation and guard data attached to a State.
type Traits struct {
	Title       string
	ActionLabel string
	Tone        Tone

	// AutoTransition marks states the backend leaves on its own. The operator
	// can only cancel while in one, and the heartbeat is shown.
	AutoTransition bool

	// ShowConfig marks states in which the project form is editable.
	ShowConfig bool

	// Terminal marks the end of a run.
	Terminal bool

	// Stage is the progress stage highlighted while in this state, or "" if
	// none is.
	Stage State

	// order is the position in the linear progression used by stage
	// completion, -1 if the state is off the main line.
	order int
}

// ShowHeartbeat reports whether staleness should be surfaced.
func (t Traits) ShowHeartbeat() bool {
	return t.AutoTransition
}

var states = []State{
	StateReset,
	StateConfigured,
	StatePlanning,
	StatePlanQuestions,
	StatePlanned,
	StateExecuting,
	StateQuestions,
	StateComplete,
	StateError,
}

var traits = map[State]Traits{
	StateReset: {
		Title:       "Ready to Start",
		ActionLabel: "Generate Plan",
		Tone:        ToneNeutral,
		ShowConfig:  true,
		Stage:       StateReset,
		order:       0,
	},
	StateConfigured: {
		Title:       "Ready to Generate Plan",
		ActionLabel: "Generate Plan",
		Tone:        ToneNeutral,
		ShowConfig:  true,
		Stage:       StateConfigured,
		order:       1,
	},
	StatePlanning: {
		Title:          "Generating Plan...",
		ActionLabel:    "Planning...",
		Tone:           ToneWarning,
		AutoTransition: true,
		Stage:          StatePlanning,
		order:          2,
	},
	StatePlanQuestions: {
		Title:       "Questions About Your Project",
		ActionLabel: "Action",
		Tone:        ToneNeutral,
		order:       -1,
	},
	StatePlanned: {
		Title:       "Plan Ready",
		ActionLabel: "Execute Plan",
		Tone:        ToneSuccess,
		Stage:       StatePlanning,
		order:       3,
	},
	StateExecuting: {
		Title:          "Executing...",
		ActionLabel:    "Executing...",
		Tone:           ToneWarning,
		AutoTransition: true,
		Stage:          StateExecuting,
		order:          4,
	},
	StateQuestions: {
		Title:       "Questions Pending",
		ActionLabel: "Submit Answers",
		Tone:        ToneWarning,
		Stage:       StateExecuting,
		order:       -1,
	},
	StateComplete: {
		Title:       "Project Complete!",
		ActionLabel: "Start New Project",
		Tone:        ToneSuccess,
		Terminal:    true,
		Stage:       StateComplete,
		order:       5,
	},
	StateError: {
		Title:       "Error Occurred",
		ActionLabel: "Retry",
		Tone:        ToneError,
		order:       -1,
	},
}

// States returns every state in progression order.
func States() []State {
	out := make([]State, len(states))
	copy(out, states)
	return out
}

// Valid reports whether s is one of the enumerated states.
func (s State) Valid() bool {
	_, ok := traits[s]
	return ok
}

// Traits returns the table row for s. Unknown states get a neutral row.
func (s State) Traits() Traits {
	if t, ok := traits[s]; ok {
		return t
	}
	return Traits{Title: "Unknown State", ActionLabel: "Action", order: -1}
}

// Busy reports whether the backend is working on its own in this state.
func (s State) Busy() bool {
	return s.Traits().AutoTransition
}

func (s State) String() string {
	return string(s)
}

// ParseState validates a raw tag.
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown workflow state %q", raw)
	}
	return s, nil
}

// UnmarshalJSON rejects tags outside the enumeration. JSON null leaves the
// value untouched.
func (s *State) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("state must be a string: %w", err)
	}
	parsed, err := ParseState(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
