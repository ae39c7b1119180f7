package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Snapshot is the backend's authoritative view of a workflow run.
type Snapshot struct {
	State       State   `json:"state" yaml:"state"`
	Phase       int     `json:"phase" yaml:"phase"`
	TotalPhases int     `json:"total_phases" yaml:"total_phases"`
	PhaseName   *string `json:"phase_name" yaml:"phase_name,omitempty"`
	ProcessID   *int    `json:"process_id" yaml:"process_id,omitempty"`
	Error       *string `json:"error" yaml:"error,omitempty"`
	Activity    string  `json:"activity" yaml:"activity"`

	// Liveness fields the server attaches to every pushed snapshot.
	ClaudeRunning bool    `json:"claudeRunning" yaml:"claude_running"`
	ProcessPID    *int    `json:"processPid" yaml:"process_pid,omitempty"`
	Stalled       bool    `json:"stalled" yaml:"stalled"`
	TimedOut      bool    `json:"timedOut" yaml:"timed_out"`
	LastUpdated   *string `json:"last_updated" yaml:"last_updated,omitempty"`
}

// InitialSnapshot is the state a client holds before the first fetch.
func InitialSnapshot() Snapshot {
	return Snapshot{
		State:    StateReset,
		Activity: "Ready to start",
	}
}

// PhaseLabel renders the phase counter.
func (s Snapshot) PhaseLabel() string {
	if s.TotalPhases == 0 {
		return "No phases"
	}
	if s.PhaseName != nil && *s.PhaseName != "" {
		return fmt.Sprintf("Phase %d of %d: %s", s.Phase, s.TotalPhases, *s.PhaseName)
	}
	return fmt.Sprintf("Phase %d of %d", s.Phase, s.TotalPhases)
}

// ProgressPercent is round(phase/total*100), or 0 without phases.
func (s Snapshot) ProgressPercent() int {
	if s.TotalPhases == 0 {
		return 0
	}
	return int(math.Round(float64(s.Phase) / float64(s.TotalPhases) * 100))
}

// ErrorText returns the error detail, or "".
func (s Snapshot) ErrorText() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// ErrMalformed is wrapped by every DecodePatch failure.
var ErrMalformed = errors.New("malformed snapshot")

// Patch is a partial snapshot. Only the keys present in the decoded document
// are applied by Overlay; an explicit null clears an optional field.
type Patch struct {
	values  Snapshot
	present map[string]bool
}

type fieldCopier func(dst, src *Snapshot)

var patchFields = map[string]fieldCopier{
	"state":         func(d, s *Snapshot) { d.State = s.State },
	"phase":         func(d, s *Snapshot) { d.Phase = s.Phase },
	"total_phases":  func(d, s *Snapshot) { d.TotalPhases = s.TotalPhases },
	"phase_name":    func(d, s *Snapshot) { d.PhaseName = s.PhaseName },
	"process_id":    func(d, s *Snapshot) { d.ProcessID = s.ProcessID },
	"error":         func(d, s *Snapshot) { d.Error = s.Error },
	"activity":      func(d, s *Snapshot) { d.Activity = s.Activity },
	"claudeRunning": func(d, s *Snapshot) { d.ClaudeRunning = s.ClaudeRunning },
	"processPid":    func(d, s *Snapshot) { d.ProcessPID = s.ProcessPID },
	"stalled":       func(d, s *Snapshot) { d.Stalled = s.Stalled },
	"timedOut":      func(d, s *Snapshot) { d.TimedOut = s.TimedOut },
	"last_updated":  func(d, s *Snapshot) { d.LastUpdated = s.LastUpdated },
}

// DecodePatch parses a pushed or fetched snapshot document. Unknown keys are
// ignored. Non-object bodies, type mismatches and state tags outside the
// enumeration are rejected with an error wrapping ErrMalformed.
func DecodePatch(data []byte) (Patch, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Patch{}, fmt.Errorf("%w: body is not a JSON object", ErrMalformed)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Patch{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var p Patch
	if err := json.Unmarshal(trimmed, &p.values); err != nil {
		return Patch{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	p.present = make(map[string]bool, len(raw))
	for key := range raw {
		if _, known := patchFields[key]; known {
			p.present[key] = true
		}
	}

	if p.present["state"] && !p.values.State.Valid() {
		return Patch{}, fmt.Errorf("%w: state must be one of the workflow states", ErrMalformed)
	}
	return p, nil
}

// PatchFromSnapshot builds a patch that carries every field of s.
func PatchFromSnapshot(s Snapshot) Patch {
	p := Patch{values: s, present: make(map[string]bool, len(patchFields))}
	for key := range patchFields {
		p.present[key] = true
	}
	return p
}

// Has reports whether the patch carries key.
func (p Patch) Has(key string) bool {
	return p.present[key]
}

// Keys returns the carried keys in sorted order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p.present))
	for k := range p.present {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// State returns the carried state tag, if any.
func (p Patch) State() (State, bool) {
	if !p.present["state"] {
		return "", false
	}
	return p.values.State, true
}

// Empty reports whether the patch carries no known field.
func (p Patch) Empty() bool {
	return len(p.present) == 0
}

// Overlay returns prev with every field carried by p replaced. prev is not
// modified.
func Overlay(prev Snapshot, p Patch) Snapshot {
	next := prev
	for key := range p.present {
		patchFields[key](&next, &p.values)
	}
	return next
}
