package server

import (
	"fmt"
	"net/http"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/thruflo/conductor/internal/workflow"
)

// DefaultPhases is the number of phases a generated plan has.
const DefaultPhases = 3

// Rejection is a command refused by the engine. It is rendered as
// {"success": false, "error": Message} with Status.
type Rejection struct {
	Status  int
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%d: %s", r.Status, r.Message)
}

func reject(status int, format string, args ...any) *Rejection {
	return &Rejection{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Engine is the backend's workflow state machine. Commands move it between
// states the way the real backend does when its agent process starts and
// exits; Advance stands in for the process finishing a step.
type Engine struct {
	mu       sync.Mutex
	now      func() time.Time
	phases   int
	state    workflow.Snapshot
	previous workflow.State
	config   workflow.ProjectConfig
	saved    bool
	system   workflow.SystemStatus

	questions     []workflow.Question
	planQuestions bool
	answers       map[string]string

	references []workflow.ReferenceFile
	archived   []string
	archives   []workflow.Archive

	calls    []string
	opened   []string
	failures map[string]*Rejection

	onChange func(workflow.Snapshot)
}

// NewEngine creates an engine in the reset state.
func NewEngine(phases int) *Engine {
	if phases <= 0 {
		phases = DefaultPhases
	}
	return &Engine{
		now:      time.Now,
		phases:   phases,
		state:    workflow.InitialSnapshot(),
		previous: workflow.StateReset,
		config:   workflow.DefaultProjectConfig(),
		system: workflow.SystemStatus{
			Installed: true,
			Version:   "1.0.0 (mock)",
			LoggedIn:  true,
			Email:     "operator@example.com",
		},
		answers:  make(map[string]string),
		failures: make(map[string]*Rejection),
	}
}

// OnChange registers a function called with every new snapshot. It runs
// after the engine lock is released.
func (e *Engine) OnChange(fn func(workflow.Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() workflow.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetState replaces the snapshot, for tests and demos.
func (e *Engine) SetState(s workflow.Snapshot) {
	e.mutate(func() *Rejection {
		e.state = s
		return nil
	})
}

// AskQuestions moves an execution into the questions state.
func (e *Engine) AskQuestions(qs []workflow.Question) {
	e.mutate(func() *Rejection {
		e.questions = append([]workflow.Question(nil), qs...)
		e.transition(workflow.StateQuestions, "Claude has questions for you")
		return nil
	})
}

// EnablePlanQuestions makes the next plan generation stop in
// plan_questions.
func (e *Engine) EnablePlanQuestions(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.planQuestions = on
}

// Fail makes the next call to op be rejected with status and message.
func (e *Engine) Fail(op string, status int, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[op] = &Rejection{Status: status, Message: message}
}

// Calls returns the commands received so far, in order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// Answers returns the last submitted answers.
func (e *Engine) Answers() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.answers))
	for k, v := range e.answers {
		out[k] = v
	}
	return out
}

// Opened returns the targets opened so far.
func (e *Engine) Opened() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.opened...)
}

// mutate runs fn under the lock and publishes the resulting snapshot.
func (e *Engine) mutate(fn func() *Rejection) *Rejection {
	e.mu.Lock()
	before := e.state
	rej := fn()
	after := e.state
	onChange := e.onChange
	e.mu.Unlock()

	if rej == nil && onChange != nil && after != before {
		onChange(after)
	}
	return rej
}

// command records op and applies the scripted failure if there is one.
func (e *Engine) command(op string, fn func() *Rejection) *Rejection {
	return e.mutate(func() *Rejection {
		e.calls = append(e.calls, op)
		if rej, ok := e.failures[op]; ok {
			delete(e.failures, op)
			return rej
		}
		return fn()
	})
}

func (e *Engine) transition(to workflow.State, activity string) {
	if to == workflow.StateError {
		e.previous = e.state.State
	}
	e.state.State = to
	e.state.Activity = activity
	e.state.Stalled = false
	e.state.TimedOut = false
	e.state.ClaudeRunning = to.Busy()
	if to.Busy() {
		pid := 4242
		e.state.ProcessPID = &pid
	} else {
		e.state.ProcessPID = nil
	}
	stamp := e.now().Format(time.RFC3339)
	e.state.LastUpdated = &stamp
}

func (e *Engine) setPhase(phase int) {
	e.state.Phase = phase
	e.state.TotalPhases = e.phases
	name := fmt.Sprintf("Phase %d work", phase)
	e.state.PhaseName = &name
}

// Advance simulates the running process finishing its current step:
// planning produces a plan (or planning questions), executing moves to the
// next phase and finally to complete. Other states are left alone. It
// reports whether anything changed.
func (e *Engine) Advance() bool {
	changed := false
	e.mutate(func() *Rejection {
		switch e.state.State {
		case workflow.StatePlanning:
			if e.planQuestions {
				e.planQuestions = false
				e.transition(workflow.StatePlanQuestions, "Claude has questions about the plan")
			} else {
				e.setPhase(1)
				e.transition(workflow.StatePlanned, fmt.Sprintf("Plan generated with %d phase(s). Ready to execute!", e.phases))
			}
			changed = true
		case workflow.StateExecuting:
			if e.state.Phase < e.phases {
				e.setPhase(e.state.Phase + 1)
				e.transition(workflow.StateExecuting, fmt.Sprintf("Executing phase %d...", e.state.Phase))
			} else {
				e.transition(workflow.StateComplete, "Execution complete!")
			}
			changed = true
		}
		return nil
	})
	return changed
}

// Crash moves the workflow into the error state.
func (e *Engine) Crash(message string) {
	e.mutate(func() *Rejection {
		e.transition(workflow.StateError, "An error occurred")
		e.state.Error = &message
		return nil
	})
}

// Stall flags the running process as stalled without changing state.
func (e *Engine) Stall() {
	e.mutate(func() *Rejection {
		e.state.Stalled = true
		return nil
	})
}

func (e *Engine) Config() (workflow.ProjectConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config, e.saved
}

func (e *Engine) SaveConfig(cfg workflow.ProjectConfig) *Rejection {
	return e.command("save-config", func() *Rejection {
		e.config = cfg
		e.saved = true
		if e.state.State == workflow.StateReset {
			e.transition(workflow.StateConfigured, "Project configured. Ready to generate plan.")
		}
		return nil
	})
}

func (e *Engine) System() workflow.SystemStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.system
}

func (e *Engine) GeneratePlan() *Rejection {
	return e.command("generate-plan", func() *Rejection {
		if e.state.State.Busy() {
			return reject(http.StatusBadRequest, "Claude is already running")
		}
		e.state.Phase, e.state.TotalPhases, e.state.PhaseName = 0, 0, nil
		e.transition(workflow.StatePlanning, "Generating plan...")
		return nil
	})
}

func (e *Engine) RefinePlan(skipped bool) *Rejection {
	return e.command("refine-plan", func() *Rejection {
		if e.state.State != workflow.StatePlanQuestions {
			return reject(http.StatusBadRequest, "No planning questions pending")
		}
		activity := "Refining plan with your answers..."
		if skipped {
			activity = "Refining plan with assumptions..."
		}
		e.transition(workflow.StatePlanning, activity)
		return nil
	})
}

func (e *Engine) ExecutePlan() *Rejection {
	return e.command("execute", func() *Rejection {
		if e.state.State.Busy() {
			return reject(http.StatusBadRequest, "Claude is already running")
		}
		if e.state.State != workflow.StatePlanned {
			return reject(http.StatusBadRequest, "No plan to execute")
		}
		e.setPhase(1)
		e.transition(workflow.StateExecuting, "Executing plan...")
		return nil
	})
}

func (e *Engine) ContinueExecution() *Rejection {
	return e.command("continue", func() *Rejection {
		if e.state.State.Busy() {
			return reject(http.StatusBadRequest, "Claude is already running")
		}
		e.transition(workflow.StateExecuting, "Continuing execution...")
		return nil
	})
}

func (e *Engine) Cancel() *Rejection {
	return e.command("cancel", func() *Rejection {
		switch e.state.State {
		case workflow.StatePlanning:
			e.transition(workflow.StateConfigured, "Plan generation cancelled.")
		case workflow.StateExecuting, workflow.StateQuestions:
			e.transition(workflow.StatePlanned, "Execution cancelled. You can restart when ready.")
		}
		return nil
	})
}

func (e *Engine) Retry() *Rejection {
	return e.command("retry", func() *Rejection {
		if e.state.State != workflow.StateError {
			return reject(http.StatusBadRequest, "Can only retry from error state")
		}
		e.state.Error = nil
		e.transition(e.previous, fmt.Sprintf("Retrying from %s state...", e.previous))
		return nil
	})
}

func (e *Engine) ResetState() *Rejection {
	return e.command("reset-state", func() *Rejection {
		e.state = workflow.InitialSnapshot()
		return nil
	})
}

func (e *Engine) ResetProject(projectName string) (workflow.ResetResult, *Rejection) {
	var res workflow.ResetResult
	rej := e.command("reset", func() *Rejection {
		if projectName == "" {
			projectName = "project"
		}
		now := e.now()
		name := fmt.Sprintf("%s_%s", projectName, now.Format("20060102_150405"))
		e.archives = append(e.archives, workflow.Archive{
			Name:    name,
			Date:    now.Format("2006-01-02"),
			Time:    now.Format("15:04:05"),
			Project: projectName,
		})
		e.state = workflow.InitialSnapshot()
		e.config = workflow.DefaultProjectConfig()
		e.saved = false
		e.questions = nil
		e.references = nil
		res = workflow.ResetResult{
			Archived:    true,
			ArchivePath: path.Join("archive", name),
			Message:     "Project archived and reset",
		}
		return nil
	})
	return res, rej
}

func (e *Engine) Questions() workflow.QuestionSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs := append([]workflow.Question(nil), e.questions...)
	return workflow.QuestionSet{HasQuestions: len(qs) > 0, Questions: qs, Count: len(qs)}
}

func (e *Engine) SubmitAnswers(answers map[string]string) *Rejection {
	return e.command("answer", func() *Rejection {
		if len(e.questions) == 0 {
			return reject(http.StatusOK, "Questions file not found")
		}
		e.answers = answers
		e.questions = nil
		return nil
	})
}

func (e *Engine) SkipQuestions() *Rejection {
	return e.command("skip", func() *Rejection {
		if len(e.questions) == 0 {
			return reject(http.StatusOK, "Questions file not found")
		}
		e.answers = map[string]string{}
		e.questions = nil
		return nil
	})
}

func (e *Engine) References() []workflow.ReferenceFile {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]workflow.ReferenceFile(nil), e.references...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddReference stores a reference file, replacing one with the same name.
func (e *Engine) AddReference(f workflow.ReferenceFile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addReference(f)
}

func (e *Engine) addReference(f workflow.ReferenceFile) {
	for i := range e.references {
		if e.references[i].Name == f.Name {
			e.references[i] = f
			return
		}
	}
	e.references = append(e.references, f)
}

func (e *Engine) UploadReferences(files []workflow.ReferenceFile) ([]string, *Rejection) {
	var names []string
	rej := e.command("upload", func() *Rejection {
		if len(files) == 0 {
			return reject(http.StatusBadRequest, "No files provided")
		}
		for _, f := range files {
			e.addReference(f)
			names = append(names, f.Name)
		}
		return nil
	})
	return names, rej
}

func (e *Engine) ArchiveReferences() (workflow.ArchiveResult, *Rejection) {
	var res workflow.ArchiveResult
	rej := e.command("archive-references", func() *Rejection {
		if len(e.references) == 0 {
			return reject(http.StatusOK, "No files to archive")
		}
		for _, f := range e.references {
			res.Archived = append(res.Archived, f.Name)
		}
		e.archived = append(e.archived, res.Archived...)
		e.references = nil
		res.ArchivePath = path.Join("references", "archive", e.now().Format("20060102_150405"))
		return nil
	})
	return res, rej
}

func (e *Engine) Archives() []workflow.Archive {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]workflow.Archive(nil), e.archives...)
}

func (e *Engine) Open(target string) *Rejection {
	return e.command("open-"+target, func() *Rejection {
		if target == "plan" && e.state.TotalPhases == 0 {
			return reject(http.StatusOK, "Plan file not found")
		}
		e.opened = append(e.opened, target)
		return nil
	})
}
