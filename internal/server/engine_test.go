package server

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/conductor/internal/workflow"
)

func newTestEngine(t *testing.T, phases int) (*Engine, *[]workflow.Snapshot) {
	t.Helper()
	e := NewEngine(phases)
	e.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }

	var mu sync.Mutex
	var published []workflow.Snapshot
	e.OnChange(func(s workflow.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, s)
	})
	return e, &published
}

func TestEngineStartsReset(t *testing.T) {
	e := NewEngine(0)
	snap := e.Snapshot()
	assert.Equal(t, workflow.StateReset, snap.State)
	assert.Equal(t, DefaultPhases, e.phases)

	_, saved := e.Config()
	assert.False(t, saved)
	assert.True(t, e.System().Ready())
}

func TestEngineHappyPath(t *testing.T) {
	e, published := newTestEngine(t, 2)

	require.Nil(t, e.SaveConfig(workflow.ProjectConfig{ProjectName: "Atlas", ProjectDescription: "Map things"}))
	assert.Equal(t, workflow.StateConfigured, e.Snapshot().State)

	require.Nil(t, e.GeneratePlan())
	snap := e.Snapshot()
	assert.Equal(t, workflow.StatePlanning, snap.State)
	assert.True(t, snap.ClaudeRunning)
	require.NotNil(t, snap.ProcessPID)
	require.NotNil(t, snap.LastUpdated)
	assert.Equal(t, "2026-03-14T09:26:53Z", *snap.LastUpdated)

	require.True(t, e.Advance())
	snap = e.Snapshot()
	assert.Equal(t, workflow.StatePlanned, snap.State)
	assert.Equal(t, 1, snap.Phase)
	assert.Equal(t, 2, snap.TotalPhases)
	assert.False(t, snap.ClaudeRunning)
	assert.Nil(t, snap.ProcessPID)

	require.Nil(t, e.ExecutePlan())
	assert.Equal(t, workflow.StateExecuting, e.Snapshot().State)

	require.True(t, e.Advance())
	assert.Equal(t, 2, e.Snapshot().Phase)
	require.True(t, e.Advance())
	assert.Equal(t, workflow.StateComplete, e.Snapshot().State)

	assert.False(t, e.Advance(), "complete does not advance")

	assert.Equal(t, []string{"save-config", "generate-plan", "execute"}, e.Calls())
	assert.Len(t, *published, 6)
	assert.Equal(t, workflow.StateComplete, (*published)[5].State)
}

func TestEnginePlanQuestions(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	e.EnablePlanQuestions(true)

	require.Nil(t, e.GeneratePlan())
	e.Advance()
	assert.Equal(t, workflow.StatePlanQuestions, e.Snapshot().State)

	require.Nil(t, e.RefinePlan(true))
	snap := e.Snapshot()
	assert.Equal(t, workflow.StatePlanning, snap.State)
	assert.Equal(t, "Refining plan with assumptions...", snap.Activity)

	e.Advance()
	assert.Equal(t, workflow.StatePlanned, e.Snapshot().State, "plan questions are asked once")
}

func TestEngineRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(e *Engine)
		command func(e *Engine) *Rejection
		want    string
	}{
		{
			name:    "execute without plan",
			command: (*Engine).ExecutePlan,
			want:    "No plan to execute",
		},
		{
			name:    "generate while running",
			setup:   func(e *Engine) { _ = e.GeneratePlan() },
			command: (*Engine).GeneratePlan,
			want:    "Claude is already running",
		},
		{
			name:    "retry outside error",
			command: (*Engine).Retry,
			want:    "Can only retry from error state",
		},
		{
			name:    "refine without questions",
			command: func(e *Engine) *Rejection { return e.RefinePlan(false) },
			want:    "No planning questions pending",
		},
		{
			name:    "answer without questions",
			command: func(e *Engine) *Rejection { return e.SubmitAnswers(map[string]string{"1": "x"}) },
			want:    "Questions file not found",
		},
		{
			name: "archive with nothing to archive",
			command: func(e *Engine) *Rejection {
				_, rej := e.ArchiveReferences()
				return rej
			},
			want: "No files to archive",
		},
		{
			name: "upload nothing",
			command: func(e *Engine) *Rejection {
				_, rej := e.UploadReferences(nil)
				return rej
			},
			want: "No files provided",
		},
		{
			name:    "open plan before planning",
			command: func(e *Engine) *Rejection { return e.Open("plan") },
			want:    "Plan file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, 3)
			if tt.setup != nil {
				tt.setup(e)
			}
			rej := tt.command(e)
			require.NotNil(t, rej)
			assert.Equal(t, tt.want, rej.Message)
		})
	}
}

func TestEngineScriptedFailure(t *testing.T) {
	e, published := newTestEngine(t, 3)
	e.Fail("generate-plan", http.StatusInternalServerError, "agent binary missing")

	rej := e.GeneratePlan()
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusInternalServerError, rej.Status)
	assert.Equal(t, "500: agent binary missing", rej.Error())
	assert.Equal(t, workflow.StateReset, e.Snapshot().State)
	assert.Empty(t, *published)

	require.Nil(t, e.GeneratePlan(), "failure applies once")
}

func TestEngineCancel(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	require.Nil(t, e.GeneratePlan())
	require.Nil(t, e.Cancel())
	assert.Equal(t, workflow.StateConfigured, e.Snapshot().State)

	require.Nil(t, e.GeneratePlan())
	e.Advance()
	require.Nil(t, e.ExecutePlan())
	require.Nil(t, e.Cancel())
	assert.Equal(t, workflow.StatePlanned, e.Snapshot().State)
}

func TestEngineCrashAndRetry(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	require.Nil(t, e.GeneratePlan())
	e.Advance()
	require.Nil(t, e.ExecutePlan())

	e.Crash("exit status 1")
	snap := e.Snapshot()
	assert.Equal(t, workflow.StateError, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "exit status 1", *snap.Error)

	require.Nil(t, e.Retry())
	snap = e.Snapshot()
	assert.Equal(t, workflow.StateExecuting, snap.State)
	assert.Nil(t, snap.Error)
	assert.Equal(t, "Retrying from executing state...", snap.Activity)
}

func TestEngineQuestions(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	e.AskQuestions([]workflow.Question{
		{Number: 1, Topic: "Scope", Text: "Include exports?"},
		{Number: 2, Topic: "Auth", Text: "SSO needed?"},
	})

	assert.Equal(t, workflow.StateQuestions, e.Snapshot().State)
	set := e.Questions()
	assert.True(t, set.HasQuestions)
	assert.Equal(t, 2, set.Count)

	answers := map[string]string{"1": "Yes", "2": workflow.NoAnswerPlaceholder}
	require.Nil(t, e.SubmitAnswers(answers))
	assert.Equal(t, answers, e.Answers())
	assert.False(t, e.Questions().HasQuestions)

	require.Nil(t, e.ContinueExecution())
	assert.Equal(t, workflow.StateExecuting, e.Snapshot().State)
}

func TestEngineStallKeepsState(t *testing.T) {
	e, published := newTestEngine(t, 3)
	require.Nil(t, e.GeneratePlan())
	e.Stall()

	snap := e.Snapshot()
	assert.Equal(t, workflow.StatePlanning, snap.State)
	assert.True(t, snap.Stalled)
	assert.Len(t, *published, 2)
}

func TestEngineReferences(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	e.AddReference(workflow.ReferenceFile{Name: "zeta.md", Size: 3})

	names, rej := e.UploadReferences([]workflow.ReferenceFile{
		{Name: "alpha.pdf", Size: 10},
		{Name: "zeta.md", Size: 7},
	})
	require.Nil(t, rej)
	assert.Equal(t, []string{"alpha.pdf", "zeta.md"}, names)

	refs := e.References()
	require.Len(t, refs, 2)
	assert.Equal(t, "alpha.pdf", refs[0].Name)
	assert.Equal(t, int64(7), refs[1].Size, "same name replaces")

	res, rej := e.ArchiveReferences()
	require.Nil(t, rej)
	assert.ElementsMatch(t, []string{"alpha.pdf", "zeta.md"}, res.Archived)
	assert.Equal(t, "references/archive/20260314_092653", res.ArchivePath)
	assert.Empty(t, e.References())
}

func TestEngineResetProject(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	require.Nil(t, e.SaveConfig(workflow.ProjectConfig{ProjectName: "Atlas", ProjectDescription: "d"}))
	e.AddReference(workflow.ReferenceFile{Name: "a.md"})

	res, rej := e.ResetProject("Atlas")
	require.Nil(t, rej)
	assert.True(t, res.Archived)
	assert.Equal(t, "archive/Atlas_20260314_092653", res.ArchivePath)

	assert.Equal(t, workflow.StateReset, e.Snapshot().State)
	_, saved := e.Config()
	assert.False(t, saved)
	assert.Empty(t, e.References())

	archives := e.Archives()
	require.Len(t, archives, 1)
	assert.Equal(t, "Atlas", archives[0].Project)
	assert.Equal(t, "2026-03-14", archives[0].Date)

	_, rej = e.ResetProject("")
	require.Nil(t, rej)
	assert.Equal(t, "project", e.Archives()[1].Project)
}

func TestEngineOpen(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	require.Nil(t, e.Open("output"))
	require.Nil(t, e.GeneratePlan())
	e.Advance()
	require.Nil(t, e.Open("plan"))

	assert.Equal(t, []string{"output", "plan"}, e.Opened())
}
