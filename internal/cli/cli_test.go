package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/server"
	"github.com/thruflo/conductor/internal/session"
	"github.com/thruflo/conductor/internal/testutil"
	"github.com/thruflo/conductor/internal/workflow"
)

const testToken = "cli-token"

type backend struct {
	srv *server.Server
	ts  *httptest.Server
}

func (b *backend) engine() *server.Engine {
	return b.srv.Engine()
}

func (b *backend) url() string {
	return b.ts.URL + "/api"
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	srv, err := server.NewServer(&server.Config{AuthToken: testToken, Phases: 2, Logger: logging.Discard()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Events().Close()
		ts.Close()
	})
	return &backend{srv: srv, ts: ts}
}

// resetFlags restores every flag to its default so commands do not leak
// state between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the CLI against b with stdin as input.
func (b *backend) run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	return execute(t, stdin, append([]string{"--server", b.url(), "--token", testToken}, args...)...)
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	testutil.SetupHome(t)

	resetFlags(rootCmd)
	appConfig = nil

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	ctx := testutil.Context(t, testutil.DefaultTimeout)
	err := rootCmd.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestStatusText(t *testing.T) {
	b := newBackend(t)
	b.engine().AddReference(workflow.ReferenceFile{Name: "brief.pdf", Size: 10})

	res := b.run(t, "", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "State:     Ready to Start (reset)")
	assert.Contains(t, res.stdout, "Project:   (unnamed)")
	assert.Contains(t, res.stdout, "Files:     1 reference file(s)")
	assert.Contains(t, res.stdout, "Next: Generate Plan (set --name, --description)")
}

func TestStatusStructured(t *testing.T) {
	b := newBackend(t)
	b.engine().SetState(testutil.SampleSnapshot(workflow.StateExecuting))

	res := b.run(t, "", "status", "--output", "json")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"state": "executing"`)
	assert.Contains(t, res.stdout, `"progress": 67`)
	assert.Contains(t, res.stdout, `"actionAvailable": false`)

	res = b.run(t, "", "status", "-o", "yaml")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "state: executing")
	assert.Contains(t, res.stdout, "action_available: false")
}

func TestStatusRejectsUnknownFormat(t *testing.T) {
	b := newBackend(t)
	res := b.run(t, "", "status", "-o", "xml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown output format")
}

func TestBadTokenFailsFast(t *testing.T) {
	b := newBackend(t)
	res := execute(t, "", "--server", b.url(), "--token", "wrong", "status")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "failed to reach backend")
}

func TestActGeneratesPlan(t *testing.T) {
	b := newBackend(t)

	res := b.run(t, "", "act", "--name", "Atlas", "--description", "Map every office", "--no-references")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Generate Plan: sent.")

	cfg, saved := b.engine().Config()
	assert.True(t, saved)
	assert.Equal(t, "Atlas", cfg.ProjectName)
	assert.Equal(t, []string{"save-config", "generate-plan"}, b.engine().Calls())
	testutil.AssertState(t, b.engine().Snapshot(), workflow.StatePlanning)
}

func TestActExplainsMissingFields(t *testing.T) {
	b := newBackend(t)

	res := b.run(t, "", "act", "--name", "Atlas")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--description")
	assert.Contains(t, res.err.Error(), "--no-references")
	assert.Empty(t, b.engine().Calls())
}

func TestActRefinesPlanQuestions(t *testing.T) {
	b := newBackend(t)
	b.engine().SetState(workflow.Snapshot{State: workflow.StatePlanQuestions})

	res := b.run(t, "", "act")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Refine Plan: sent.")
	assert.Equal(t, []string{"refine-plan"}, b.engine().Calls())
}

func TestActResetNeedsConfirmation(t *testing.T) {
	b := newBackend(t)
	b.engine().SetState(workflow.Snapshot{State: workflow.StateComplete})

	res := b.run(t, "n\n", "act")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Cancelled.")
	assert.Contains(t, res.stderr, "Start a new project?")
	assert.Empty(t, b.engine().Calls())

	res = b.run(t, "y\n", "act")
	require.NoError(t, res.err)
	assert.Equal(t, []string{"reset"}, b.engine().Calls())
	assert.Len(t, b.engine().Archives(), 1)
}

func TestActReportsRejection(t *testing.T) {
	b := newBackend(t)
	b.engine().SetState(workflow.Snapshot{State: workflow.StateError})
	b.engine().Fail("retry", 500, "Nothing to retry")

	res := b.run(t, "", "act")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Retry failed")
	assert.Contains(t, res.stderr, "Action failed: Nothing to retry")
}

func TestCancel(t *testing.T) {
	b := newBackend(t)
	b.engine().SetState(workflow.Snapshot{State: workflow.StateExecuting})

	res := b.run(t, "", "cancel")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Cancelled.", "EOF on stdin declines")
	assert.Empty(t, b.engine().Calls())

	res = b.run(t, "", "cancel", "--yes")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Cancel: sent.")
	assert.Equal(t, []string{"cancel"}, b.engine().Calls())
}

func TestCancelWhenIdle(t *testing.T) {
	b := newBackend(t)
	res := b.run(t, "", "cancel", "--yes")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Cancel is not available in state reset")
}

func TestRetry(t *testing.T) {
	b := newBackend(t)
	b.engine().SetState(workflow.Snapshot{State: workflow.StateError})

	res := b.run(t, "", "retry")
	require.NoError(t, res.err)
	assert.Equal(t, []string{"retry"}, b.engine().Calls())
}

func TestResetYes(t *testing.T) {
	b := newBackend(t)
	b.engine().SetState(workflow.Snapshot{State: workflow.StatePlanned})

	res := b.run(t, "", "reset", "-y")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Reset: sent.")
	testutil.AssertState(t, b.engine().Snapshot(), workflow.StateReset)
}

func askQuestions(b *backend) []workflow.Question {
	qs := testutil.SampleQuestions()
	b.engine().AskQuestions(qs)
	return qs
}

func TestAnswerWithArgs(t *testing.T) {
	b := newBackend(t)
	qs := askQuestions(b)

	res := b.run(t, "", "answer", "1=CSV only", "3=Yes")
	require.NoError(t, res.err, res.stderr)
	qs[0].Answer, qs[2].Answer = "CSV only", "Yes"
	testutil.AssertAnswers(t, qs, b.engine().Answers())
	assert.Equal(t, []string{"answer", "continue"}, b.engine().Calls())
}

func TestAnswerInteractive(t *testing.T) {
	b := newBackend(t)
	askQuestions(b)

	res := b.run(t, "CSV\nyes\n", "answer")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "1. [Exports] Which formats?")
	assert.Equal(t, map[string]string{
		"1": "CSV",
		"2": "yes",
		"3": workflow.NoAnswerPlaceholder,
	}, b.engine().Answers(), "EOF leaves the rest unanswered")
}

func TestAnswerErrors(t *testing.T) {
	b := newBackend(t)

	res := b.run(t, "", "answer", "1=x")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "no questions are pending")

	askQuestions(b)
	res = b.run(t, "", "answer", "7=x")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "question 7 does not exist")

	res = b.run(t, "", "answer", "nonsense")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "want N=answer")
}

func TestParseAnswers(t *testing.T) {
	got, err := parseAnswers([]string{"1=a", "2=b=c", "3="})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "a", 2: "b=c", 3: ""}, got)

	for _, bad := range []string{"x=1", "0=a", "-1=a", "noequals"} {
		_, err := parseAnswers([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestSkip(t *testing.T) {
	b := newBackend(t)
	askQuestions(b)

	res := b.run(t, "", "skip", "--yes")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, []string{"skip", "continue"}, b.engine().Calls())
}

func TestSkipPlanQuestions(t *testing.T) {
	b := newBackend(t)
	b.engine().SetState(workflow.Snapshot{State: workflow.StatePlanQuestions})

	res := b.run(t, "y\n", "skip")
	require.NoError(t, res.err)
	assert.Equal(t, []string{"refine-plan"}, b.engine().Calls())
	assert.Equal(t, "Refining plan with assumptions...", b.engine().Snapshot().Activity)
}

func TestUploadAndArchive(t *testing.T) {
	b := newBackend(t)
	brief := testutil.WriteTestFile(t, t.TempDir(), "brief.md", []byte("# Brief"))

	res := b.run(t, "", "upload", brief)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Uploaded brief.md")
	require.Len(t, b.engine().References(), 1)

	res = b.run(t, "", "archive", "--yes")
	require.NoError(t, res.err)
	assert.Empty(t, b.engine().References())

	res = b.run(t, "", "archive", "--yes")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "No reference files to archive.")
}

func TestUploadValidatesArgs(t *testing.T) {
	b := newBackend(t)

	res := b.run(t, "", "upload")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "no files given")

	res = b.run(t, "", "upload", t.TempDir())
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "is a directory")

	res = b.run(t, "", "upload", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, res.err)
	assert.Empty(t, b.engine().Calls())
}

func TestArchivesListing(t *testing.T) {
	b := newBackend(t)

	res := b.run(t, "", "archives")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No archives found.")

	_, rej := b.engine().ResetProject("Atlas")
	require.Nil(t, rej)

	res = b.run(t, "", "archives")
	require.NoError(t, res.err)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "PROJECT"))
	assert.Contains(t, lines[1], "Atlas")
}

func TestOpen(t *testing.T) {
	b := newBackend(t)

	res := b.run(t, "", "open", "output")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Opened output.")
	assert.Equal(t, []string{"output"}, b.engine().Opened())

	res = b.run(t, "", "open", "plan")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Plan file not found")

	res = b.run(t, "", "open", "desktop")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown open target")
}

func TestQuestionsMarkdown(t *testing.T) {
	b := newBackend(t)

	res := b.run(t, "", "questions", "--plain")
	require.NoError(t, res.err)
	assert.Equal(t, "No questions are pending.\n", res.stdout)

	askQuestions(b)
	res = b.run(t, "", "questions", "--plain")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "# Questions (3)")
	assert.Contains(t, res.stdout, "## 1. Exports")
	assert.Contains(t, res.stdout, "Which formats?")

	res = b.run(t, "", "questions")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Which formats?")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.yaml")

	res := execute(t, "", "config", "init", "--path", path)
	require.NoError(t, res.err)
	assert.FileExists(t, path)

	res = execute(t, "", "config", "init", "--path", path)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already exists")

	res = execute(t, "", "config", "init", "--path", path, "--force")
	require.NoError(t, res.err)

	res = execute(t, "", "--config", path, "--token", "secret-token", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "url: http://localhost:8080/api")
	assert.Contains(t, res.stdout, "se********en")
	assert.NotContains(t, res.stdout, "secret-token")
	assert.Contains(t, res.stdout, "max_reconnect_attempts: 10")
}

func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("CONDUCTOR_LOG_LEVEL", "debug")
	res := execute(t, "", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "level: debug")

	res = execute(t, "", "--log-level", "error", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "level: error", "flags beat the environment")
}

func TestConfigRejectsInvalid(t *testing.T) {
	res := execute(t, "", "--server", "localhost:8080", "config", "show")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "server.url")
}

func TestConfigProject(t *testing.T) {
	b := newBackend(t)

	res := b.run(t, "", "config", "project", "--name", "Atlas", "--planning-questions=false")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "project_name: Atlas")

	cfg, saved := b.engine().Config()
	assert.True(t, saved)
	assert.Equal(t, "Atlas", cfg.ProjectName)
	assert.False(t, cfg.AllowPlanningQuestions)

	res = b.run(t, "", "config", "project")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "project_name: Atlas")
	assert.Equal(t, []string{"save-config"}, b.engine().Calls(), "showing does not save")
}

func TestWatchUntilDone(t *testing.T) {
	b := newBackend(t)
	b.engine().SetState(workflow.Snapshot{State: workflow.StateExecuting, Phase: 1, TotalPhases: 2, Activity: "Working"})

	done := make(chan result, 1)
	go func() {
		done <- b.run(t, "", "watch", "--until-done")
	}()

	require.Eventually(t, func() bool { return b.srv.Events().Subscribers() > 0 },
		testutil.DefaultTimeout, 10*time.Millisecond)
	b.engine().Advance()
	b.engine().Advance()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout, "executing")
		assert.Contains(t, res.stdout, "Phase 1 of 2")
		assert.Contains(t, res.stdout, "complete")
	case <-time.After(testutil.DefaultTimeout):
		t.Fatal("watch did not exit")
	}
}

func viewFor(s workflow.Snapshot) session.View {
	return session.View{State: s}
}

func TestWatchLine(t *testing.T) {
	msg := "boom"
	v := viewFor(workflow.Snapshot{State: workflow.StateError, Error: &msg, Activity: "Failed"})
	assert.Equal(t, fmt.Sprintf("%-14s Failed (error: boom) [offline]", "error"), watchLine(v))

	v.Connection.Connected = true
	v.State = workflow.Snapshot{State: workflow.StateExecuting, Phase: 1, TotalPhases: 3, Stalled: true}
	assert.Equal(t, fmt.Sprintf("%-14s [Phase 1 of 3] (stalled)", "executing"), watchLine(v))

	v.Connection.Connected = false
	v.Connection.ReconnectAttempts = 4
	assert.Contains(t, watchLine(v), "[reconnecting 4]")
}

func TestWatchPrinterDeduplicates(t *testing.T) {
	var buf bytes.Buffer
	p := &watchPrinter{out: &buf, now: func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }}

	v := viewFor(workflow.Snapshot{State: workflow.StatePlanning, Activity: "Generating plan..."})
	p.print(v)
	p.print(v)
	v.State.State = workflow.StatePlanned
	p.print(v)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "09:26:53  planning"))
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input string
		yes   bool
		want  bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", false, false},
		{"\n", false, false},
		{"", false, false},
		{"", true, true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		c := newPromptConfirmer(strings.NewReader(tt.input), &out, tt.yes)
		assert.Equal(t, tt.want, c.Confirm(context.Background(), "Proceed?"), "input %q", tt.input)
		if !tt.yes {
			assert.Contains(t, out.String(), "Proceed? [y/N]")
		}
	}
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", maskToken("abc"))
	assert.Equal(t, "ab**ef", maskToken("abcdef"))
}
