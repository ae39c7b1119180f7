package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/conductor/internal/workflow"
)

func TestSampleQuestions(t *testing.T) {
	t.Parallel()

	qs := SampleQuestions()
	require.Len(t, qs, 3)

	// Verify each call returns a new slice (no interference between tests)
	qs[0].Answer = "CSV"
	assert.Empty(t, SampleQuestions()[0].Answer, "SampleQuestions should return fresh slice")
}

func TestSampleProjectConfig(t *testing.T) {
	t.Parallel()

	cfg := SampleProjectConfig()
	assert.True(t, cfg.Complete())
	assert.Equal(t, workflow.DefaultModel, cfg.DefaultModel)
}

func TestSampleSnapshot(t *testing.T) {
	t.Parallel()

	for _, s := range workflow.States() {
		t.Run(string(s), func(t *testing.T) {
			snap := SampleSnapshot(s)
			AssertState(t, snap, s)
			assert.Equal(t, s.Busy(), snap.ClaudeRunning)
		})
	}

	AssertPhase(t, SampleSnapshot(workflow.StateExecuting), 2, 3)
	AssertHasError(t, SampleSnapshot(workflow.StateError))
}

func TestAssertAnswers(t *testing.T) {
	t.Parallel()

	qs := SampleQuestions()
	qs[0].Answer = "CSV"
	AssertAnswers(t, qs, workflow.BuildAnswers(qs))
}

func TestSetupHome(t *testing.T) {
	home := SetupHome(t)
	got, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, home, got)
}

func TestMustMarshalJSON(t *testing.T) {
	t.Parallel()

	var cfg workflow.ProjectConfig
	MustUnmarshalJSON(t, MustMarshalJSON(t, SampleProjectConfig()), &cfg)
	assert.Equal(t, "Atlas", cfg.ProjectName)
}

func TestWriteTestFile(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	content := []byte("test content")

	path := WriteTestFile(t, tmpDir, "subdir/file.txt", content)
	assert.Equal(t, filepath.Join(tmpDir, "subdir", "file.txt"), path)

	readContent, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, readContent)
}
