package testutil

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thruflo/conductor/internal/workflow"
)

// AssertState asserts that a snapshot is in the expected state.
func AssertState(t *testing.T, snap workflow.Snapshot, expected workflow.State) {
	t.Helper()
	assert.Equal(t, expected, snap.State, "workflow state mismatch")
}

// AssertPhase asserts the phase counter.
func AssertPhase(t *testing.T, snap workflow.Snapshot, phase, total int) {
	t.Helper()
	assert.Equal(t, phase, snap.Phase, "phase mismatch")
	assert.Equal(t, total, snap.TotalPhases, "total phases mismatch")
}

// AssertHasError asserts that a snapshot carries an error detail.
func AssertHasError(t *testing.T, snap workflow.Snapshot) {
	t.Helper()
	assert.NotEmpty(t, snap.ErrorText(), "snapshot should have an error")
}

// AssertAnswers asserts that answers holds one entry per question, keyed by
// number, with blanks replaced by the placeholder.
func AssertAnswers(t *testing.T, questions []workflow.Question, answers map[string]string) {
	t.Helper()
	assert.Len(t, answers, len(questions), "answer count mismatch")
	for _, q := range questions {
		want := q.Answer
		if want == "" {
			want = workflow.NoAnswerPlaceholder
		}
		assert.Equal(t, want, answers[strconv.Itoa(q.Number)], "answer %d mismatch", q.Number)
	}
}
