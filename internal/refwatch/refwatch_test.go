package refwatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/conductor/internal/logging"
)

type uploads struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (u *uploads) upload(_ context.Context, paths []string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.batches = append(u.batches, paths)
	return u.err
}

func (u *uploads) all() [][]string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([][]string(nil), u.batches...)
}

func startWatcher(t *testing.T, dir string, u *uploads) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := New(dir, u.upload, WithDebounce(100*time.Millisecond), WithLogger(logging.Discard()))

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	// Give the watcher time to register before the test writes files.
	time.Sleep(50 * time.Millisecond)
}

func TestWatcherBatchesBurst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	u := &uploads{}
	startWatcher(t, dir, u)

	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("beta"), 0o644))

	require.Eventually(t, func() bool {
		return len(u.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{a, b}, u.all()[0])

	// Nothing more arrives without new events.
	time.Sleep(250 * time.Millisecond)
	assert.Len(t, u.all(), 1)
}

func TestWatcherIgnoresDotfilesAndDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	u := &uploads{}
	startWatcher(t, dir, u)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("notes"), 0o644))

	require.Eventually(t, func() bool {
		return len(u.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{keep}, u.all()[0])
}

func TestWatcherKeepsRunningAfterUploadError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	u := &uploads{err: errors.New("server down")}
	startWatcher(t, dir, u)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.md"), []byte("1"), 0o644))
	require.Eventually(t, func() bool {
		return len(u.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.md"), []byte("2"), 0o644))
	require.Eventually(t, func() bool {
		return len(u.all()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherMissingDirectory(t *testing.T) {
	t.Parallel()

	w := New(filepath.Join(t.TempDir(), "missing"), (&uploads{}).upload, WithLogger(logging.Discard()))
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch")
}
