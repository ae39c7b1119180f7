// Package refwatch watches a local folder and uploads files dropped into it
// as project reference files. Bursts of filesystem events are coalesced
// into one upload per debounce window.
package refwatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thruflo/conductor/internal/logging"
)

// DefaultDebounce is the quiet period before pending files are uploaded.
const DefaultDebounce = 500 * time.Millisecond

// UploadFunc uploads a batch of file paths.
type UploadFunc func(ctx context.Context, paths []string) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// Watcher uploads new or modified files in one directory. Subdirectories
// and dotfiles are ignored.
type Watcher struct {
	dir      string
	upload   UploadFunc
	debounce time.Duration
	logger   *logging.Logger
}

// New creates a Watcher for dir.
func New(dir string, upload UploadFunc, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		upload:   upload,
		debounce: DefaultDebounce,
		logger:   logging.Default().With("component", "refwatch"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. Upload failures are logged and the files
// are retried on their next change.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching reference folder", "dir", w.dir)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			paths := regularFiles(pending)
			clear(pending)
			if len(paths) == 0 {
				continue
			}
			w.logger.Info("uploading reference files", "count", len(paths))
			if err := w.upload(ctx, paths); err != nil {
				w.logger.Warn("upload failed", "error", err)
			}
		}
	}
}

// regularFiles returns the sorted paths in set that still exist as regular
// files.
func regularFiles(set map[string]struct{}) []string {
	var out []string
	for path := range set {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
