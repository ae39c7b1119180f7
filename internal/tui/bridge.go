package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/session"
)

// sender is the part of *tea.Program the bridge needs.
type sender interface {
	Send(msg tea.Msg)
}

// Bridge carries session callbacks into a running program. It implements
// session.Confirmer and session.Notifier, and Changed is suitable for
// session.Client.OnChange.
type Bridge struct {
	logger *logging.Logger

	mu      sync.Mutex
	program sender
	latest  session.View
	wake    chan struct{}
}

// NewBridge creates an unattached Bridge. Until Attach is called every
// confirmation is declined and notices are logged.
func NewBridge(logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Default().With("component", "tui")
	}
	return &Bridge{logger: logger, wake: make(chan struct{}, 1)}
}

// Attach starts forwarding to p until ctx is done.
func (b *Bridge) Attach(ctx context.Context, p sender) {
	b.mu.Lock()
	b.program = p
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.wake:
				b.mu.Lock()
				v := b.latest
				b.mu.Unlock()
				p.Send(viewMsg(v))
			}
		}
	}()
}

func (b *Bridge) sender() sender {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.program
}

// Changed records the latest view. Bursts are coalesced and it never
// blocks, so it is safe to call from inside the update loop.
func (b *Bridge) Changed(v session.View) {
	b.mu.Lock()
	b.latest = v
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Confirm shows prompt and waits for the operator's answer.
func (b *Bridge) Confirm(ctx context.Context, prompt string) bool {
	p := b.sender()
	if p == nil {
		return false
	}
	reply := make(chan bool, 1)
	p.Send(confirmMsg{prompt: prompt, reply: reply})
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Notify shows msg in the status line.
func (b *Bridge) Notify(msg string) {
	p := b.sender()
	if p == nil {
		b.logger.Warn(msg)
		return
	}
	p.Send(noticeMsg(msg))
}
