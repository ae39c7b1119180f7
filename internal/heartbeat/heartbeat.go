// Package heartbeat tracks how long it has been since the last accepted
// workflow update. A fixed tick recomputes the elapsed seconds even when no
// updates arrive, so a silent backend shows up as a growing counter.
package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is the recompute period.
const DefaultInterval = time.Second

// Staleness thresholds in whole seconds.
const (
	RecentAfter = 2
	StaleAfter  = 10
)

// Clock interface for time operations (allows testing).
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Level classifies the elapsed time since the last update.
type Level int

const (
	LevelFresh Level = iota
	LevelRecent
	LevelStale
)

func (l Level) String() string {
	switch l {
	case LevelFresh:
		return "fresh"
	case LevelRecent:
		return "recent"
	default:
		return "stale"
	}
}

// LevelFor maps elapsed seconds to a Level.
func LevelFor(seconds int) Level {
	switch {
	case seconds < RecentAfter:
		return LevelFresh
	case seconds < StaleAfter:
		return LevelRecent
	default:
		return LevelStale
	}
}

// Text renders the operator-facing heartbeat line.
func Text(seconds int) string {
	switch LevelFor(seconds) {
	case LevelFresh:
		return "Connected - receiving updates"
	case LevelRecent:
		return fmt.Sprintf("Last update: %ds ago", seconds)
	default:
		return fmt.Sprintf("Last update: %ds ago (still working...)", seconds)
	}
}

// Option configures a Heartbeat.
type Option func(*Heartbeat)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(h *Heartbeat) {
		h.clock = c
	}
}

// WithInterval sets the tick period used by Run.
func WithInterval(d time.Duration) Option {
	return func(h *Heartbeat) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithTickFunc registers a function called after every tick with the
// recomputed seconds.
func WithTickFunc(fn func(seconds int)) Option {
	return func(h *Heartbeat) {
		h.onTick = fn
	}
}

// Heartbeat holds the last-update time and the derived elapsed seconds.
type Heartbeat struct {
	mu         sync.Mutex
	clock      Clock
	interval   time.Duration
	lastUpdate time.Time
	seconds    int
	onTick     func(seconds int)
}

// New creates a Heartbeat whose last update is now.
func New(opts ...Option) *Heartbeat {
	h := &Heartbeat{
		clock:    realClock{},
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.lastUpdate = h.clock.Now()
	return h
}

// Touch records an accepted update.
func (h *Heartbeat) Touch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastUpdate = h.clock.Now()
	h.seconds = 0
}

// Tick recomputes the elapsed whole seconds and returns them.
func (h *Heartbeat) Tick() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	elapsed := h.clock.Now().Sub(h.lastUpdate)
	if elapsed < 0 {
		elapsed = 0
	}
	h.seconds = int(elapsed / time.Second)
	return h.seconds
}

// SecondsSinceUpdate returns the value computed by the last Tick.
func (h *Heartbeat) SecondsSinceUpdate() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seconds
}

// LastUpdate returns the time of the last Touch.
func (h *Heartbeat) LastUpdate() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUpdate
}

// OnTick replaces the function called after every tick.
func (h *Heartbeat) OnTick(fn func(seconds int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTick = fn
}

// Run ticks until ctx is done.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seconds := h.Tick()
			h.mu.Lock()
			fn := h.onTick
			h.mu.Unlock()
			if fn != nil {
				fn(seconds)
			}
		}
	}
}
