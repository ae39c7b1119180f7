// Package session is the client-side reconciliation engine. A Client owns
// the authoritative copy of the backend's workflow state, the operator's
// project form, the reference-file and question lists, and a busy flag. It
// merges pushed snapshots from the update channel, tracks staleness with a
// heartbeat, and dispatches operator actions only when the current state
// allows them.
//
// The Client never advances the workflow state on its own. Every action is
// a backend command; the resulting state arrives in a later snapshot.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/thruflo/conductor/internal/api"
	"github.com/thruflo/conductor/internal/channel"
	"github.com/thruflo/conductor/internal/heartbeat"
	"github.com/thruflo/conductor/internal/logging"
	"github.com/thruflo/conductor/internal/workflow"
)

// DefaultSystemStatusTTL is how long a system check result is reused.
const DefaultSystemStatusTTL = 30 * time.Second

const systemCacheKey = "system"

// Backend is the command surface of the workflow server. *api.Client
// implements it.
type Backend interface {
	GetState(ctx context.Context) (workflow.Patch, error)
	GetConfig(ctx context.Context) (workflow.ProjectConfig, bool, error)
	SaveConfig(ctx context.Context, cfg workflow.ProjectConfig) error
	CheckSystem(ctx context.Context) (workflow.SystemStatus, error)

	GetQuestions(ctx context.Context) (workflow.QuestionSet, error)
	SubmitAnswers(ctx context.Context, answers map[string]string) error
	SkipQuestions(ctx context.Context) error

	GeneratePlan(ctx context.Context) error
	RefinePlan(ctx context.Context, skipped bool) error
	ExecutePlan(ctx context.Context) error
	ContinueExecution(ctx context.Context) error
	Cancel(ctx context.Context) error
	Retry(ctx context.Context) error
	ResetProject(ctx context.Context, projectName string) (workflow.ResetResult, error)

	ListReferences(ctx context.Context) ([]workflow.ReferenceFile, error)
	ArchiveReferences(ctx context.Context) (workflow.ArchiveResult, error)
	UploadReferences(ctx context.Context, paths []string) (workflow.UploadResult, error)
	ListArchives(ctx context.Context) ([]workflow.Archive, error)
	Open(ctx context.Context, target api.OpenTarget) error
}

// Subscriber is the push side. *channel.Channel implements it.
type Subscriber interface {
	OnUpdate(fn channel.UpdateFunc)
	OnConnectionChange(fn channel.ConnectionFunc)
	Open(ctx context.Context)
	Close()
	IsOpen() bool
	ReconnectAttempts() int
}

// Confirmer asks the operator to approve a destructive operation.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Notifier shows a one-line message to the operator.
type Notifier interface {
	Notify(msg string)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(msg string)

func (f NotifyFunc) Notify(msg string) {
	f(msg)
}

type denyAll struct{}

func (denyAll) Confirm(context.Context, string) bool { return false }

type logNotifier struct {
	logger *logging.Logger
}

func (n logNotifier) Notify(msg string) {
	n.logger.Warn(msg)
}

// record is the single mutable session state. It is only touched inside
// apply or acquire.
type record struct {
	state            workflow.Snapshot
	conn             ConnectionStatus
	form             workflow.ProjectConfig
	configExpanded   bool
	noReferenceFiles bool
	references       []workflow.ReferenceFile
	questions        []workflow.Question
	questionsLoading bool
	system           workflow.SystemStatus
	systemChecked    bool
	busy             bool
}

// Option configures a Client.
type Option func(*Client)

// WithChannel sets the push subscription.
func WithChannel(s Subscriber) Option {
	return func(c *Client) {
		c.channel = s
	}
}

// WithHeartbeat sets the staleness clock.
func WithHeartbeat(h *heartbeat.Heartbeat) Option {
	return func(c *Client) {
		c.heartbeat = h
	}
}

// WithConfirmer sets the confirmation prompt. Without one every
// confirmation is declined.
func WithConfirmer(cf Confirmer) Option {
	return func(c *Client) {
		c.confirmer = cf
	}
}

// WithNotifier sets where failure messages go. The default logs them.
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSystemStatusTTL sets how long system checks are cached.
func WithSystemStatusTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.systemTTL = ttl
	}
}

// Client is one operator session against one backend.
type Client struct {
	backend   Backend
	channel   Subscriber
	heartbeat *heartbeat.Heartbeat
	confirmer Confirmer
	notifier  Notifier
	logger    *logging.Logger
	systemTTL time.Duration
	system    *cache.Cache

	mu       sync.Mutex
	rec      record
	onChange func(View)
	ctx      context.Context
	stop     context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// New creates a Client in the initial reset state.
func New(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:   backend,
		confirmer: denyAll{},
		logger:    logging.Default().With("component", "session"),
		systemTTL: DefaultSystemStatusTTL,
		ctx:       context.Background(),
		rec: record{
			state:          workflow.InitialSnapshot(),
			form:           workflow.DefaultProjectConfig(),
			configExpanded: true,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.heartbeat == nil {
		c.heartbeat = heartbeat.New()
	}
	if c.notifier == nil {
		c.notifier = logNotifier{logger: c.logger}
	}
	c.system = cache.New(c.systemTTL, 2*c.systemTTL)
	return c
}

// Start loads the initial snapshot, form, system status and reference list,
// then opens the update channel and starts the heartbeat. The returned error
// is the snapshot fetch failure, if any; the session keeps running either way.
func (c *Client) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.stop != nil || c.closed {
		c.mu.Unlock()
		cancel()
		return errors.New("session already started")
	}
	c.ctx = runCtx
	c.stop = cancel
	c.mu.Unlock()

	stateErr := c.LoadState(runCtx)
	if stateErr != nil {
		c.notifier.Notify(api.UserMessage(stateErr))
	}
	_ = c.LoadConfig(runCtx)
	_ = c.CheckSystem(runCtx)
	_ = c.LoadReferenceFiles(runCtx)

	if c.channel != nil {
		c.channel.OnUpdate(c.Merge)
		c.channel.OnConnectionChange(c.setConnection)
		c.channel.Open(runCtx)
	}

	c.heartbeat.OnTick(func(int) {
		c.apply(func(*record) {})
	})
	c.spawn(c.heartbeat.Run)

	return stateErr
}

// Close stops the channel, the heartbeat and any background fetches.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop := c.stop
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if c.channel != nil {
		c.channel.Close()
	}
	c.heartbeat.OnTick(nil)
	c.wg.Wait()
}

// OnChange registers a function called with a fresh View after every
// mutation, replacing any previous one. It runs outside the session lock.
func (c *Client) OnChange(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// View returns a copy of the current session state.
func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Merge overlays a pushed snapshot onto the authoritative state. It is the
// only way the workflow state changes.
func (c *Client) Merge(p workflow.Patch) {
	fetchQuestions := false
	c.apply(func(r *record) {
		r.state = workflow.Overlay(r.state, p)
		c.heartbeat.Touch()

		// Retried on every update until a fetch fills the list.
		if r.state.State == workflow.StateQuestions && len(r.questions) == 0 && !r.questionsLoading {
			r.questionsLoading = true
			fetchQuestions = true
		}
		if r.state.State == workflow.StateComplete {
			r.configExpanded = false
		}
	})
	if fetchQuestions {
		c.spawn(func(ctx context.Context) {
			_ = c.LoadQuestions(ctx)
			c.apply(func(r *record) {
				r.questionsLoading = false
			})
		})
	}
}

func (c *Client) setConnection(connected bool) {
	attempts := 0
	if c.channel != nil {
		attempts = c.channel.ReconnectAttempts()
	}
	c.apply(func(r *record) {
		r.conn = ConnectionStatus{Connected: connected, ReconnectAttempts: attempts}
	})
}

// apply is the single mutation entry point.
func (c *Client) apply(fn func(r *record)) View {
	c.mu.Lock()
	fn(&c.rec)
	v := c.viewLocked()
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(v)
	}
	return v
}

// acquire takes the busy flag if no action is in flight and allowed accepts
// the current view. The check and the acquisition happen under one lock.
func (c *Client) acquire(allowed func(View) bool) (View, error) {
	c.mu.Lock()
	if c.rec.busy {
		c.mu.Unlock()
		return View{}, ErrBusy
	}
	v := c.viewLocked()
	if allowed != nil && !allowed(v) {
		c.mu.Unlock()
		return v, ErrNotOfferable
	}
	c.rec.busy = true
	v.Busy = true
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(v)
	}
	return v, nil
}

func (c *Client) release() {
	c.apply(func(r *record) {
		r.busy = false
	})
}

func (c *Client) viewLocked() View {
	r := &c.rec
	return View{
		State:              r.state,
		Connection:         r.conn,
		Config:             r.form,
		ConfigExpanded:     r.configExpanded,
		NoReferenceFiles:   r.noReferenceFiles,
		References:         append([]workflow.ReferenceFile(nil), r.references...),
		Questions:          append([]workflow.Question(nil), r.questions...),
		System:             r.system,
		SystemChecked:      r.systemChecked,
		Busy:               r.busy,
		SecondsSinceUpdate: c.heartbeat.SecondsSinceUpdate(),
	}
}

// spawn runs fn on a tracked goroutine bound to the session context.
func (c *Client) spawn(fn func(ctx context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		fn(ctx)
	}()
}

// fail reports err to the operator with prefix and returns it.
func (c *Client) fail(prefix string, err error) error {
	c.logger.Warn("operation failed", "op", strings.TrimSuffix(prefix, ": "), "error", err)
	c.notifier.Notify(prefix + api.UserMessage(err))
	return err
}
