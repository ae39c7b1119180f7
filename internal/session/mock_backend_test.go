package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/conductor/internal/api"
	"github.com/thruflo/conductor/internal/channel"
	"github.com/thruflo/conductor/internal/workflow"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) GetState(ctx context.Context) (workflow.Patch, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(workflow.Patch)
	return p, args.Error(1)
}

func (m *mockBackend) GetConfig(ctx context.Context) (workflow.ProjectConfig, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(workflow.ProjectConfig), args.Bool(1), args.Error(2)
}

func (m *mockBackend) SaveConfig(ctx context.Context, cfg workflow.ProjectConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *mockBackend) CheckSystem(ctx context.Context) (workflow.SystemStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(workflow.SystemStatus), args.Error(1)
}

func (m *mockBackend) GetQuestions(ctx context.Context) (workflow.QuestionSet, error) {
	args := m.Called(ctx)
	return args.Get(0).(workflow.QuestionSet), args.Error(1)
}

func (m *mockBackend) SubmitAnswers(ctx context.Context, answers map[string]string) error {
	return m.Called(ctx, answers).Error(0)
}

func (m *mockBackend) SkipQuestions(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBackend) GeneratePlan(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBackend) RefinePlan(ctx context.Context, skipped bool) error {
	return m.Called(ctx, skipped).Error(0)
}

func (m *mockBackend) ExecutePlan(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBackend) ContinueExecution(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBackend) Cancel(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBackend) Retry(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBackend) ResetProject(ctx context.Context, projectName string) (workflow.ResetResult, error) {
	args := m.Called(ctx, projectName)
	return args.Get(0).(workflow.ResetResult), args.Error(1)
}

func (m *mockBackend) ListReferences(ctx context.Context) ([]workflow.ReferenceFile, error) {
	args := m.Called(ctx)
	files, _ := args.Get(0).([]workflow.ReferenceFile)
	return files, args.Error(1)
}

func (m *mockBackend) ArchiveReferences(ctx context.Context) (workflow.ArchiveResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(workflow.ArchiveResult), args.Error(1)
}

func (m *mockBackend) UploadReferences(ctx context.Context, paths []string) (workflow.UploadResult, error) {
	args := m.Called(ctx, paths)
	return args.Get(0).(workflow.UploadResult), args.Error(1)
}

func (m *mockBackend) ListArchives(ctx context.Context) ([]workflow.Archive, error) {
	args := m.Called(ctx)
	archives, _ := args.Get(0).([]workflow.Archive)
	return archives, args.Error(1)
}

func (m *mockBackend) Open(ctx context.Context, target api.OpenTarget) error {
	return m.Called(ctx, target).Error(0)
}

// methodOrder lists the backend methods called so far, in order.
func (m *mockBackend) methodOrder() []string {
	var names []string
	for _, call := range m.Calls {
		names = append(names, call.Method)
	}
	return names
}

var _ Backend = (*mockBackend)(nil)

// fakeSubscriber stands in for the update channel.
type fakeSubscriber struct {
	mu       sync.Mutex
	onUpdate channel.UpdateFunc
	onConn   channel.ConnectionFunc
	open     bool
	opens    int
	attempts int
}

func (f *fakeSubscriber) OnUpdate(fn channel.UpdateFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onUpdate = fn
}

func (f *fakeSubscriber) OnConnectionChange(fn channel.ConnectionFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConn = fn
}

func (f *fakeSubscriber) Open(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = true
	f.opens++
	f.attempts = 0
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
}

func (f *fakeSubscriber) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeSubscriber) ReconnectAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeSubscriber) push(p workflow.Patch) {
	f.mu.Lock()
	fn := f.onUpdate
	f.mu.Unlock()
	fn(p)
}

func (f *fakeSubscriber) drop(attempts int, giveUp bool) {
	f.mu.Lock()
	f.attempts = attempts
	if giveUp {
		f.open = false
	}
	fn := f.onConn
	f.mu.Unlock()
	fn(false)
}

func (f *fakeSubscriber) connect() {
	f.mu.Lock()
	f.attempts = 0
	fn := f.onConn
	f.mu.Unlock()
	fn(true)
}

func (f *fakeSubscriber) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

var _ Subscriber = (*fakeSubscriber)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedNotes struct {
	mu    sync.Mutex
	notes []string
}

func (r *recordedNotes) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, msg)
}

func (r *recordedNotes) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notes...)
}

type scriptedConfirmer struct {
	mu      sync.Mutex
	answer  bool
	prompts []string
}

func (s *scriptedConfirmer) Confirm(_ context.Context, prompt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.answer
}

func (s *scriptedConfirmer) asked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func mustPatch(t *testing.T, body string) workflow.Patch {
	t.Helper()
	p, err := workflow.DecodePatch([]byte(body))
	require.NoError(t, err)
	return p
}
