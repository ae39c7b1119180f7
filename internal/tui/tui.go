// Package tui is the interactive dashboard: a bubbletea program over a
// session.Client that mirrors the workflow and dispatches operator actions.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thruflo/conductor/internal/api"
	"github.com/thruflo/conductor/internal/session"
	"github.com/thruflo/conductor/internal/workflow"
)

// noticeTTL is how long a status-line notice stays up.
const noticeTTL = 6 * time.Second

// Session is the part of *session.Client the dashboard drives.
type Session interface {
	Start(ctx context.Context) error
	View() session.View
	OnChange(fn func(session.View))

	PerformAction(ctx context.Context) error
	Cancel(ctx context.Context) error
	SkipQuestions(ctx context.Context) error
	ContinueAfterPlanQuestions(ctx context.Context, skipped bool) error
	ResetProject(ctx context.Context) error
	ArchiveReferenceFiles(ctx context.Context) error
	Refresh(ctx context.Context) error
	Open(ctx context.Context, target api.OpenTarget) error

	SetProjectConfig(cfg workflow.ProjectConfig)
	SetNoReferenceFiles(v bool)
	SetConfigExpanded(v bool)
	SetAnswer(number int, answer string) bool
}

// mode is what the keyboard currently drives.
type mode int

const (
	modeDashboard mode = iota
	modeEdit
	modeAnswer
	modeConfirm
)

func (m mode) String() string {
	switch m {
	case modeDashboard:
		return "dashboard"
	case modeEdit:
		return "edit"
	case modeAnswer:
		return "answer"
	case modeConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

type (
	viewMsg    session.View
	noticeMsg  string
	confirmMsg struct {
		prompt string
		reply  chan<- bool
	}
	startedMsg struct{ err error }
	doneMsg    struct {
		op  string
		err error
	}
	clearNoticeMsg struct{ id int }
)

// Form field order.
const (
	fieldName = iota
	fieldDescription
	fieldModel
	fieldCount
)

// Option configures a Model.
type Option func(*Model)

// WithAlerts rings the bell through n when the workflow needs attention.
func WithAlerts(n *Notifier) Option {
	return func(m *Model) {
		m.alerts = n
	}
}

// Model is the dashboard state.
type Model struct {
	ctx    context.Context
	client Session
	view   session.View

	keys        keyMap
	formKeys    formKeys
	confirmKeys confirmKeys
	help        help.Model
	spinner     spinner.Model
	progress    progress.Model

	mode     mode
	prevMode mode

	fields []textinput.Model
	focus  int

	answer    textinput.Model
	answering int

	prompt string
	reply  chan<- bool

	notice   string
	noticeID int
	alerts   *Notifier

	width  int
	height int
}

// New creates a dashboard for client. Actions run with ctx.
func New(ctx context.Context, client Session, opts ...Option) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = accentStyle

	fields := make([]textinput.Model, fieldCount)
	for i, placeholder := range []string{"Project name", "What should be built?", workflow.DefaultModel} {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = 500
		fields[i] = ti
	}
	fields[fieldName].Prompt = "Name:        "
	fields[fieldDescription].Prompt = "Description: "
	fields[fieldModel].Prompt = "Model:       "

	answer := textinput.New()
	answer.Prompt = "> "
	answer.Placeholder = workflow.NoAnswerPlaceholder

	m := Model{
		ctx:         ctx,
		client:      client,
		view:        client.View(),
		keys:        newKeyMap(),
		formKeys:    newFormKeys(),
		confirmKeys: newConfirmKeys(),
		help:        help.New(),
		spinner:     sp,
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		fields:      fields,
		answer:      answer,
		answering:   -1,
		width:       80,
		height:      24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Run starts the session and runs the dashboard until the operator quits
// or ctx is cancelled.
func Run(ctx context.Context, client Session, bridge *Bridge, opts ...Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, client, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(ctx, p)
	client.OnChange(bridge.Changed)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	client, ctx := m.client, m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return startedMsg{err: client.Start(ctx)}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.progress.Width = min(max(msg.Width-4, 10), 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case viewMsg:
		return m.setView(session.View(msg))

	case startedMsg:
		return m.setView(m.client.View())

	case doneMsg:
		m, cmd := m.setView(m.client.View())
		if errors.Is(msg.err, session.ErrBusy) {
			return m.withNotice("Another action is still running.", cmd)
		}
		return m, cmd

	case noticeMsg:
		return m.withNotice(string(msg), nil)

	case clearNoticeMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case confirmMsg:
		if m.reply != nil {
			m.reply <- false
		}
		if m.mode != modeConfirm {
			m.prevMode = m.mode
		}
		m.mode = modeConfirm
		m.prompt = msg.prompt
		m.reply = msg.reply
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeConfirm:
			return m.updateConfirm(msg)
		case modeEdit:
			return m.updateEdit(msg)
		case modeAnswer:
			return m.updateAnswer(msg)
		default:
			return m.updateDashboard(msg)
		}
	}
	return m, nil
}

// setView installs a new view, leaving input modes that no longer apply and
// alerting on transitions worth attention.
func (m Model) setView(v session.View) (Model, tea.Cmd) {
	prev := m.view.State
	m.view = v

	if m.mode == modeAnswer && !v.ShowQuestions() {
		m.mode = modeDashboard
		m.answering = -1
		m.answer.Blur()
	}
	if m.mode == modeEdit && !v.ShowConfig() {
		m.mode = modeDashboard
		m.blurFields()
	}

	reason := ReasonFor(prev, v.State)
	if reason == NotifyReasonNone || m.alerts == nil {
		return m, nil
	}
	alerts, project := m.alerts, v.Config.ProjectName
	return m, func() tea.Msg {
		_ = alerts.NotifyForReason(reason, project, true)
		return nil
	}
}

func (m Model) withNotice(text string, cmd tea.Cmd) (Model, tea.Cmd) {
	m.noticeID++
	m.notice = text
	id := m.noticeID
	expire := tea.Tick(noticeTTL, func(time.Time) tea.Msg { return clearNoticeMsg{id: id} })
	return m, tea.Batch(cmd, expire)
}

// run executes a session operation off the update loop.
func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) open(target api.OpenTarget) tea.Cmd {
	client := m.client
	return m.run("open "+string(target), func(ctx context.Context) error {
		return client.Open(ctx, target)
	})
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v, client := m.view, m.client

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.act):
		if v.ShowPlanQuestions() {
			return m, m.run("refine plan", func(ctx context.Context) error {
				return client.ContinueAfterPlanQuestions(ctx, false)
			})
		}
		return m, m.run("action", client.PerformAction)

	case key.Matches(msg, m.keys.cancel):
		return m, m.run("cancel", client.Cancel)

	case key.Matches(msg, m.keys.skip):
		switch {
		case v.ShowPlanQuestions():
			return m, m.run("skip plan questions", func(ctx context.Context) error {
				return client.ContinueAfterPlanQuestions(ctx, true)
			})
		case v.State.State == workflow.StateQuestions:
			return m, m.run("skip", client.SkipQuestions)
		}
		return m, nil

	case key.Matches(msg, m.keys.answer):
		if !v.ShowQuestions() {
			return m, nil
		}
		m.mode = modeAnswer
		cmd := m.focusAnswer(0)
		return m, cmd

	case key.Matches(msg, m.keys.edit):
		if !v.ShowConfig() {
			return m, nil
		}
		client.SetConfigExpanded(true)
		m.view = client.View()
		m.mode = modeEdit
		m.fields[fieldName].SetValue(v.Config.ProjectName)
		m.fields[fieldDescription].SetValue(v.Config.ProjectDescription)
		m.fields[fieldModel].SetValue(v.Config.DefaultModel)
		cmd := m.focusField(fieldName)
		return m, cmd

	case key.Matches(msg, m.keys.noRefs):
		if !v.ShowConfig() {
			return m, nil
		}
		client.SetNoReferenceFiles(!v.NoReferenceFiles)
		m.view = client.View()
		return m, nil

	case key.Matches(msg, m.keys.archive):
		return m, m.run("archive references", client.ArchiveReferenceFiles)

	case key.Matches(msg, m.keys.reset):
		return m, m.run("reset", client.ResetProject)

	case key.Matches(msg, m.keys.refresh):
		return m, m.run("refresh", client.Refresh)

	case key.Matches(msg, m.keys.openOutput):
		return m, m.open(api.OpenOutput)

	case key.Matches(msg, m.keys.openPlan):
		return m, m.open(api.OpenPlan)

	case key.Matches(msg, m.keys.openRefs):
		return m, m.open(api.OpenReferences)
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var answer, done bool
	switch {
	case key.Matches(msg, m.confirmKeys.yes):
		answer, done = true, true
	case key.Matches(msg, m.confirmKeys.no), msg.Type == tea.KeyCtrlC:
		done = true
	}
	if !done {
		return m, nil
	}
	if m.reply != nil {
		m.reply <- answer
	}
	m.reply = nil
	m.prompt = ""
	m.mode = m.prevMode
	return m, nil
}

func (m *Model) blurFields() {
	for i := range m.fields {
		m.fields[i].Blur()
	}
}

func (m *Model) focusField(i int) tea.Cmd {
	m.blurFields()
	m.focus = (i + fieldCount) % fieldCount
	return m.fields[m.focus].Focus()
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.formKeys.close):
		m.mode = modeDashboard
		m.blurFields()
		return m, nil

	case key.Matches(msg, m.formKeys.next):
		cmd := m.focusField(m.focus + 1)
		return m, cmd

	case key.Matches(msg, m.formKeys.prev):
		cmd := m.focusField(m.focus - 1)
		return m, cmd

	case key.Matches(msg, m.formKeys.submit):
		cfg := m.view.Config
		cfg.ProjectName = strings.TrimSpace(m.fields[fieldName].Value())
		cfg.ProjectDescription = strings.TrimSpace(m.fields[fieldDescription].Value())
		if model := strings.TrimSpace(m.fields[fieldModel].Value()); model != "" {
			cfg.DefaultModel = model
		}
		m.client.SetProjectConfig(cfg)
		m.view = m.client.View()
		m.mode = modeDashboard
		m.blurFields()
		return m, nil
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

// focusAnswer moves the answer input to question i, keeping any answer
// already given.
func (m *Model) focusAnswer(i int) tea.Cmd {
	m.answering = i
	m.answer.SetValue(m.view.Questions[i].Answer)
	m.answer.CursorEnd()
	return m.answer.Focus()
}

// saveAnswer stores the input for the focused question.
func (m *Model) saveAnswer() {
	if m.answering < 0 || m.answering >= len(m.view.Questions) {
		return
	}
	q := m.view.Questions[m.answering]
	if m.client.SetAnswer(q.Number, m.answer.Value()) {
		m.view = m.client.View()
	}
}

func (m Model) updateAnswer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.formKeys.close):
		m.saveAnswer()
		m.mode = modeDashboard
		m.answering = -1
		m.answer.Blur()
		return m, nil

	case key.Matches(msg, m.formKeys.submit), key.Matches(msg, m.formKeys.next):
		m.saveAnswer()
		next := m.answering + 1
		if next >= len(m.view.Questions) {
			m.mode = modeDashboard
			m.answering = -1
			m.answer.Blur()
			return m, nil
		}
		cmd := m.focusAnswer(next)
		return m, cmd

	case key.Matches(msg, m.formKeys.prev):
		m.saveAnswer()
		if m.answering > 0 {
			cmd := m.focusAnswer(m.answering - 1)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.answer, cmd = m.answer.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	v := m.view
	width := max(m.width, 40)
	inner := width - 4

	var b strings.Builder
	b.WriteString(renderHeader(v, m.spinner.View(), width))
	b.WriteString("\n")
	b.WriteString(renderStages(v))
	b.WriteString("\n\n")

	if s := renderSystem(v); s != "" {
		b.WriteString(s + "\n\n")
	}
	if p := renderProgress(v, m.progress); p != "" {
		b.WriteString(p + "\n\n")
	}
	if lines := renderActivity(v, width); len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n") + "\n\n")
	}

	if m.mode == modeEdit {
		fields := make([]string, len(m.fields))
		for i, f := range m.fields {
			fields[i] = f.View()
		}
		b.WriteString(sectionStyle.Width(inner).Render(strings.Join(fields, "\n")) + "\n")
	} else {
		b.WriteString(sectionStyle.Width(inner).Render(strings.Join(renderProject(v, inner-2), "\n")) + "\n")
	}
	if v.ShowConfig() || len(v.References) > 0 {
		b.WriteString(strings.Join(renderReferences(v, width), "\n") + "\n")
	}
	b.WriteString("\n")

	if v.ShowPlanQuestions() {
		b.WriteString(strings.Join(renderPlanQuestions(width), "\n") + "\n\n")
	}
	if v.ShowQuestions() {
		focus, input := -1, ""
		if m.mode == modeAnswer {
			focus, input = m.answering, m.answer.View()
		}
		b.WriteString(strings.Join(renderQuestions(v, width, focus, input), "\n") + "\n\n")
	}

	if a := renderAction(v); a != "" {
		b.WriteString(a + "\n\n")
	}
	if m.mode == modeConfirm {
		b.WriteString(noteStyle.Render(m.prompt) + mutedStyle.Render(" [y/n]") + "\n")
	} else if m.notice != "" {
		b.WriteString(noteStyle.Render(Truncate(m.notice, width)) + "\n")
	}

	switch m.mode {
	case modeConfirm:
		b.WriteString(m.help.View(m.confirmKeys))
	case modeEdit, modeAnswer:
		b.WriteString(m.help.View(m.formKeys))
	default:
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}
