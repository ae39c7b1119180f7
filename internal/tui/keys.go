package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	act        key.Binding
	cancel     key.Binding
	skip       key.Binding
	answer     key.Binding
	edit       key.Binding
	noRefs     key.Binding
	archive    key.Binding
	reset      key.Binding
	refresh    key.Binding
	openOutput key.Binding
	openPlan   key.Binding
	openRefs   key.Binding
	toggleHelp key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		act: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "primary action"),
		),
		cancel: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "cancel"),
		),
		skip: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "skip questions"),
		),
		answer: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "answer"),
		),
		edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit project"),
		),
		noRefs: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "no reference files"),
		),
		archive: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "archive references"),
		),
		reset: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "new project"),
		),
		refresh: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "refresh"),
		),
		openOutput: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open output"),
		),
		openPlan: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "open plan"),
		),
		openRefs: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "open references"),
		),
		toggleHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.act, k.cancel, k.edit, k.refresh, k.toggleHelp, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.act, k.cancel, k.reset},
		{k.answer, k.skip},
		{k.edit, k.noRefs, k.archive},
		{k.openOutput, k.openPlan, k.openRefs},
		{k.refresh, k.toggleHelp, k.quit},
	}
}

// formKeys apply while a text field has focus.
type formKeys struct {
	next   key.Binding
	prev   key.Binding
	submit key.Binding
	close  key.Binding
}

func newFormKeys() formKeys {
	return formKeys{
		next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
		submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		close:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

func (k formKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.prev, k.submit, k.close}
}

func (k formKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// confirmKeys apply while a confirmation prompt is shown.
type confirmKeys struct {
	yes key.Binding
	no  key.Binding
}

func newConfirmKeys() confirmKeys {
	return confirmKeys{
		yes: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
		no:  key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "no")),
	}
}

func (k confirmKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.yes, k.no}
}

func (k confirmKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
