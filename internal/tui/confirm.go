package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmModel is a yes/no dialog rendered as a bordered box.
//
// Navigation: left/right/tab/shift+tab move focus between Yes and No buttons.
// Enter activates the focused button. y/n are shortcut accelerators; esc
// answers No and ctrl+c aborts.
type confirmModel struct {
	message  string
	focusYes bool

	done      bool
	confirmed bool
	aborted   bool
}

// newConfirmModel creates a dialog for message. Focus starts on Yes when
// defaultYes is set, otherwise on No.
func newConfirmModel(message string, defaultYes bool) confirmModel {
	return confirmModel{message: message, focusYes: defaultYes}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, keys.Quit):
		m.done, m.aborted = true, true
		return m, tea.Quit

	case key.Matches(keyMsg, confirmYesKey):
		return m.answer(true)

	case key.Matches(keyMsg, confirmNoKey), key.Matches(keyMsg, keys.Back):
		return m.answer(false)

	case key.Matches(keyMsg, keys.Enter):
		return m.answer(m.focusYes)

	case key.Matches(keyMsg, confirmLeft), key.Matches(keyMsg, confirmRight),
		key.Matches(keyMsg, confirmTab), key.Matches(keyMsg, confirmShiftTab):
		m.focusYes = !m.focusYes
	}

	return m, nil
}

func (m confirmModel) answer(yes bool) (tea.Model, tea.Cmd) {
	m.done = true
	m.confirmed = yes
	return m, tea.Quit
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}

	question := lipgloss.NewStyle().
		Width(48).
		Align(lipgloss.Center).
		Render(m.message)

	var yesBtn, noBtn string
	if m.focusYes {
		yesBtn = dialogActiveButtonStyle.Render("Yes")
		noBtn = dialogButtonStyle.Render("No")
	} else {
		yesBtn = dialogButtonStyle.Render("Yes")
		noBtn = dialogActiveButtonStyle.Render("No")
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Top, yesBtn, "  ", noBtn)
	ui := lipgloss.JoinVertical(lipgloss.Center, question, "", buttons)
	return dialogBoxStyle.Render(ui) + "\n"
}

// Key bindings for the confirm dialog.
var (
	confirmYesKey = key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "confirm"),
	)
	confirmNoKey = key.NewBinding(
		key.WithKeys("n", "N"),
		key.WithHelp("n", "cancel"),
	)
	confirmLeft = key.NewBinding(
		key.WithKeys("left", "h"),
	)
	confirmRight = key.NewBinding(
		key.WithKeys("right", "l"),
	)
	confirmTab = key.NewBinding(
		key.WithKeys("tab"),
	)
	confirmShiftTab = key.NewBinding(
		key.WithKeys("shift+tab"),
	)
)
