package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/xpander-ai/xpander-cli/internal/api"
)

const (
	pickerDefaultWidth  = 72
	pickerDefaultHeight = 14
)

// agentItem adapts an api.Agent to list.DefaultItem.
type agentItem struct {
	agent api.Agent
	width int
}

// An agent without an ID is the entry for creating a new one.
func (i agentItem) isNew() bool { return i.agent.ID == "" }

func (i agentItem) Title() string {
	if i.isNew() {
		return "+ Create a new agent"
	}
	return ansi.Truncate(i.agent.Name, max(8, i.width-4), "…")
}

func (i agentItem) Description() string {
	if i.isNew() {
		return "deploy this project as a new agent"
	}
	desc := fmt.Sprintf("%s  created %s", i.agent.ID, i.agent.CreatedAt.Local().Format("2006-01-02 15:04"))
	if i.agent.Status != "" {
		desc += "  " + i.agent.Status
	}
	return ansi.Truncate(desc, max(8, i.width-4), "…")
}

func (i agentItem) FilterValue() string {
	if i.isNew() {
		return "create new agent"
	}
	return i.agent.Name + " " + i.agent.ID
}

// pickerModel lets the user choose one agent from a list. The cursor
// starts on the first candidate.
type pickerModel struct {
	title string
	list  list.Model
	help  help.Model

	width  int
	height int

	chosen  *api.Agent
	aborted bool
}

func newPickerModel(title string, agents []api.Agent) pickerModel {
	items := make([]list.Item, len(agents))
	for i, a := range agents {
		items[i] = agentItem{agent: a, width: pickerDefaultWidth}
	}

	l := list.New(items, newAgentDelegate(), pickerDefaultWidth, pickerDefaultHeight)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()
	l.SetShowPagination(len(agents) > 4)

	return pickerModel{
		title:  title,
		list:   l,
		help:   help.New(),
		width:  pickerDefaultWidth,
		height: pickerDefaultHeight,
	}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = min(msg.Width, pickerDefaultWidth)
		m.height = min(msg.Height-4, pickerDefaultHeight)
		m.list.SetSize(m.width, max(3, m.height))
		return m, nil

	case tea.KeyMsg:
		// Don't intercept keys while filtering.
		if m.list.SettingFilter() {
			break
		}

		switch {
		case key.Matches(msg, keys.Quit), key.Matches(msg, keys.Back):
			m.aborted = true
			return m, tea.Quit

		case key.Matches(msg, keys.Enter):
			if it, ok := m.list.SelectedItem().(agentItem); ok {
				a := it.agent
				m.chosen = &a
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.chosen != nil || m.aborted {
		return ""
	}
	header := sectionHeaderStyle.Render("  "+m.title) + "\n"
	footer := "\n" + helpStyle.Render("  "+m.help.View(pickerHelpKeyMap{}))
	return lipgloss.JoinVertical(lipgloss.Left, header, m.list.View(), footer)
}
