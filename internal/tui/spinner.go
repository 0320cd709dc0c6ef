package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// spinnerModel shows a spinner next to a message until stopped.
type spinnerModel struct {
	spinner  spinner.Model
	message  string
	stopping bool
}

// spinnerStopMsg ends the spinner program and clears its line.
type spinnerStopMsg struct{}

func newSpinnerModel(message string) spinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(spinnerStyle),
	)
	return spinnerModel{spinner: s, message: message}
}

func (m spinnerModel) Init() tea.Cmd { return m.spinner.Tick }

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerStopMsg:
		m.stopping = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.stopping {
		return ""
	}
	return m.spinner.View() + mutedStyle.Render(m.message)
}

// Spinner is a wait indicator. On a terminal it animates; otherwise it
// prints the message once.
type Spinner struct {
	out    io.Writer
	styled bool

	mu   sync.Mutex
	prog *tea.Program
	done chan struct{}
}

// NewSpinner creates a Spinner drawing on out.
func NewSpinner(out io.Writer, styled bool) *Spinner {
	return &Spinner{out: out, styled: styled}
}

// Start shows message. A running spinner is replaced.
func (s *Spinner) Start(message string) {
	s.Stop()
	if !s.styled {
		fmt.Fprintln(s.out, message)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prog = tea.NewProgram(newSpinnerModel(message),
		tea.WithOutput(s.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	s.done = make(chan struct{})
	go func(p *tea.Program, done chan struct{}) {
		_, _ = p.Run()
		close(done)
	}(s.prog, s.done)
}

// Stop clears the spinner. It is safe to call when nothing is running.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prog == nil {
		return
	}
	s.prog.Send(spinnerStopMsg{})
	<-s.done
	s.prog = nil
}
