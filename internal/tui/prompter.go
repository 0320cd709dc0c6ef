// Package tui holds the interactive pieces of the CLI: confirmation and
// agent picker prompts, the log wait spinner, upload progress, and error
// remediation rendering.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xpander-ai/xpander-cli/internal/api"
)

// ErrAborted is returned when the user aborts a prompt with ctrl+c or esc.
var ErrAborted = errors.New("aborted by user")

// Prompter asks the user questions on a terminal.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// NewPrompter creates a Prompter reading keys from in and drawing on out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// Confirm shows a yes/no dialog. Focus starts on Yes.
func (p *Prompter) Confirm(ctx context.Context, message string) (bool, error) {
	final, err := p.run(ctx, newConfirmModel(message, true))
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.aborted {
		return false, ErrAborted
	}
	return m.confirmed, nil
}

// ChooseAgent shows the agent picker. Candidates are listed in the order
// given; name is the reference they matched, if any.
func (p *Prompter) ChooseAgent(ctx context.Context, name string, candidates []api.Agent) (api.Agent, error) {
	if len(candidates) == 0 {
		return api.Agent{}, errors.New("no agents to choose from")
	}
	title := "Select an agent"
	if name != "" {
		title = fmt.Sprintf("%d agents are named %q, pick one", len(candidates), name)
	}

	final, err := p.run(ctx, newPickerModel(title, candidates))
	if err != nil {
		return api.Agent{}, err
	}
	m := final.(pickerModel)
	if m.aborted || m.chosen == nil {
		return api.Agent{}, ErrAborted
	}
	return *m.chosen, nil
}

func (p *Prompter) run(ctx context.Context, model tea.Model) (tea.Model, error) {
	prog := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	final, err := prog.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("running prompt: %w", err)
	}
	return final, nil
}
