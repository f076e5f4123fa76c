package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrPromptCancelled is returned when the user leaves a prompt with esc.
var ErrPromptCancelled = errors.New("input cancelled")

// PromptOptions configures PromptInput.
type PromptOptions struct {
	Title       string
	Hint        string
	Placeholder string
	Secret      bool
	Validate    func(string) error
}

// PromptInput asks for a single line of text.
func PromptInput(opts PromptOptions) (string, error) {
	final, err := tea.NewProgram(newPromptModel(opts)).Run()
	if err != nil {
		return "", fmt.Errorf("run prompt: %w", err)
	}
	result := final.(promptModel)
	if result.quit {
		return "", ErrPromptCancelled
	}
	return result.value, nil
}

type promptModel struct {
	opts      PromptOptions
	textInput textinput.Model
	value     string
	err       error
	quit      bool
}

func newPromptModel(opts PromptOptions) promptModel {
	ti := textinput.New()
	ti.Placeholder = opts.Placeholder
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50
	if opts.Secret {
		ti.EchoMode = textinput.EchoPassword
	}
	return promptModel{opts: opts, textInput: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			v := m.textInput.Value()
			if m.opts.Validate != nil {
				if err := m.opts.Validate(v); err != nil {
					m.err = err
					return m, nil
				}
			}
			m.value = v
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quit = true
			return m, tea.Quit
		}
	}

	m.err = nil
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	s := "\n" + StyleSelectTitle.Render(m.opts.Title) + "\n"
	if m.opts.Hint != "" {
		s += StyleSubtle.Render(m.opts.Hint) + "\n"
	}
	s += "\n" + m.textInput.View() + "\n"
	if m.err != nil {
		s += StyleError.Render(m.err.Error()) + "\n"
	}
	s += "\n" + StyleSubtle.Render("Press Enter to confirm • Esc to cancel") + "\n"
	return s
}
