package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestPromptModel_Validation(t *testing.T) {
	m := newPromptModel(PromptOptions{
		Title: "Email",
		Validate: func(s string) error {
			if s == "" {
				return errors.New("email is required")
			}
			return nil
		},
	})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(promptModel)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "email is required")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ada@example.com")})
	m = next.(promptModel)
	assert.NoError(t, m.err)

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(promptModel)
	assert.NotNil(t, cmd)
	assert.Equal(t, "ada@example.com", m.value)
}

func TestPromptModel_Cancel(t *testing.T) {
	next, _ := newPromptModel(PromptOptions{Title: "Key", Secret: true}).Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, next.(promptModel).quit)
}
