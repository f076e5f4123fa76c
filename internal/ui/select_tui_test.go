package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planperfect/planperfect/internal/selection"
)

func press(t *testing.T, m SelectModel[int], keys ...string) SelectModel[int] {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(SelectModel[int])
		require.True(t, ok)
	}
	return m
}

func themeModel() (SelectModel[int], *selection.ThemePicker) {
	p := selection.NewThemePicker()
	var items []SelectItem[int]
	for _, th := range selection.Themes() {
		items = append(items, SelectItem[int]{Key: th.ID, Label: th.Name})
	}
	return NewSelectModel("Pick your themes", items, p), p
}

func TestSelect_ThemeCapDisablesTheRest(t *testing.T) {
	m, p := themeModel()

	// Contemporary (3rd) then Japanese (7th).
	m = press(t, m, "down", "down", " ", "down", "down", "down", "down", " ")

	assert.Equal(t, []string{"Contemporary", "Japanese"}, p.Names())
	assert.True(t, p.Disabled(1))

	m = press(t, m, "down", " ")
	assert.Contains(t, m.notice, "at most 2")
	assert.Equal(t, []string{"Contemporary", "Japanese"}, p.Names())
	assert.Contains(t, m.View(), "(2/2)")
}

func TestSelect_EnterRequiresSelection(t *testing.T) {
	m, _ := themeModel()

	m = press(t, m, "enter")
	assert.False(t, m.done)
	assert.Equal(t, "Select at least one option.", m.notice)

	m = press(t, m, " ", "enter")
	assert.True(t, m.done)
}

func TestSelect_ToggleOffFreesSlot(t *testing.T) {
	m, p := themeModel()
	m = press(t, m, " ", "down", " ")
	require.True(t, p.AtMax())

	m = press(t, m, " ")
	assert.False(t, p.AtMax())
	assert.Empty(t, m.notice)
}

func TestSelect_Cancel(t *testing.T) {
	m, _ := themeModel()
	m = press(t, m, "q")
	assert.True(t, m.quit)
}
