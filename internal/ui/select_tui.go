package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/planperfect/planperfect/internal/selection"
)

// Picker is a capped multi-selection.
type Picker[K comparable] interface {
	Toggle(k K) (bool, error)
	Has(k K) bool
	Disabled(k K) bool
	Len() int
	Max() int
}

// SelectItem is one row of a selection list.
type SelectItem[K comparable] struct {
	Key         K
	Label       string
	Description string
}

// ErrSelectionCancelled is returned when the user leaves a list with esc.
var ErrSelectionCancelled = errors.New("selection cancelled")

// SelectModel is a checkbox list backed by a Picker. Rows that cannot be
// selected because the cap is reached are rendered disabled.
type SelectModel[K comparable] struct {
	title  string
	items  []SelectItem[K]
	picker Picker[K]
	cursor int
	notice string
	done   bool
	quit   bool
}

// NewSelectModel creates a list over items.
func NewSelectModel[K comparable](title string, items []SelectItem[K], picker Picker[K]) SelectModel[K] {
	return SelectModel[K]{title: title, items: items, picker: picker}
}

func (m SelectModel[K]) Init() tea.Cmd {
	return nil
}

func (m SelectModel[K]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.quit = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case " ", "x":
		if len(m.items) == 0 {
			return m, nil
		}
		m.notice = ""
		if _, err := m.picker.Toggle(m.items[m.cursor].Key); err != nil {
			if errors.Is(err, selection.ErrAtMax) {
				m.notice = fmt.Sprintf("You can pick at most %d. Deselect one first.", m.picker.Max())
			} else {
				m.notice = err.Error()
			}
		}
	case "enter":
		if m.picker.Len() == 0 {
			m.notice = "Select at least one option."
			return m, nil
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m SelectModel[K]) View() string {
	checked := lipgloss.NewStyle().Foreground(ColorSelected)

	var b strings.Builder
	b.WriteString("\n" + StyleSelectTitle.Render(m.title) + " ")
	b.WriteString(StyleSelectDim.Render(fmt.Sprintf("(%d/%d)", m.picker.Len(), m.picker.Max())) + "\n\n")

	for i, it := range m.items {
		cursor := "  "
		box := "[ ]"
		style := StyleSelectNormal
		switch {
		case m.picker.Has(it.Key):
			box = checked.Render("[✓]")
		case m.picker.Disabled(it.Key):
			style = StyleSelectDisabled
		}
		if m.cursor == i {
			cursor = "▶ "
			if !m.picker.Disabled(it.Key) {
				style = StyleSelectActive
			}
		}
		line := cursor + box + " " + style.Render(it.Label)
		if it.Description != "" {
			line += StyleSelectDim.Render(" - " + it.Description)
		}
		b.WriteString(line + "\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + StyleWarning.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + StyleSelectDim.Render("↑/↓ navigate • space toggle • enter confirm • esc cancel") + "\n")
	return b.String()
}

func runSelect[K comparable](m SelectModel[K]) error {
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return fmt.Errorf("run selection: %w", err)
	}
	if res, ok := final.(SelectModel[K]); ok && res.quit {
		return ErrSelectionCancelled
	}
	return nil
}

// PromptThemes lets the user pick style themes into p.
func PromptThemes(p *selection.ThemePicker) ([]string, error) {
	themes := selection.Themes()
	items := make([]SelectItem[int], 0, len(themes))
	for _, t := range themes {
		items = append(items, SelectItem[int]{Key: t.ID, Label: t.Name, Description: t.Description})
	}
	if err := runSelect(NewSelectModel[int]("Pick your themes", items, p)); err != nil {
		return nil, err
	}
	return p.Names(), nil
}

// PromptFurniture lets the user pick detected furniture classes into p.
func PromptFurniture(classes []string, p Picker[string]) error {
	items := make([]SelectItem[string], 0, len(classes))
	for _, c := range classes {
		items = append(items, SelectItem[string]{Key: c, Label: Label(c)})
	}
	return runSelect(NewSelectModel("Choose furniture to replace", items, p))
}
