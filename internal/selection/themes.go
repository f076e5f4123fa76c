package selection

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/planperfect/planperfect/internal/config"
	"gopkg.in/yaml.v3"
)

//go:embed themes.yaml
var themesYAML []byte

// Theme is one selectable interior style.
type Theme struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

var loadThemes = sync.OnceValues(func() ([]Theme, error) {
	var doc struct {
		Themes []Theme `yaml:"themes"`
	}
	if err := yaml.Unmarshal(themesYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse themes: %w", err)
	}
	return doc.Themes, nil
})

// Themes returns the built-in catalogue.
func Themes() []Theme {
	themes, err := loadThemes()
	if err != nil {
		// The catalogue is embedded; failing to parse it is a build defect.
		panic(err)
	}
	return append([]Theme(nil), themes...)
}

// ThemeByID looks a theme up.
func ThemeByID(id int) (Theme, bool) {
	for _, t := range Themes() {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// ThemePicker is the capped theme selection.
type ThemePicker struct {
	*Capped[int]
}

// NewThemePicker allows config.MaxThemeSelection themes.
func NewThemePicker() *ThemePicker {
	return &ThemePicker{Capped: NewCapped[int](config.MaxThemeSelection)}
}

// Names returns the selected theme names in selection order.
func (p *ThemePicker) Names() []string {
	ids := p.Selected()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if t, ok := ThemeByID(id); ok {
			names = append(names, t.Name)
		}
	}
	return names
}

// Toggle rejects ids outside the catalogue.
func (p *ThemePicker) Toggle(id int) (bool, error) {
	if _, ok := ThemeByID(id); !ok {
		return false, fmt.Errorf("unknown theme %d", id)
	}
	return p.Capped.Toggle(id)
}

// NewFurniturePicker allows config.MaxFurnitureSelection furniture classes.
func NewFurniturePicker() *Capped[string] {
	return NewCapped[string](config.MaxFurnitureSelection)
}
