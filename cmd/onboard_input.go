package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/selection"
	"github.com/planperfect/planperfect/internal/ui"
	"github.com/planperfect/planperfect/internal/wizard"
)

// parseAmount reads "45000", "45,000", "$45k" or "1.2m".
func parseAmount(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1_000, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1_000_000, strings.TrimSuffix(s, "m")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%q is not an amount", s)
	}
	return int(v * mult), nil
}

// parseBudget reads a "min-max" range.
func parseBudget(s string) (lo, hi int, err error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("budget %q must be a range like 20000-60000", s)
	}
	if lo, err = parseAmount(from); err != nil {
		return 0, 0, err
	}
	if hi, err = parseAmount(to); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// parsePreferences reads "budget, occupants[, lifestyle...]", for example
// "20k-60k, 2, pets, works from home".
func parsePreferences(input string) (api.Preferences, error) {
	parts := splitList(input)
	if len(parts) < 2 {
		return api.Preferences{}, errors.New("enter a budget range and the number of occupants, e.g. 20000-60000, 2")
	}
	lo, hi, err := parseBudget(parts[0])
	if err != nil {
		return api.Preferences{}, err
	}
	occupants, err := strconv.Atoi(parts[1])
	if err != nil {
		return api.Preferences{}, fmt.Errorf("occupants %q is not a number", parts[1])
	}
	prefs := api.Preferences{
		BudgetMin: lo,
		BudgetMax: hi,
		Occupants: occupants,
		Lifestyle: parts[2:],
	}
	if err := wizard.ValidatePreferences(prefs); err != nil {
		return api.Preferences{}, err
	}
	return prefs, nil
}

// applyRoomCount applies a "room=count" correction from the review step.
func applyRoomCount(counts *api.RoomCounts, input string) error {
	key, val, ok := strings.Cut(input, "=")
	if !ok {
		return fmt.Errorf("expected room=count, got %q", input)
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n < 0 {
		return fmt.Errorf("count %q must be a whole number", strings.TrimSpace(val))
	}
	key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
	switch key {
	case "bedroom", "bedrooms":
		counts.Bedroom = n
	case "bathroom", "bathrooms":
		counts.Bathroom = n
	case "kitchen", "kitchens":
		counts.Kitchen = n
	case "living_room", "living_rooms", "living":
		counts.LivingRoom = n
	case "balcony", "balconies":
		counts.Balcony = n
	case "study", "studies":
		counts.Study = n
	default:
		return fmt.Errorf("unknown room %q", key)
	}
	return nil
}

// pickThemes replaces the picker's selection with the listed theme ids.
func pickThemes(p *selection.ThemePicker, input string) ([]string, error) {
	next := selection.NewThemePicker()
	for _, field := range splitList(input) {
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("theme %q is not an id", field)
		}
		if next.Has(id) {
			continue
		}
		if _, err := next.Toggle(id); err != nil {
			return nil, err
		}
	}
	p.Reset()
	for _, id := range next.Selected() {
		_ = p.Select(id)
	}
	return p.Names(), nil
}

// pickFurniture replaces the picker's selection with the listed classes,
// which must all have been detected.
func pickFurniture(p *selection.Capped[string], classes []string, input string) ([]string, error) {
	known := make(map[string]string, len(classes))
	for _, c := range classes {
		known[strings.ToLower(c)] = c
	}
	next := selection.NewFurniturePicker()
	for _, field := range splitList(input) {
		key := strings.ReplaceAll(strings.ToLower(field), " ", "_")
		class, ok := known[key]
		if !ok {
			class, ok = known[strings.ToLower(field)]
		}
		if !ok {
			return nil, fmt.Errorf("%q was not detected in your photo", field)
		}
		if err := next.Select(class); err != nil {
			return nil, err
		}
	}
	p.Reset()
	for _, c := range next.Selected() {
		_ = p.Select(c)
	}
	return p.Selected(), nil
}

func summarizePreferences(p *api.Preferences) string {
	if p == nil {
		return ""
	}
	s := fmt.Sprintf("Budget %d-%d, %d occupant(s)", p.BudgetMin, p.BudgetMax, p.Occupants)
	if len(p.Lifestyle) > 0 {
		s += ", " + strings.Join(p.Lifestyle, ", ")
	}
	return s
}

func summarizeExtraction(e *api.Extraction) string {
	if e == nil {
		return ""
	}
	c := e.Counts
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s, %d rooms\n", e.Unit.UnitType, e.Unit.UnitSize, e.Unit.Rooms)
	fmt.Fprintf(&b, "bedroom=%d bathroom=%d kitchen=%d living_room=%d balcony=%d study=%d",
		c.Bedroom, c.Bathroom, c.Kitchen, c.LivingRoom, c.Balcony, c.Study)
	return b.String()
}

func summarizeStyles(styles []api.GeneratedStyle) string {
	if len(styles) == 0 {
		return ""
	}
	var b strings.Builder
	for i, st := range styles {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "◆ %s: %s", st.Name, ui.Truncate(st.Description, 70))
	}
	return b.String()
}

func summarizeFurniture(furniture []string) string {
	labels := make([]string, 0, len(furniture))
	for _, f := range furniture {
		labels = append(labels, ui.Label(f))
	}
	return strings.Join(labels, ", ")
}
