package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorPrimary   = lipgloss.Color("173") // Terracotta
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange/Yellow
	ColorText      = lipgloss.Color("252") // White/Gray
	ColorCyan      = lipgloss.Color("87")  // Cyan for info
	ColorBlue      = lipgloss.Color("75")  // Blue for the assistant
	ColorSelected  = lipgloss.Color("42")

	// Base Styles
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)

	// Input Box Style for textarea border
	StyleInputBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary).
			Padding(0, 1)

	// Assistant reply box
	StyleAnswerBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBlue).
			Padding(0, 1)

	// Components
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleSectionTitle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				Underline(true)

	// Selection lists
	StyleSelectTitle    = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleSelectNormal   = lipgloss.NewStyle().Foreground(ColorText)
	StyleSelectActive   = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleSelectDim      = lipgloss.NewStyle().Foreground(ColorSecondary)
	StyleSelectDisabled = lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Strikethrough(true)

	// Semantic Prefix Styles
	StylePrefixThinking = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrefixDone     = lipgloss.NewStyle().Foreground(ColorSuccess)
	StylePrefixWarn     = lipgloss.NewStyle().Foreground(ColorWarning)
	StylePrefixError    = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StylePrefixAgent    = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)
	StylePrefixUser     = lipgloss.NewStyle().Foreground(ColorSuccess)
	StylePrefixInfo     = lipgloss.NewStyle().Foreground(ColorCyan)
)

// Icon returns a styled icon string
func Icon(icon string, style lipgloss.Style) string {
	return style.Render(icon)
}
