package render

import "github.com/charmbracelet/lipgloss"

// Theme defines all colors used by the plan renderer.
// Use DarkTheme() or LightTheme() to get a pre-built theme,
// or construct a custom Theme.
type Theme struct {
	Primary   lipgloss.Color // warm accent, plan title
	Secondary lipgloss.Color // cool accent, day headings
	Error     lipgloss.Color // failure message
	Warning   lipgloss.Color // recovery reason
	Success   lipgloss.Color // task bullets
	Text      lipgloss.Color // primary text
	TextMuted lipgloss.Color // raw output, debug context
	Border    lipgloss.Color // separators, borders
}

// DarkTheme returns the default dark theme.
func DarkTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#fab283"),
		Secondary: lipgloss.Color("#5c9cf5"),
		Error:     lipgloss.Color("#e06c75"),
		Warning:   lipgloss.Color("#f5a742"),
		Success:   lipgloss.Color("#7fd88f"),
		Text:      lipgloss.Color("#eeeeee"),
		TextMuted: lipgloss.Color("#808080"),
		Border:    lipgloss.Color("#484848"),
	}
}

// LightTheme returns a light theme for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#b35c00"),
		Secondary: lipgloss.Color("#0550ae"),
		Error:     lipgloss.Color("#cf222e"),
		Warning:   lipgloss.Color("#bf8700"),
		Success:   lipgloss.Color("#116329"),
		Text:      lipgloss.Color("#1f2328"),
		TextMuted: lipgloss.Color("#656d76"),
		Border:    lipgloss.Color("#d0d7de"),
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	default:
		return DarkTheme()
	}
}

// styles holds all lipgloss styles derived from a Theme.
type styles struct {
	title   lipgloss.Style
	day     lipgloss.Style
	bullet  lipgloss.Style
	text    lipgloss.Style
	err     lipgloss.Style
	reason  lipgloss.Style
	dim     lipgloss.Style
	rawBox  lipgloss.Style
	divider lipgloss.Style
}

// newStyles builds all styles from a theme.
func newStyles(t Theme) styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		day:     lipgloss.NewStyle().Bold(true).Foreground(t.Secondary),
		bullet:  lipgloss.NewStyle().Foreground(t.Success),
		text:    lipgloss.NewStyle().Foreground(t.Text),
		err:     lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		reason:  lipgloss.NewStyle().Foreground(t.Warning),
		dim:     lipgloss.NewStyle().Foreground(t.TextMuted),
		rawBox:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Foreground(t.TextMuted).Padding(0, 1),
		divider: lipgloss.NewStyle().Foreground(t.Border),
	}
}
