package tui

import "github.com/charmbracelet/lipgloss"

var (
	linkedInBlue = lipgloss.Color("#0A66C2")
	accentGreen  = lipgloss.Color("#57A55A")
	accentAmber  = lipgloss.Color("#E7A33E")
	accentRed    = lipgloss.Color("#CC1016")
	dimGrey      = lipgloss.Color("#8C8C8C")

	titleStyle = lipgloss.NewStyle().
			Background(linkedInBlue).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(linkedInBlue).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(linkedInBlue).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	profileNameStyle = lipgloss.NewStyle().Bold(true)

	profileDetailStyle = lipgloss.NewStyle().
				Foreground(dimGrey)

	successStyle = lipgloss.NewStyle().
			Foreground(accentGreen).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentAmber).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(accentRed).
			Bold(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(dimGrey)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimGrey).
			PaddingTop(1)
)

// levelStyle picks the style for a log level
func levelStyle(level string) lipgloss.Style {
	switch level {
	case "ERROR":
		return errorStyle
	case "WARN":
		return warningStyle
	case "SUCCESS":
		return successStyle
	default:
		return profileDetailStyle
	}
}
