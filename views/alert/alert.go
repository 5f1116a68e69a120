package alert

import (
	"wave-portal-tui/helpers"

	"github.com/charmbracelet/lipgloss"
)

var (
	dialogBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 2)

	okButtonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Background(lipgloss.Color("#F25D94")).
			Padding(0, 3).
			MarginTop(1).
			Underline(true)
)

// Render draws msg in a modal box centered in a width x height area.
// The only action is OK, bound to enter or esc.
func Render(width, height int, msg string) string {
	text := helpers.FadeString(msg, "#F25D94", "#EDFF82")
	question := lipgloss.NewStyle().Width(50).Align(lipgloss.Center).Render(text)
	ui := lipgloss.JoinVertical(lipgloss.Center, question, okButtonStyle.Render("OK"))

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		dialogBoxStyle.Render(ui),
	)
}
