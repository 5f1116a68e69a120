package log

import (
	"fmt"

	"wave-portal-tui/helpers"
	"wave-portal-tui/styles"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// Height returns how many viewport lines the panel gets for a screen of
// the given height: a third of the screen, between 3 and 12 lines.
func Height(screen int) int {
	return helpers.Max(3, helpers.Min(screen/3, 12))
}

// Render renders the log panel. vp must already be sized with Height.
func Render(width int, vp viewport.Model) string {
	title := styles.TitleStyle.Render("Log")

	info := ""
	if total := vp.TotalLineCount(); total > vp.Height {
		info = styles.MutedStyle.Render(fmt.Sprintf(" [%d%%]", int(vp.ScrollPercent()*100)))
	}

	border := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.CBorder).
		Padding(0, 1).
		Width(helpers.Max(0, width-2))

	return border.Render(title + info + "\n" + vp.View())
}
