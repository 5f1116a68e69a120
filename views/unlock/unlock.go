// Package unlock renders the keystore passphrase prompt
package unlock

import (
	"wave-portal-tui/helpers"
	"wave-portal-tui/styles"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Passphrase holds the value bound to the form input
var Passphrase string

// CreateForm builds the prompt shown when the wallet asks to authorize account
func CreateForm(account string) *huh.Form {
	Passphrase = ""
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Unlock "+helpers.ShortenAddr(account)).
				Description("Enter the keystore passphrase to connect. Esc rejects.").
				EchoMode(huh.EchoModePassword).
				Value(&Passphrase),
		),
	).WithShowHelp(false)
}

// Render places the form in a bordered panel centered on screen
func Render(width, height int, form *huh.Form) string {
	box := styles.PanelStyle.
		BorderForeground(styles.CAccent2).
		Width(helpers.Min(60, helpers.Max(20, width-4)))
	content := styles.TitleStyle.Render("Authorization request") + "\n\n" + form.View()
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(content))
}
