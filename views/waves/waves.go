// Package waves renders the portal page: greeting, wave input, status tip
// and the list of recorded waves.
package waves

import (
	"fmt"
	"strings"

	"wave-portal-tui/helpers"
	"wave-portal-tui/portal"
	"wave-portal-tui/styles"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

const bio = "You can wave at me on Goerli testnet network!"

// Header renders the greeting line with the connected account and RPC state
func Header(width int, account, rpcState string, rpcOK bool) string {
	available := helpers.Max(0, width-8)

	title := helpers.FadeString("👋 Hey there!", "#7EE787", "#82CFFD")

	var acct string
	if account != "" {
		acct = styles.TitleStyle.Render("Account: ") + helpers.FadeString(helpers.ShortenAddr(account), "#F25D94", "#EDFF82")
	} else {
		acct = styles.MutedStyle.Render("Account: not connected")
	}

	icon, color := "○", lipgloss.Color("#c01c28")
	if rpcOK {
		icon, color = "●", styles.CAccent
	}
	rpc := lipgloss.NewStyle().Foreground(color).Bold(true).Render(icon + " " + rpcState)

	used := lipgloss.Width(title) + lipgloss.Width(acct) + lipgloss.Width(rpc)
	var line string
	if used+4 > available {
		line = title + "\n" + acct + "\n" + rpc
	} else {
		rest := available - used
		left := rest / 2
		line = acct + strings.Repeat(" ", helpers.Max(1, left)) + title + strings.Repeat(" ", helpers.Max(1, rest-left)) + rpc
	}

	sep := lipgloss.NewStyle().Foreground(styles.CBorder).Render(strings.Repeat("─", available))
	return line + "\n" + sep
}

// Bio renders the introduction paragraph
func Bio(width int) string {
	return lipgloss.NewStyle().
		Foreground(styles.CMuted).
		Width(helpers.Max(10, width-8)).
		Align(lipgloss.Center).
		Render(bio)
}

// ConnectButton is shown instead of the input while there is no session
func ConnectButton() string {
	return styles.ButtonStyle.Render("Connect Wallet") + "  " + styles.MutedStyle.Render("press "+styles.Key("c"))
}

// Tip renders the status notice. Links are emitted as terminal hyperlinks
// and also printed so terminals without OSC 8 support can show them.
func Tip(st portal.Status, spinnerView string) string {
	if st.Empty() {
		return ""
	}

	var color lipgloss.Color
	prefix := ""
	switch st.Kind {
	case portal.StatusPending:
		color = styles.CWarn
		prefix = spinnerView + " "
	case portal.StatusSuccess:
		color = styles.CAccent
	default:
		color = styles.CAccent2
	}

	text := lipgloss.NewStyle().Foreground(color).Render(st.Text)
	if st.Link != "" {
		text = helpers.Hyperlink(st.Link, text)
	}
	out := prefix + styles.TitleStyle.Render("Tip: ") + text
	if st.Link != "" {
		out += "\n" + styles.MutedStyle.Render(st.Link)
	}
	return out
}

// List renders every wave in order, one card each
func List(records []portal.Record, width int) string {
	if len(records) == 0 {
		return styles.MutedStyle.Render("No waves yet.")
	}

	card := styles.WaveCardStyle.Width(helpers.Max(20, width-8))
	label := lipgloss.NewStyle().Bold(true)

	var sb strings.Builder
	for i, r := range records {
		if i > 0 {
			sb.WriteString("\n")
		}
		body := label.Render("Address: ") + r.Address + "\n" +
			label.Render("Time: ") + helpers.FormatWaveTime(r.Timestamp) + "\n" +
			label.Render("Message: ") + r.Message
		sb.WriteString(card.Render(body))
	}
	return sb.String()
}

// Frame renders the wave count and the scrollable list viewport
func Frame(count int, vp viewport.Model) string {
	title := styles.TitleStyle.Render(helpers.Plural(count, "wave"))
	if vp.TotalLineCount() > vp.Height {
		title += styles.MutedStyle.Render(fmt.Sprintf(" [%d%%]", int(vp.ScrollPercent()*100)))
	}
	return title + "\n" + vp.View()
}

// Nav renders the hotkey bar for the current state
func Nav(width int, connected, editing bool) string {
	var keys []string
	switch {
	case editing:
		keys = []string{styles.Key("enter") + " wave", styles.Key("esc") + " stop editing", styles.Key("ctrl+v") + " paste"}
	case connected:
		keys = []string{styles.Key("i") + " write", styles.Key("enter") + " wave", styles.Key("↑/↓") + " scroll", styles.Key("r") + " refresh", styles.Key("y") + " copy tx link", styles.Key("Q") + " qr", styles.Key("l") + " log", styles.Key("q") + " quit"}
	default:
		keys = []string{styles.Key("c") + " connect", styles.Key("r") + " refresh", styles.Key("l") + " log", styles.Key("q") + " quit"}
	}
	return styles.NavStyle.Width(helpers.Max(0, width-2)).Render(strings.Join(keys, "   "))
}
