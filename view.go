package main

import (
	"strings"

	"wave-portal-tui/helpers"
	"wave-portal-tui/styles"
	"wave-portal-tui/views/alert"
	logview "wave-portal-tui/views/log"
	"wave-portal-tui/views/unlock"
	"wave-portal-tui/views/waves"

	"github.com/charmbracelet/lipgloss"
)

// -------------------- VIEW --------------------

func (m *model) View() string {
	if m.authForm != nil {
		return unlock.Render(m.w, m.h, m.authForm)
	}
	if a := m.alertText(); a != "" {
		return alert.Render(m.w, m.h, a)
	}
	if m.showQR {
		if link := m.txLink(); link != "" {
			return m.renderQR(link)
		}
	}

	account := ""
	if m.portal != nil {
		account = m.portal.Account()
	}
	header := styles.PanelStyle.Width(max(0, m.w-2)).Render(
		waves.Header(m.w, account, m.rpcState(), m.rpcConnected),
	)

	var body strings.Builder
	body.WriteString(waves.Bio(m.w))
	body.WriteString("\n\n")

	if m.hasSession() {
		body.WriteString(m.input.View())
	} else {
		body.WriteString(waves.ConnectButton())
	}

	if m.portal != nil && m.portal.Connecting() {
		body.WriteString("\n\n" + m.spin.View() + " waiting for the wallet…")
	}
	if m.portal != nil {
		if tip := waves.Tip(m.portal.Status(), m.spin.View()); tip != "" {
			body.WriteString("\n\n" + tip)
		}
	} else if m.rpcConnecting {
		body.WriteString("\n\n" + m.spin.View() + " connecting to " + m.rpcURL)
	}
	if m.copiedMsg != "" {
		body.WriteString("\n" + lipgloss.NewStyle().Foreground(styles.CAccent).Render(m.copiedMsg))
	}

	if m.portal != nil {
		body.WriteString("\n\n" + waves.Frame(len(m.portal.Waves()), m.wavesViewport))
	}

	page := styles.PanelStyle.Width(max(0, m.w-2)).Render(body.String())
	nav := waves.Nav(m.w, m.hasSession(), m.editing)

	sections := []string{header, page, nav}
	if m.logEnabled && m.logReady {
		sections = append(sections, logview.Render(m.w, m.logViewport))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderQR shows the pending transaction link as a QR code
func (m *model) renderQR(link string) string {
	title := styles.TitleStyle.Render("Scan to view the wave transaction")
	content := title + "\n\n" + helpers.GenerateQRCode(link) + "\n" +
		styles.MutedStyle.Render(link) + "\n\n" +
		styles.Key("Q") + " close   " + styles.Key("y") + " copy link"
	return lipgloss.Place(m.w, m.h, lipgloss.Center, lipgloss.Center, styles.PanelStyle.Render(content))
}
