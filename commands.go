package main

import (
	"time"

	"wave-portal-tui/config"
	"wave-portal-tui/rpc"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// -------------------- COMMAND FUNCTIONS --------------------
// Functions that return tea.Cmd for async operations

// connectRPC establishes an RPC connection to the Ethereum node
func connectRPC(url string) tea.Cmd {
	return func() tea.Msg {
		result := rpc.Connect(url)
		return rpcConnectedMsg{client: result.Client, err: result.Error}
	}
}

// initLogViewport initializes the log viewport
func initLogViewport() tea.Cmd {
	return func() tea.Msg {
		return logInitMsg{}
	}
}

// copyToClipboard copies text to clipboard
func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return nil
		}
		return clipboardCopiedMsg{}
	}
}

// clearClipboardAfter waits 2 seconds then clears clipboard feedback
func clearClipboardAfter() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return clearClipboardMsg{}
	})
}

// waitForAuthRequest blocks until the wallet asks for a passphrase
func waitForAuthRequest(b *authBridge) tea.Cmd {
	return func() tea.Msg {
		return authRequestMsg{req: <-b.requests}
	}
}

// saveLogSetting persists the log panel toggle without writing any of the
// runtime overrides back to the file.
func saveLogSetting(path string, enabled bool) error {
	cfg := config.Load(path)
	cfg.Logger = enabled
	return config.Save(path, cfg)
}
