package main

import (
	"time"

	"wave-portal-tui/portal"
	"wave-portal-tui/rpc"
	logview "wave-portal-tui/views/log"
	"wave-portal-tui/views/unlock"
	"wave-portal-tui/wallet"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"
)

// -------------------- UPDATE --------------------

// Update implements tea.Model interface and handles all messages and state transitions
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	hadSession := m.hasSession()

	// the portal sees every message and ignores the ones it does not own
	if m.portal != nil {
		cmds = append(cmds, m.portal.Update(msg))
	}

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.w, m.h = msg.Width, msg.Height
		m.logViewport.Width = max(0, msg.Width-6)
		m.logViewport.Height = logview.Height(msg.Height)
		if m.authForm != nil {
			cmds = append(cmds, m.updateAuthForm(msg))
		}

	case logInitMsg:
		m.logReady = true

	case rpcConnectedMsg:
		m.rpcConnecting = false
		if msg.err != nil {
			m.ethClient = nil
			m.rpcConnected = false
			m.logger.Error("RPC connection failed", "url", m.rpcURL, "err", msg.err)
			break
		}
		m.ethClient = msg.client
		m.rpcConnected = true
		m.logger.Info("RPC connected", "url", msg.client.URL)
		if m.portal == nil {
			contract := rpc.NewWaveContract(msg.client, common.HexToAddress(m.cfg.Contract))
			contract.Logger = m.logger
			m.portal = portal.New(portal.Options{
				Provider:    m.provider,
				Contract:    contract,
				Logger:      m.logger,
				ExplorerURL: m.cfg.ExplorerURL,
				GasLimit:    m.cfg.GasLimit,
			})
			cmds = append(cmds, m.portal.Init())
		}

	case authRequestMsg:
		req := msg.req
		m.authReq = &req
		m.authForm = unlock.CreateForm(req.account.Hex())
		m.logger.Debug("passphrase requested", "account", req.account.Hex())
		cmds = append(cmds, m.authForm.Init())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case clipboardCopiedMsg:
		m.copiedMsg = "✓ Copied to clipboard"
		m.copiedMsgTime = time.Now()
		cmds = append(cmds, clearClipboardAfter())

	case clearClipboardMsg:
		if time.Since(m.copiedMsgTime) >= 2*time.Second {
			m.copiedMsg = ""
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	default:
		if m.authForm != nil {
			cmds = append(cmds, m.updateAuthForm(msg))
		} else if m.editing {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	// focus the input as soon as a session exists
	if !hadSession && m.hasSession() {
		m.editing = true
		cmds = append(cmds, m.input.Focus(), textinput.Blink)
	}
	if m.portal != nil && m.input.Value() != m.portal.Draft() {
		m.input.SetValue(m.portal.Draft())
	}
	m.updateWavesViewport()
	m.updateLogViewport()

	return m, tea.Batch(cmds...)
}

// handleKey routes a key press to the active layer: passphrase prompt,
// alert dialog, message input, then global hotkeys.
func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.authForm != nil {
		if msg.String() == "esc" {
			m.finishAuth("", wallet.ErrUserRejected)
			return waitForAuthRequest(m.auth)
		}
		return m.updateAuthForm(msg)
	}

	if m.alertText() != "" {
		switch msg.String() {
		case "enter", "esc":
			m.dismissAlert()
		case "ctrl+c":
			return tea.Quit
		}
		return nil
	}

	if m.editing {
		switch msg.String() {
		case "ctrl+c":
			return tea.Quit
		case "esc":
			m.editing = false
			m.input.Blur()
			return nil
		case "enter":
			return m.portal.SubmitWave(m.input.Value())
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.portal.SetDraft(m.input.Value())
		return cmd
	}

	if m.portal != nil && m.scrollWaves(msg) {
		return nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit

	case "esc":
		m.showQR = false

	case "c":
		if m.portal == nil {
			if m.provider == nil {
				m.notice = portal.NoWalletAlert
				return nil
			}
			m.logger.Warn("not connected to an RPC node yet", "url", m.rpcURL)
			return nil
		}
		if m.portal.HasSession() {
			return nil
		}
		return m.portal.Connect()

	case "enter":
		if m.portal != nil {
			return m.portal.SubmitWave(m.input.Value())
		}

	case "i":
		if m.hasSession() {
			m.editing = true
			return m.input.Focus()
		}

	case "r":
		if !m.rpcConnected {
			if m.rpcConnecting || m.rpcURL == "" {
				return nil
			}
			m.rpcConnecting = true
			m.logger.Info("reconnecting", "url", m.rpcURL)
			return connectRPC(m.rpcURL)
		}
		return m.portal.FetchHistory()

	case "y":
		if link := m.txLink(); link != "" {
			return copyToClipboard(link)
		}

	case "Q":
		m.showQR = !m.showQR && m.txLink() != ""

	case "l":
		m.logEnabled = !m.logEnabled
		if err := saveLogSetting(m.configPath, m.logEnabled); err != nil {
			m.logger.Warn("failed to save log setting", "err", err)
		}
		if m.logEnabled && !m.logReady {
			return initLogViewport()
		}
	}
	return nil
}

// updateAuthForm feeds msg to the passphrase form and answers the wallet
// once the form is submitted or aborted.
func (m *model) updateAuthForm(msg tea.Msg) tea.Cmd {
	form, cmd := m.authForm.Update(msg)
	f, ok := form.(*huh.Form)
	if !ok {
		return cmd
	}
	m.authForm = f

	switch m.authForm.State {
	case huh.StateCompleted:
		m.finishAuth(unlock.Passphrase, nil)
		return waitForAuthRequest(m.auth)
	case huh.StateAborted:
		m.finishAuth("", wallet.ErrUserRejected)
		return waitForAuthRequest(m.auth)
	}
	return cmd
}

func (m *model) finishAuth(passphrase string, err error) {
	if m.authReq != nil {
		m.authReq.answer(passphrase, err)
	}
	m.authReq = nil
	m.authForm = nil
	unlock.Passphrase = ""
}
