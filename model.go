package main

import (
	"strings"
	"time"

	"wave-portal-tui/config"
	"wave-portal-tui/portal"
	"wave-portal-tui/rpc"
	"wave-portal-tui/styles"
	logview "wave-portal-tui/views/log"
	"wave-portal-tui/views/waves"
	"wave-portal-tui/wallet"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// -------------------- MODEL --------------------

// model represents the application state following The Elm Architecture
type model struct {
	w, h int

	cfg        config.Config
	configPath string

	// rpc
	rpcURL        string
	ethClient     *rpc.Client
	rpcConnected  bool // true if RPC is successfully connected
	rpcConnecting bool // true if connection attempt is in progress

	// wallet and portal; portal is nil until the RPC connects
	provider wallet.Provider
	portal   *portal.Controller
	notice   string // blocking alert raised before the portal exists

	// wave list, scrollable while the input is not focused
	wavesViewport viewport.Model
	followWaves   bool // keep the newest wave in view

	// wave message input
	input   textinput.Model
	editing bool
	spin    spinner.Model

	// passphrase prompt
	auth     *authBridge
	authReq  *authRequest
	authForm *huh.Form

	// tx link extras
	showQR        bool
	copiedMsg     string
	copiedMsgTime time.Time

	// logger panel
	logEnabled  bool
	logger      *log.Logger
	logBuffer   *strings.Builder
	logViewport viewport.Model
	logReady    bool
}

// -------------------- INIT --------------------

// newModel creates the model. provider may be nil when no wallet is configured.
func newModel(cfg config.Config, configPath string, provider wallet.Provider, auth *authBridge) model {
	in := textinput.New()
	in.Placeholder = "Enter your message…"
	in.Prompt = "Message: "
	in.PromptStyle = lipgloss.NewStyle().Foreground(styles.CAccent)
	in.TextStyle = lipgloss.NewStyle().Foreground(styles.CText)
	in.Cursor.Style = lipgloss.NewStyle().Foreground(styles.CAccent2)
	in.CharLimit = 280
	in.Width = 48

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(styles.CAccent2)

	vp := viewport.New(0, 8) // resized on first WindowSizeMsg
	vp.Style = lipgloss.NewStyle().
		Foreground(styles.CText).
		Background(styles.CPanel)

	wvp := viewport.New(0, 5) // sized in updateWavesViewport

	buf := &strings.Builder{}

	return model{
		cfg:           cfg,
		configPath:    configPath,
		rpcURL:        cfg.ActiveRPC(),
		provider:      provider,
		wavesViewport: wvp,
		followWaves:   true,
		input:         in,
		spin:          sp,
		auth:          auth,
		logEnabled:    cfg.Logger,
		logger:        newLogger(buf),
		logBuffer:     buf,
		logViewport:   vp,
	}
}

// newLogger creates the buffer-backed logger shown in the log panel
func newLogger(buf *strings.Builder) *log.Logger {
	logger := log.NewWithOptions(buf, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           log.DebugLevel,
	})
	logger.SetStyles(&log.Styles{
		Timestamp: lipgloss.NewStyle().Foreground(styles.CMuted),
		Caller:    lipgloss.NewStyle().Faint(true),
		Prefix:    lipgloss.NewStyle().Bold(true).Foreground(styles.CAccent2),
		Message:   lipgloss.NewStyle().Foreground(styles.CText),
		Key:       lipgloss.NewStyle().Foreground(styles.CAccent),
		Value:     lipgloss.NewStyle().Foreground(styles.CText),
		Separator: lipgloss.NewStyle().Faint(true),
		Levels: map[log.Level]lipgloss.Style{
			log.DebugLevel: lipgloss.NewStyle().Foreground(styles.CMuted).SetString("DEBUG"),
			log.InfoLevel:  lipgloss.NewStyle().Foreground(styles.CAccent2).SetString("INFO"),
			log.WarnLevel:  lipgloss.NewStyle().Foreground(styles.CWarn).SetString("WARN"),
			log.ErrorLevel: lipgloss.NewStyle().Foreground(styles.CError).SetString("ERROR"),
		},
	})
	return logger
}

// Init implements tea.Model interface and returns initial commands
func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, waitForAuthRequest(m.auth)}
	if m.logEnabled {
		cmds = append(cmds, initLogViewport())
	}
	if m.provider == nil {
		m.logger.Warn("no wallet configured", "hint", "set "+config.EnvKeystore+" or "+config.EnvPrivateKey)
	}
	if m.rpcURL != "" {
		m.rpcConnecting = true
		cmds = append(cmds, connectRPC(m.rpcURL))
	}
	return tea.Batch(cmds...)
}

// -------------------- MODEL HELPER METHODS --------------------

// updateLogViewport refreshes the viewport content with log output
func (m *model) updateLogViewport() {
	if !m.logReady || m.logBuffer == nil {
		return
	}
	m.logViewport.SetContent(m.logBuffer.String())
	m.logViewport.GotoBottom()
}

// lines taken by everything except the wave list viewport
const chromeHeight = 24

// updateWavesViewport sizes the list viewport and refreshes its content.
// The scroll position is kept unless the newest wave was in view.
func (m *model) updateWavesViewport() {
	if m.portal == nil {
		return
	}
	logHeight := 0
	if m.logEnabled && m.logReady {
		logHeight = logview.Height(m.h) + 3
	}
	m.wavesViewport.Width = max(0, m.w-6)
	m.wavesViewport.Height = max(3, m.h-chromeHeight-logHeight)
	m.wavesViewport.SetContent(waves.List(m.portal.Waves(), m.w))
	if m.followWaves {
		m.wavesViewport.GotoBottom()
	}
}

// scrollWaves moves the wave list; it returns false for keys it does not handle
func (m *model) scrollWaves(msg tea.KeyMsg) bool {
	vp := &m.wavesViewport
	half := max(1, vp.Height/2)
	switch msg.String() {
	case "up", "k":
		vp.SetYOffset(vp.YOffset - 1)
	case "down", "j":
		vp.SetYOffset(vp.YOffset + 1)
	case "pgup":
		vp.SetYOffset(vp.YOffset - half)
	case "pgdown":
		vp.SetYOffset(vp.YOffset + half)
	case "home", "g":
		vp.GotoTop()
	case "end", "G":
		vp.GotoBottom()
	default:
		return false
	}
	m.followWaves = vp.AtBottom()
	return true
}

// hasSession reports whether the portal has a connected account
func (m *model) hasSession() bool {
	return m.portal != nil && m.portal.HasSession()
}

// alertText returns the blocking alert to show, if any
func (m *model) alertText() string {
	if m.portal != nil && m.portal.Alert() != "" {
		return m.portal.Alert()
	}
	return m.notice
}

func (m *model) dismissAlert() {
	if m.portal != nil {
		m.portal.DismissAlert()
	}
	m.notice = ""
}

// txLink returns the link of the last pending wave, if any
func (m *model) txLink() string {
	if m.portal == nil {
		return ""
	}
	return m.portal.Status().Link
}

// rpcState describes the connection for the header
func (m *model) rpcState() string {
	switch {
	case m.rpcURL == "":
		return "No RPC"
	case m.rpcConnecting:
		return "Connecting..."
	case !m.rpcConnected:
		return "Connection Failed"
	}
	for _, r := range m.cfg.RPCURLs {
		if r.Active && r.URL == m.rpcURL {
			return r.Name
		}
	}
	return "Connected"
}

// shutdown releases the live subscription and the RPC connection
func (m *model) shutdown() {
	if m.portal != nil {
		m.portal.Close()
	}
	if m.authReq != nil {
		m.authReq.answer("", wallet.ErrUserRejected)
		m.authReq = nil
	}
	if m.ethClient != nil {
		m.ethClient.Close()
	}
}
