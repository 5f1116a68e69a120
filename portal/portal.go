// Package portal holds the wave client controller: the UI state of the
// portal and the three operations it mediates (connect, wave, history).
//
// Every operation returns a tea.Cmd. The blocking work runs inside the
// command and reports back with a message which must be handed to Update;
// Update is the only place state changes, so the controller never needs a
// lock.
package portal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"wave-portal-tui/rpc"
	"wave-portal-tui/wallet"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultGasLimit is the gas ceiling used when Options.GasLimit is zero
const DefaultGasLimit uint64 = 300000

// Resubscribe backoff after the live feed fails
const (
	DefaultRetryDelay = 2 * time.Second
	maxRetryDelay     = time.Minute
)

// Contract is the WavePortal surface the controller needs.
// *rpc.WaveContract satisfies it.
type Contract interface {
	Wave(ctx context.Context, signer wallet.Signer, message string, gasLimit uint64) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	GetAllWaves(ctx context.Context) ([]rpc.RawWave, error)
	WatchNewWave(ctx context.Context, sink chan<- rpc.RawWave) (ethereum.Subscription, error)
}

var _ Contract = (*rpc.WaveContract)(nil)

// Options configures a Controller
type Options struct {
	// Provider is nil when no wallet is present.
	Provider    wallet.Provider
	Contract    Contract
	Logger      *log.Logger
	ExplorerURL string
	GasLimit    uint64
	// RetryDelay is the first resubscribe delay; it doubles on each
	// consecutive failure. Zero means DefaultRetryDelay.
	RetryDelay time.Duration
}

// Controller owns the portal state
type Controller struct {
	provider    wallet.Provider
	contract    Contract
	logger      *log.Logger
	explorerURL string
	gasLimit    uint64
	retryBase   time.Duration

	account    string
	connecting bool
	draft   string
	status  Status
	alert   string
	waves   []Record

	// gen identifies the current subscription; events from older
	// generations are dropped.
	gen        uint64
	sub        *subscription
	retryDelay time.Duration
}

// New creates a controller
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	gas := opts.GasLimit
	if gas == 0 {
		gas = DefaultGasLimit
	}
	retry := opts.RetryDelay
	if retry <= 0 {
		retry = DefaultRetryDelay
	}
	return &Controller{
		provider:    opts.Provider,
		contract:    opts.Contract,
		logger:      logger,
		explorerURL: strings.TrimRight(opts.ExplorerURL, "/"),
		gasLimit:    gas,
		retryBase:   retry,
	}
}

// -------------------- MESSAGES --------------------

type accountsMsg struct {
	requested bool
	accounts  []common.Address
	err       error
}

type historyMsg struct {
	waves []rpc.RawWave
	err   error
}

type waveSentMsg struct {
	tx  *types.Transaction
	err error
}

type waveMinedMsg struct {
	tx  *types.Transaction
	err error
}

type subscribedMsg struct {
	gen uint64
	sub *subscription
	err error
}

type newWaveMsg struct {
	gen  uint64
	wave rpc.RawWave
}

type subscriptionErrMsg struct {
	gen uint64
	err error
}

type resubscribeMsg struct {
	gen uint64
}

// -------------------- ACCESSORS --------------------

// Account returns the connected address, or "" when there is no session
func (c *Controller) Account() string { return c.account }

// HasSession reports whether an account is connected
func (c *Controller) HasSession() bool { return c.account != "" }

// Connecting reports whether an authorization request is outstanding
func (c *Controller) Connecting() bool { return c.connecting }

// HasProvider reports whether a wallet is present
func (c *Controller) HasProvider() bool { return c.provider != nil }

func (c *Controller) Draft() string { return c.draft }

func (c *Controller) SetDraft(s string) { c.draft = s }

func (c *Controller) Status() Status { return c.status }

// Alert returns the pending blocking notice, if any
func (c *Controller) Alert() string { return c.alert }

func (c *Controller) DismissAlert() { c.alert = "" }

// Waves returns a copy of the wave list in display order
func (c *Controller) Waves() []Record {
	out := make([]Record, len(c.waves))
	copy(out, c.waves)
	return out
}

// Subscribed reports whether a live NewWave subscription is open
func (c *Controller) Subscribed() bool { return c.sub != nil }

// TxLink returns the explorer URL for a transaction
func (c *Controller) TxLink(hash common.Hash) string {
	return c.explorerURL + "/tx/" + hash.Hex()
}

// -------------------- OPERATIONS --------------------

// Init checks for an already authorized session and opens the live
// subscription.
func (c *Controller) Init() tea.Cmd {
	return tea.Batch(c.CheckExistingSession(), c.Subscribe())
}

// Connect asks the wallet to authorize an account. Without a wallet it
// raises the blocking alert and changes nothing else. Only one request is
// outstanding at a time.
func (c *Controller) Connect() tea.Cmd {
	if c.provider == nil {
		c.alert = NoWalletAlert
		return nil
	}
	if c.connecting {
		return nil
	}
	c.connecting = true
	provider := c.provider
	return func() tea.Msg {
		accs, err := provider.RequestAccounts(context.Background())
		return accountsMsg{requested: true, accounts: accs, err: err}
	}
}

// CheckExistingSession silently looks for an authorized account
func (c *Controller) CheckExistingSession() tea.Cmd {
	if c.provider == nil {
		return nil
	}
	provider := c.provider
	return func() tea.Msg {
		accs, err := provider.Accounts(context.Background())
		return accountsMsg{accounts: accs, err: err}
	}
}

// SubmitWave sends a wave transaction carrying text
func (c *Controller) SubmitWave(text string) tea.Cmd {
	if c.account == "" || c.provider == nil {
		c.status = Status{Kind: StatusInfo, Text: ConnectFirstText}
		return nil
	}

	provider, contract, gas := c.provider, c.contract, c.gasLimit
	from := common.HexToAddress(c.account)
	return func() tea.Msg {
		ctx := context.Background()
		signer, err := provider.Signer(ctx, from)
		if err != nil {
			return waveSentMsg{err: fmt.Errorf("get signer: %w", err)}
		}
		tx, err := contract.Wave(ctx, signer, text, gas)
		return waveSentMsg{tx: tx, err: err}
	}
}

// FetchHistory reloads the whole wave list from the contract
func (c *Controller) FetchHistory() tea.Cmd {
	if c.provider == nil {
		return nil
	}
	contract := c.contract
	return func() tea.Msg {
		waves, err := contract.GetAllWaves(context.Background())
		return historyMsg{waves: waves, err: err}
	}
}

func waitMined(contract Contract, tx *types.Transaction) tea.Cmd {
	return func() tea.Msg {
		_, err := contract.WaitMined(context.Background(), tx)
		return waveMinedMsg{tx: tx, err: err}
	}
}

// -------------------- SUBSCRIPTION --------------------

type subscription struct {
	handle ethereum.Subscription
	events chan rpc.RawWave
	once   sync.Once
}

// close releases the handle; further calls are no-ops
func (s *subscription) close() {
	s.once.Do(s.handle.Unsubscribe)
}

func (s *subscription) next(gen uint64) tea.Cmd {
	return func() tea.Msg {
		select {
		case w := <-s.events:
			return newWaveMsg{gen: gen, wave: w}
		case err, ok := <-s.handle.Err():
			if !ok || err == nil {
				return nil
			}
			return subscriptionErrMsg{gen: gen, err: err}
		}
	}
}

// Subscribe replaces any live subscription with a new one. The previous
// handle is released before the new one is requested.
func (c *Controller) Subscribe() tea.Cmd {
	c.release()
	c.gen++
	if c.provider == nil {
		return nil
	}

	gen, contract := c.gen, c.contract
	return func() tea.Msg {
		events := make(chan rpc.RawWave, 16)
		handle, err := contract.WatchNewWave(context.Background(), events)
		if err != nil {
			return subscribedMsg{gen: gen, err: err}
		}
		return subscribedMsg{gen: gen, sub: &subscription{handle: handle, events: events}}
	}
}

// Close releases the live subscription. A subscription still being opened
// is released as soon as it arrives.
func (c *Controller) Close() {
	c.release()
	c.gen++
}

// retry schedules a resubscribe for the current generation, doubling the
// delay each time until a subscription opens.
func (c *Controller) retry() tea.Cmd {
	delay := c.retryDelay
	if delay <= 0 {
		delay = c.retryBase
	}
	c.retryDelay = min(delay*2, maxRetryDelay)
	gen := c.gen
	c.logger.Info("resubscribing to NewWave", "in", delay)
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return resubscribeMsg{gen: gen}
	})
}

func (c *Controller) release() {
	if c.sub != nil {
		c.sub.close()
		c.sub = nil
		c.logger.Debug("NewWave subscription closed")
	}
}

// -------------------- UPDATE --------------------

// Update applies a result message and returns any follow-up command.
// Messages it does not own are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {

	case accountsMsg:
		if msg.requested {
			c.connecting = false
		}
		if msg.err != nil {
			if msg.requested {
				c.logger.Error("wallet connection failed", "err", msg.err)
			} else {
				c.logger.Debug("no authorized account", "err", msg.err)
			}
			return nil
		}
		if len(msg.accounts) == 0 {
			if msg.requested {
				c.logger.Warn("wallet returned no accounts")
			} else {
				c.logger.Debug("no authorized account found")
			}
			return nil
		}
		c.account = msg.accounts[0].Hex()
		c.logger.Info("wallet connected", "account", c.account)
		return c.FetchHistory()

	case historyMsg:
		if msg.err != nil {
			c.logger.Error("failed to load waves", "err", msg.err)
			return nil
		}
		c.waves = fromRawList(msg.waves)
		c.logger.Info("loaded waves", "count", len(c.waves))
		return nil

	case waveSentMsg:
		if msg.err != nil {
			c.logger.Error("wave failed", "err", msg.err)
			return nil
		}
		c.status = Status{Kind: StatusPending, Text: WaveProcessingText, Link: c.TxLink(msg.tx.Hash())}
		c.logger.Info("wave broadcast", "tx", msg.tx.Hash().Hex())
		return waitMined(c.contract, msg.tx)

	case waveMinedMsg:
		if msg.err != nil {
			c.logger.Error("wave confirmation failed", "tx", msg.tx.Hash().Hex(), "err", msg.err)
			return nil
		}
		c.status = Status{Kind: StatusSuccess, Text: WaveSuccessText}
		c.draft = ""
		c.logger.Info("wave confirmed", "tx", msg.tx.Hash().Hex())
		return nil

	case subscribedMsg:
		if msg.err != nil {
			if msg.gen != c.gen {
				return nil
			}
			c.logger.Error("failed to subscribe to NewWave", "err", msg.err)
			return c.retry()
		}
		if msg.gen != c.gen || c.sub != nil {
			msg.sub.close()
			return nil
		}
		c.sub = msg.sub
		c.retryDelay = 0
		c.logger.Debug("NewWave subscription open")
		return c.sub.next(msg.gen)

	case newWaveMsg:
		if msg.gen != c.gen || c.sub == nil {
			return nil
		}
		c.waves = append(c.waves, FromRaw(msg.wave))
		c.logger.Info("new wave", "from", msg.wave.Waver.Hex())
		return c.sub.next(msg.gen)

	case subscriptionErrMsg:
		if msg.gen != c.gen {
			return nil
		}
		c.logger.Error("NewWave subscription failed", "err", msg.err)
		c.release()
		return c.retry()

	case resubscribeMsg:
		// dropped after Close or a manual Subscribe
		if msg.gen != c.gen || c.sub != nil {
			return nil
		}
		return c.Subscribe()
	}

	return nil
}
