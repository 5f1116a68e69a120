package portal

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"wave-portal-tui/rpc"
	"wave-portal-tui/wallet"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// -------------------- FAKES --------------------

type fakeSigner struct{ addr common.Address }

func (s fakeSigner) Address() common.Address { return s.addr }

func (s fakeSigner) SignTx(_ context.Context, tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return tx, nil
}

type fakeProvider struct {
	requested  []common.Address
	requestErr error
	silent     []common.Address
	silentErr  error
	signerErr  error

	requestCalls int
	silentCalls  int
}

func (p *fakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	p.requestCalls++
	return p.requested, p.requestErr
}

func (p *fakeProvider) Accounts(context.Context) ([]common.Address, error) {
	p.silentCalls++
	return p.silent, p.silentErr
}

func (p *fakeProvider) Signer(_ context.Context, from common.Address) (wallet.Signer, error) {
	if p.signerErr != nil {
		return nil, p.signerErr
	}
	return fakeSigner{addr: from}, nil
}

type fakeSub struct {
	once   sync.Once
	errc   chan error
	onStop func()
}

func (s *fakeSub) Unsubscribe() {
	s.once.Do(func() {
		close(s.errc)
		s.onStop()
	})
}

func (s *fakeSub) Err() <-chan error { return s.errc }

type fakeContract struct {
	mu sync.Mutex

	history      []rpc.RawWave
	historyErr   error
	historyCalls int

	waveErr   error
	messages  []string
	gasLimits []uint64
	minedErr  error

	watchErr error
	opened   int
	closed   int
	subs     []*fakeSub
	sinks    []chan<- rpc.RawWave
}

func (f *fakeContract) Wave(_ context.Context, signer wallet.Signer, message string, gasLimit uint64) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	f.gasLimits = append(f.gasLimits, gasLimit)
	if f.waveErr != nil {
		return nil, f.waveErr
	}
	to := common.HexToAddress("0x2C1E2229868290324B515cb7bfA69bD0BD07a4f0")
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.messages)), Gas: gasLimit, To: &to, GasPrice: big.NewInt(1)}), nil
}

func (f *fakeContract) WaitMined(context.Context, *types.Transaction) (*types.Receipt, error) {
	if f.minedErr != nil {
		return nil, f.minedErr
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (f *fakeContract) GetAllWaves(context.Context) ([]rpc.RawWave, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	return f.history, f.historyErr
}

func (f *fakeContract) WatchNewWave(_ context.Context, sink chan<- rpc.RawWave) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	f.opened++
	sub := &fakeSub{errc: make(chan error, 1)}
	sub.onStop = func() {
		f.mu.Lock()
		f.closed++
		f.mu.Unlock()
	}
	f.subs = append(f.subs, sub)
	f.sinks = append(f.sinks, sink)
	return sub, nil
}

func (f *fakeContract) counts() (opened, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.closed
}

func newTestController(provider wallet.Provider, contract *fakeContract) (*Controller, *bytes.Buffer) {
	var buf bytes.Buffer
	c := New(Options{
		Provider:    provider,
		Contract:    contract,
		Logger:      log.New(&buf),
		ExplorerURL: "https://goerli.etherscan.io/",
		RetryDelay:  time.Millisecond,
	})
	return c, &buf
}

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	return cmd()
}

func connected(t *testing.T, c *Controller, addr common.Address) {
	t.Helper()
	c.Update(accountsMsg{requested: true, accounts: []common.Address{addr}})
	require.True(t, c.HasSession())
}

func history() []rpc.RawWave {
	return []rpc.RawWave{
		{Waver: alice, Message: "hi", Timestamp: big.NewInt(1000)},
		{Waver: bob, Message: "gm", Timestamp: big.NewInt(2000)},
	}
}

// -------------------- CONNECT --------------------

func TestConnectWithoutWallet(t *testing.T) {
	contract := &fakeContract{}
	c, _ := newTestController(nil, contract)

	assert.NotPanics(t, func() {
		assert.Nil(t, c.Connect())
	})
	assert.False(t, c.HasSession())
	assert.Equal(t, NoWalletAlert, c.Alert())
	assert.False(t, c.HasProvider())

	c.DismissAlert()
	assert.Empty(t, c.Alert())
}

func TestConnectUsesFirstAccountAndRefreshesOnce(t *testing.T) {
	provider := &fakeProvider{requested: []common.Address{alice, bob}}
	contract := &fakeContract{history: history()}
	c, _ := newTestController(provider, contract)

	msg := run(t, c.Connect())
	assert.Equal(t, 1, provider.requestCalls)

	refresh := c.Update(msg)
	assert.Equal(t, alice.Hex(), c.Account())
	assert.Equal(t, 0, contract.historyCalls, "refresh runs as a command, not inline")

	c.Update(run(t, refresh))
	assert.Equal(t, 1, contract.historyCalls)
	assert.Len(t, c.Waves(), 2)
}

func TestConnectWhileRequestOutstanding(t *testing.T) {
	provider := &fakeProvider{requestErr: wallet.ErrUserRejected}
	c, _ := newTestController(provider, &fakeContract{})

	first := c.Connect()
	require.NotNil(t, first)
	assert.True(t, c.Connecting())
	assert.Nil(t, c.Connect(), "a second request waits for the first answer")

	c.Update(run(t, first))
	assert.False(t, c.Connecting())
	assert.NotNil(t, c.Connect(), "rejection allows asking again")
	assert.Equal(t, 1, provider.requestCalls)
}

func TestConnectRejectedIsOnlyLogged(t *testing.T) {
	provider := &fakeProvider{requestErr: wallet.ErrUserRejected}
	c, logs := newTestController(provider, &fakeContract{})

	cmd := c.Update(run(t, c.Connect()))
	assert.Nil(t, cmd)
	assert.False(t, c.HasSession())
	assert.True(t, c.Status().Empty())
	assert.Empty(t, c.Alert())
	assert.Contains(t, logs.String(), "wallet connection failed")
}

func TestConnectWithNoAccounts(t *testing.T) {
	provider := &fakeProvider{}
	c, logs := newTestController(provider, &fakeContract{})

	assert.Nil(t, c.Update(run(t, c.Connect())))
	assert.False(t, c.HasSession())
	assert.Contains(t, logs.String(), "no accounts")
}

func TestCheckExistingSession(t *testing.T) {
	t.Run("no wallet", func(t *testing.T) {
		c, _ := newTestController(nil, &fakeContract{})
		assert.Nil(t, c.CheckExistingSession())
		assert.Empty(t, c.Alert(), "a missing wallet at startup is not an error")
	})

	t.Run("nothing authorized", func(t *testing.T) {
		provider := &fakeProvider{}
		c, _ := newTestController(provider, &fakeContract{})
		assert.Nil(t, c.Update(run(t, c.CheckExistingSession())))
		assert.False(t, c.HasSession())
		assert.Equal(t, 0, provider.requestCalls, "startup check must not prompt")
	})

	t.Run("silent error", func(t *testing.T) {
		provider := &fakeProvider{silentErr: errors.New("locked")}
		c, logs := newTestController(provider, &fakeContract{})
		assert.Nil(t, c.Update(run(t, c.CheckExistingSession())))
		assert.False(t, c.HasSession())
		assert.NotContains(t, logs.String(), "locked", "silent failures log below info")
	})

	t.Run("already authorized", func(t *testing.T) {
		provider := &fakeProvider{silent: []common.Address{bob}}
		contract := &fakeContract{history: history()}
		c, _ := newTestController(provider, contract)

		refresh := c.Update(run(t, c.CheckExistingSession()))
		assert.Equal(t, bob.Hex(), c.Account())
		c.Update(run(t, refresh))
		assert.Equal(t, 1, contract.historyCalls)
		assert.Equal(t, 0, provider.requestCalls)
	})
}

// -------------------- WAVE --------------------

func TestSubmitWaveWithoutSession(t *testing.T) {
	contract := &fakeContract{}

	for name, provider := range map[string]wallet.Provider{"no wallet": nil, "not connected": &fakeProvider{}} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestController(provider, contract)
			assert.Nil(t, c.SubmitWave("hello"))
			assert.Equal(t, Status{Kind: StatusInfo, Text: ConnectFirstText}, c.Status())
		})
	}
	assert.Empty(t, contract.messages, "no external write may happen without a session")
}

func TestSubmitWaveSuccess(t *testing.T) {
	contract := &fakeContract{}
	c, _ := newTestController(&fakeProvider{}, contract)
	connected(t, c, alice)
	c.SetDraft("hello")

	var seen []StatusKind
	sent := run(t, c.SubmitWave(c.Draft()))
	wait := c.Update(sent)
	seen = append(seen, c.Status().Kind)

	tx := sent.(waveSentMsg).tx
	assert.Equal(t, "https://goerli.etherscan.io/tx/"+tx.Hash().Hex(), c.Status().Link)
	assert.Equal(t, "hello", c.Draft(), "draft is kept until confirmation")

	c.Update(run(t, wait))
	seen = append(seen, c.Status().Kind)

	assert.Equal(t, []StatusKind{StatusPending, StatusSuccess}, seen)
	assert.Equal(t, WaveSuccessText, c.Status().Text)
	assert.Empty(t, c.Draft())
	assert.Equal(t, []string{"hello"}, contract.messages)
	assert.Equal(t, []uint64{DefaultGasLimit}, contract.gasLimits)
}

func TestSubmitWaveFailuresLeaveState(t *testing.T) {
	t.Run("signer rejected", func(t *testing.T) {
		contract := &fakeContract{}
		c, logs := newTestController(&fakeProvider{signerErr: wallet.ErrUnauthorized}, contract)
		connected(t, c, alice)
		c.SetDraft("hello")

		assert.Nil(t, c.Update(run(t, c.SubmitWave("hello"))))
		assert.True(t, c.Status().Empty())
		assert.Equal(t, "hello", c.Draft())
		assert.Empty(t, contract.messages)
		assert.Contains(t, logs.String(), "wave failed")
	})

	t.Run("node error", func(t *testing.T) {
		contract := &fakeContract{waveErr: errors.New("insufficient funds")}
		c, _ := newTestController(&fakeProvider{}, contract)
		connected(t, c, alice)
		c.SetDraft("hello")

		assert.Nil(t, c.Update(run(t, c.SubmitWave("hello"))))
		assert.True(t, c.Status().Empty())
		assert.Equal(t, "hello", c.Draft())
	})

	t.Run("confirmation error", func(t *testing.T) {
		contract := &fakeContract{minedErr: rpc.ErrReverted}
		c, logs := newTestController(&fakeProvider{}, contract)
		connected(t, c, alice)
		c.SetDraft("hello")

		wait := c.Update(run(t, c.SubmitWave("hello")))
		pending := c.Status()
		assert.Nil(t, c.Update(run(t, wait)))
		assert.Equal(t, pending, c.Status(), "status stays as it was at the failure point")
		assert.Equal(t, "hello", c.Draft())
		assert.Contains(t, logs.String(), "wave confirmation failed")
	})
}

func TestSubmitWaveCustomGasLimit(t *testing.T) {
	contract := &fakeContract{}
	c := New(Options{Provider: &fakeProvider{}, Contract: contract, GasLimit: 123456})
	connected(t, c, alice)

	c.Update(run(t, c.SubmitWave("hey")))
	assert.Equal(t, []uint64{123456}, contract.gasLimits)
}

// -------------------- HISTORY --------------------

func TestFetchHistoryIsIdempotent(t *testing.T) {
	contract := &fakeContract{history: history()}
	c, _ := newTestController(&fakeProvider{}, contract)

	c.Update(run(t, c.FetchHistory()))
	first := c.Waves()
	c.Update(run(t, c.FetchHistory()))
	second := c.Waves()

	assert.Equal(t, first, second)
	assert.Equal(t, []Record{
		{Address: alice.Hex(), Timestamp: time.Unix(1000, 0), Message: "hi"},
		{Address: bob.Hex(), Timestamp: time.Unix(2000, 0), Message: "gm"},
	}, first)
}

func TestFetchHistoryReplacesWholesale(t *testing.T) {
	contract := &fakeContract{history: history()[:1]}
	c, _ := newTestController(&fakeProvider{}, contract)

	c.Update(run(t, c.FetchHistory()))
	require.Len(t, c.Waves(), 1)
	c.Update(run(t, c.Subscribe()))
	contract.sinks[0] <- rpc.RawWave{Waver: bob, Message: "live", Timestamp: big.NewInt(3000)}
	c.Update(run(t, c.sub.next(c.gen)))
	require.Len(t, c.Waves(), 2)

	c.Update(run(t, c.FetchHistory()))
	assert.Equal(t, []Record{FromRaw(history()[0])}, c.Waves())
}

func TestFetchHistoryErrorKeepsList(t *testing.T) {
	contract := &fakeContract{history: history()}
	c, logs := newTestController(&fakeProvider{}, contract)
	c.Update(run(t, c.FetchHistory()))

	contract.historyErr = errors.New("node down")
	c.Update(run(t, c.FetchHistory()))
	assert.Len(t, c.Waves(), 2)
	assert.Contains(t, logs.String(), "failed to load waves")
}

func TestFetchHistoryWithoutWallet(t *testing.T) {
	c, _ := newTestController(nil, &fakeContract{})
	assert.Nil(t, c.FetchHistory())
}

func TestWavesReturnsCopy(t *testing.T) {
	contract := &fakeContract{history: history()}
	c, _ := newTestController(&fakeProvider{}, contract)
	c.Update(run(t, c.FetchHistory()))

	w := c.Waves()
	w[0].Message = "changed"
	assert.Equal(t, "hi", c.Waves()[0].Message)
}

// -------------------- SUBSCRIPTION --------------------

func TestInit(t *testing.T) {
	t.Run("no wallet", func(t *testing.T) {
		c, _ := newTestController(nil, &fakeContract{})
		assert.Nil(t, c.Init())
	})

	t.Run("with wallet", func(t *testing.T) {
		contract := &fakeContract{}
		c, _ := newTestController(&fakeProvider{}, contract)
		batch, ok := run(t, c.Init()).(tea.BatchMsg)
		require.True(t, ok)
		assert.Len(t, batch, 2)
	})
}

func TestResubscribeReleasesEveryHandle(t *testing.T) {
	const cycles = 5
	contract := &fakeContract{}
	c, _ := newTestController(&fakeProvider{}, contract)

	for i := 0; i < cycles; i++ {
		cmd := c.Subscribe()
		_, closed := contract.counts()
		assert.Equal(t, i, closed, "previous handle is released before a new one is opened")
		assert.NotNil(t, c.Update(run(t, cmd)))
		assert.True(t, c.Subscribed())
	}
	c.Close()
	c.Close()

	opened, closed := contract.counts()
	assert.Equal(t, cycles, opened)
	assert.Equal(t, cycles, closed)
	assert.False(t, c.Subscribed())
}

func TestLiveWaveAppends(t *testing.T) {
	contract := &fakeContract{history: history()}
	c, _ := newTestController(&fakeProvider{}, contract)
	c.Update(run(t, c.FetchHistory()))

	next := c.Update(run(t, c.Subscribe()))
	contract.sinks[0] <- rpc.RawWave{Waver: alice, Message: "live", Timestamp: big.NewInt(500)}
	assert.NotNil(t, c.Update(run(t, next)), "the next event is awaited")

	waves := c.Waves()
	require.Len(t, waves, 3)
	// appended at the end even though it is older than the history
	assert.Equal(t, Record{Address: alice.Hex(), Timestamp: time.Unix(500, 0), Message: "live"}, waves[2])
}

func TestEventAfterCloseIsDropped(t *testing.T) {
	contract := &fakeContract{}
	c, _ := newTestController(&fakeProvider{}, contract)

	next := c.Update(run(t, c.Subscribe()))
	gen := c.gen
	c.Close()

	// the pending read wakes up on the closed handle and yields nothing
	assert.Nil(t, run(t, next))

	assert.Nil(t, c.Update(newWaveMsg{gen: gen, wave: rpc.RawWave{Waver: bob, Message: "late", Timestamp: big.NewInt(1)}}))
	assert.Empty(t, c.Waves())
}

func TestEventFromPreviousSubscriptionIsDropped(t *testing.T) {
	contract := &fakeContract{}
	c, _ := newTestController(&fakeProvider{}, contract)

	c.Update(run(t, c.Subscribe()))
	old := c.gen
	c.Update(run(t, c.Subscribe()))

	assert.Nil(t, c.Update(newWaveMsg{gen: old, wave: rpc.RawWave{Waver: bob, Message: "dup", Timestamp: big.NewInt(1)}}))
	assert.Empty(t, c.Waves())
}

func TestSupersededSubscriptionIsReleasedOnArrival(t *testing.T) {
	contract := &fakeContract{}
	c, _ := newTestController(&fakeProvider{}, contract)

	first := c.Subscribe()
	second := c.Subscribe()

	assert.NotNil(t, c.Update(run(t, second)))
	assert.Nil(t, c.Update(run(t, first)))

	opened, closed := contract.counts()
	assert.Equal(t, 2, opened)
	assert.Equal(t, 1, closed)
	assert.True(t, c.Subscribed())

	c.Close()
	_, closed = contract.counts()
	assert.Equal(t, 2, closed)
}

func TestSubscriptionOpenedAfterCloseIsReleased(t *testing.T) {
	contract := &fakeContract{}
	c, _ := newTestController(&fakeProvider{}, contract)

	cmd := c.Subscribe()
	c.Close()
	assert.Nil(t, c.Update(run(t, cmd)))

	opened, closed := contract.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
	assert.False(t, c.Subscribed())
}

func TestSubscriptionErrorReleasesHandleAndResubscribes(t *testing.T) {
	contract := &fakeContract{}
	c, logs := newTestController(&fakeProvider{}, contract)

	next := c.Update(run(t, c.Subscribe()))
	contract.subs[0].errc <- errors.New("connection reset")

	retry := c.Update(run(t, next))
	assert.False(t, c.Subscribed())
	_, closed := contract.counts()
	assert.Equal(t, 1, closed)
	assert.Contains(t, logs.String(), "NewWave subscription failed")

	// the delayed retry opens a fresh subscription that keeps delivering
	resub := c.Update(run(t, retry))
	c.Update(run(t, resub))
	assert.True(t, c.Subscribed())
	opened, closed := contract.counts()
	assert.Equal(t, 2, opened)
	assert.Equal(t, 1, closed)

	next = c.sub.next(c.gen)
	contract.sinks[1] <- rpc.RawWave{Waver: bob, Message: "back", Timestamp: big.NewInt(5)}
	c.Update(run(t, next))
	require.Len(t, c.Waves(), 1)
	assert.Equal(t, "back", c.Waves()[0].Message)

	c.Close()
	opened, closed = contract.counts()
	assert.Equal(t, opened, closed)
}

func TestSubscribeFailureRetriesWithBackoff(t *testing.T) {
	contract := &fakeContract{watchErr: errors.New("filter not supported")}
	c, logs := newTestController(&fakeProvider{}, contract)

	retry := c.Update(run(t, c.Subscribe()))
	require.NotNil(t, retry)
	assert.False(t, c.Subscribed())
	assert.True(t, strings.Contains(logs.String(), "failed to subscribe"))
	assert.Equal(t, 2*time.Millisecond, c.retryDelay)

	retry = c.Update(run(t, c.Update(run(t, retry))))
	require.NotNil(t, retry)
	assert.Equal(t, 4*time.Millisecond, c.retryDelay)

	// success resets the backoff
	contract.mu.Lock()
	contract.watchErr = nil
	contract.mu.Unlock()
	c.Update(run(t, c.Update(run(t, retry))))
	assert.True(t, c.Subscribed())
	assert.Zero(t, c.retryDelay)
}

func TestRetryAfterCloseIsDropped(t *testing.T) {
	contract := &fakeContract{watchErr: errors.New("down")}
	c, _ := newTestController(&fakeProvider{}, contract)

	retry := c.Update(run(t, c.Subscribe()))
	c.Close()

	assert.Nil(t, c.Update(run(t, retry)))
	opened, _ := contract.counts()
	assert.Zero(t, opened)
}

func TestForeignMessagesAreIgnored(t *testing.T) {
	c, _ := newTestController(&fakeProvider{}, &fakeContract{})
	assert.Nil(t, c.Update(tea.WindowSizeMsg{Width: 80, Height: 24}))
}
