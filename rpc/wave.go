package rpc

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"wave-portal-tui/wallet"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// DefaultPollInterval is how often the log poller asks the node for new
// NewWave events when the endpoint cannot push them.
const DefaultPollInterval = 4 * time.Second

//go:embed abi/WavePortal.json
var wavePortalABIJSON []byte

// WavePortalABI is the parsed interface of the WavePortal contract.
var WavePortalABI = mustParseABI(wavePortalABIJSON)

var (
	// ErrReverted is returned by WaitMined when the receipt reports failure.
	ErrReverted = errors.New("transaction reverted")
	// ErrNotNewWave is returned when a log is not a NewWave event.
	ErrNotNewWave = errors.New("log is not a NewWave event")
)

func mustParseABI(data []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("rpc: invalid WavePortal ABI: %v", err))
	}
	return parsed
}

// RawWave mirrors the WavePortal.Wave struct. Timestamp is in seconds.
// Field order follows the ABI tuple.
type RawWave struct {
	Waver     common.Address
	Message   string
	Timestamp *big.Int
}

// WaveContract talks to a deployed WavePortal contract
type WaveContract struct {
	backend Backend
	address common.Address

	// PollInterval is used when the endpoint does not support log subscriptions
	PollInterval time.Duration
	// Logger receives poll errors; they are retried on the next tick
	Logger *log.Logger
}

// NewWaveContract binds the WavePortal contract at address
func NewWaveContract(backend Backend, address common.Address) *WaveContract {
	return &WaveContract{
		backend:      backend,
		address:      address,
		PollInterval: DefaultPollInterval,
		Logger:       log.New(io.Discard),
	}
}

// Address returns the bound contract address
func (w *WaveContract) Address() common.Address {
	return w.address
}

// Wave builds, signs and broadcasts a wave(message) transaction with a fixed gas ceiling
func (w *WaveContract) Wave(ctx context.Context, signer wallet.Signer, message string, gasLimit uint64) (*types.Transaction, error) {
	data, err := WavePortalABI.Pack("wave", message)
	if err != nil {
		return nil, fmt.Errorf("pack wave: %w", err)
	}

	from := signer.Address()
	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	to := w.address
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Data:     data,
	})

	signed, err := signer.SignTx(ctx, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("sign wave: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send wave: %w", err)
	}
	return signed, nil
}

// WaitMined blocks until tx is included. There is no timeout beyond ctx.
func (w *WaveContract) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, w.backend, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%s: %w", tx.Hash().Hex(), ErrReverted)
	}
	return receipt, nil
}

// GetAllWaves reads the full wave history from the contract
func (w *WaveContract) GetAllWaves(ctx context.Context) ([]RawWave, error) {
	data, err := WavePortalABI.Pack("getAllWaves")
	if err != nil {
		return nil, fmt.Errorf("pack getAllWaves: %w", err)
	}

	to := w.address
	out, err := w.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get waves: %w", err)
	}
	return DecodeAllWaves(out)
}

// DecodeAllWaves decodes the return data of getAllWaves()
func DecodeAllWaves(out []byte) ([]RawWave, error) {
	values, err := WavePortalABI.Unpack("getAllWaves", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getAllWaves: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getAllWaves returned %d values", len(values))
	}
	waves := *abi.ConvertType(values[0], new([]RawWave)).(*[]RawWave)
	return waves, nil
}

// ParseNewWave decodes a NewWave(address indexed from, uint256 timestamp, string message) log
func ParseNewWave(l types.Log) (RawWave, error) {
	ev := WavePortalABI.Events["NewWave"]
	if len(l.Topics) < 2 || l.Topics[0] != ev.ID {
		return RawWave{}, ErrNotNewWave
	}

	values, err := ev.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return RawWave{}, fmt.Errorf("unpack NewWave: %w", err)
	}
	if len(values) != 2 {
		return RawWave{}, fmt.Errorf("NewWave carried %d values", len(values))
	}
	ts, ok := values[0].(*big.Int)
	if !ok {
		return RawWave{}, fmt.Errorf("NewWave timestamp has type %T", values[0])
	}
	msg, ok := values[1].(string)
	if !ok {
		return RawWave{}, fmt.Errorf("NewWave message has type %T", values[1])
	}

	return RawWave{
		Waver:     common.BytesToAddress(l.Topics[1].Bytes()),
		Message:   msg,
		Timestamp: ts,
	}, nil
}

// WatchNewWave streams NewWave events into sink until the returned
// subscription is unsubscribed or fails.
func (w *WaveContract) WatchNewWave(ctx context.Context, sink chan<- RawWave) (ethereum.Subscription, error) {
	logs := make(chan types.Log, 16)
	sub, err := w.subscribeLogs(ctx, logs)
	if err != nil {
		return nil, err
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				if l.Removed {
					continue
				}
				wave, err := ParseNewWave(l)
				if err != nil {
					return err
				}
				select {
				case sink <- wave:
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (w *WaveContract) newWaveQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{w.address},
		Topics:    [][]common.Hash{{WavePortalABI.Events["NewWave"].ID}},
	}
}

// subscribeLogs prefers a push subscription and falls back to polling
// eth_getLogs on endpoints (plain HTTP) that cannot notify.
func (w *WaveContract) subscribeLogs(ctx context.Context, logs chan<- types.Log) (ethereum.Subscription, error) {
	q := w.newWaveQuery()
	sub, err := w.backend.SubscribeFilterLogs(ctx, q, logs)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, gethrpc.ErrNotificationsUnsupported) {
		return nil, fmt.Errorf("subscribe NewWave: %w", err)
	}

	head, err := w.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}
	return w.pollLogs(ctx, q, head+1, logs), nil
}

func (w *WaveContract) pollLogs(ctx context.Context, q ethereum.FilterQuery, from uint64, logs chan<- types.Log) ethereum.Subscription {
	interval := w.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return nil
			case <-ticker.C:
			}

			head, err := w.backend.BlockNumber(ctx)
			if err != nil {
				w.pollFailed("failed to get block number", err)
				continue
			}
			if head < from {
				continue
			}

			q.FromBlock = new(big.Int).SetUint64(from)
			q.ToBlock = new(big.Int).SetUint64(head)
			found, err := w.backend.FilterLogs(ctx, q)
			if err != nil {
				// from stays put so the range is asked for again
				w.pollFailed("failed to filter logs", err)
				continue
			}
			for _, l := range found {
				select {
				case logs <- l:
				case <-quit:
					return nil
				}
			}
			from = head + 1
		}
	})
}

func (w *WaveContract) pollFailed(msg string, err error) {
	if w.Logger != nil {
		w.Logger.Warn("NewWave poll: "+msg+", retrying", "err", err)
	}
}
