package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey is a development wallet backed by a raw secp256k1 key. Its
// single account is always authorized.
type PrivateKey struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKey parses a hex encoded private key, with or without 0x prefix
func NewPrivateKey(hexKey string) (*PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewPrivateKeyFromECDSA(key), nil
}

// NewPrivateKeyFromECDSA wraps an already parsed key
func NewPrivateKeyFromECDSA(key *ecdsa.PrivateKey) *PrivateKey {
	return &PrivateKey{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (p *PrivateKey) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *PrivateKey) Accounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *PrivateKey) Signer(ctx context.Context, from common.Address) (Signer, error) {
	if from != p.address {
		return nil, fmt.Errorf("%s: %w", from.Hex(), ErrUnauthorized)
	}
	return keySigner{key: p.key, address: p.address}, nil
}

type keySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func (s keySigner) Address() common.Address { return s.address }

func (s keySigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
