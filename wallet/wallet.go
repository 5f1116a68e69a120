// Package wallet models the user's wallet as an injected provider: it
// discovers accounts, asks the user to authorize one, and signs
// transactions for it.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrUserRejected is returned when the user declines an authorization request
	ErrUserRejected = errors.New("wallet: user rejected the request")
	// ErrUnauthorized is returned when signing is requested for an account the user has not authorized
	ErrUnauthorized = errors.New("wallet: account not authorized")
	// ErrNoAccounts is returned when the wallet holds no usable account
	ErrNoAccounts = errors.New("wallet: no accounts")
)

// Provider is the wallet capability the portal depends on.
type Provider interface {
	// RequestAccounts asks the user to authorize an account. It may block
	// until the user answers.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns the accounts already authorized, without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	// Signer returns a transaction-signing handle for an authorized account.
	Signer(ctx context.Context, from common.Address) (Signer, error)
}

// Signer signs transactions for a single account
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// PassphraseFunc asks the user for the passphrase of account. Returning
// ErrUserRejected means the user declined.
type PassphraseFunc func(ctx context.Context, account common.Address) (string, error)

// Detect picks the configured provider. A private key wins over a
// keystore. It returns a nil Provider when neither is configured, which is
// a normal condition.
func Detect(privateKey, keystoreDir string, opts KeystoreOptions) (Provider, error) {
	switch {
	case privateKey != "":
		p, err := NewPrivateKey(privateKey)
		if err != nil {
			return nil, err
		}
		return p, nil
	case keystoreDir != "":
		ks, err := NewKeystore(keystoreDir, opts)
		if err != nil {
			return nil, err
		}
		return ks, nil
	}
	return nil, nil
}
