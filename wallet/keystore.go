package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// KeystoreOptions configures a keystore-backed provider
type KeystoreOptions struct {
	// Account selects the keystore account; empty means the first one.
	Account string
	// Passphrase, when set, pre-authorizes the account so the silent
	// Accounts call can unlock it without prompting.
	Passphrase string
	// Prompt asks the user for the passphrase on RequestAccounts.
	Prompt PassphraseFunc
}

// Keystore is a provider backed by an encrypted go-ethereum keystore
// directory. Authorization means unlocking the selected account.
type Keystore struct {
	ks      *keystore.KeyStore
	account accounts.Account
	opts    KeystoreOptions

	mu       sync.Mutex
	unlocked bool
}

// NewKeystore opens the keystore in dir
func NewKeystore(dir string, opts KeystoreOptions) (*Keystore, error) {
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	k, err := NewKeystoreFrom(ks, opts)
	if err != nil {
		return nil, fmt.Errorf("keystore %s: %w", dir, err)
	}
	return k, nil
}

// NewKeystoreFrom wraps an opened keystore
func NewKeystoreFrom(ks *keystore.KeyStore, opts KeystoreOptions) (*Keystore, error) {
	accs := ks.Accounts()
	if len(accs) == 0 {
		return nil, ErrNoAccounts
	}

	account := accs[0]
	if opts.Account != "" {
		if !common.IsHexAddress(opts.Account) {
			return nil, fmt.Errorf("invalid account address %q", opts.Account)
		}
		want := common.HexToAddress(opts.Account)
		found := false
		for _, a := range accs {
			if a.Address == want {
				account, found = a, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("account %s: %w", want.Hex(), ErrNoAccounts)
		}
	}

	return &Keystore{ks: ks, account: account, opts: opts}, nil
}

// Account returns the selected keystore account address
func (k *Keystore) Account() common.Address {
	return k.account.Address
}

func (k *Keystore) isUnlocked() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.unlocked
}

func (k *Keystore) unlock(passphrase string) error {
	if err := k.ks.Unlock(k.account, passphrase); err != nil {
		return fmt.Errorf("unlock %s: %w", k.account.Address.Hex(), err)
	}
	k.mu.Lock()
	k.unlocked = true
	k.mu.Unlock()
	return nil
}

// Accounts never prompts. It reports the account only when it is already
// unlocked or the pre-authorized passphrase unlocks it.
func (k *Keystore) Accounts(ctx context.Context) ([]common.Address, error) {
	if k.isUnlocked() {
		return []common.Address{k.account.Address}, nil
	}
	if k.opts.Passphrase == "" {
		return nil, nil
	}
	if err := k.unlock(k.opts.Passphrase); err != nil {
		return nil, err
	}
	return []common.Address{k.account.Address}, nil
}

// RequestAccounts prompts for the passphrase and unlocks the account.
func (k *Keystore) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if k.isUnlocked() {
		return []common.Address{k.account.Address}, nil
	}
	if k.opts.Prompt == nil {
		return nil, fmt.Errorf("no passphrase prompt: %w", ErrUnauthorized)
	}

	passphrase, err := k.opts.Prompt(ctx, k.account.Address)
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("passphrase prompt: %w", err)
	}
	if err := k.unlock(passphrase); err != nil {
		return nil, err
	}
	return []common.Address{k.account.Address}, nil
}

func (k *Keystore) Signer(ctx context.Context, from common.Address) (Signer, error) {
	if from != k.account.Address || !k.isUnlocked() {
		return nil, fmt.Errorf("%s: %w", from.Hex(), ErrUnauthorized)
	}
	return keystoreSigner{ks: k.ks, account: k.account}, nil
}

type keystoreSigner struct {
	ks      *keystore.KeyStore
	account accounts.Account
}

func (s keystoreSigner) Address() common.Address { return s.account.Address }

func (s keystoreSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return s.ks.SignTx(s.account, tx, chainID)
}
