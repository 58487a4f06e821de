// Package ledger provides the reference Accounts collaborator that the
// admission pipeline treats as an external dependency. The admission
// pipeline only ever talks to the Accounts interface each consuming
// package declares for itself; this package is the concrete
// implementation used to exercise it end-to-end in tests and in
// cmd/node, tracking balance vs. unconfirmed mempool balance.
package ledger

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ddk-chain/ddk-node/internal/ledgerstore"
	"github.com/ddk-chain/ddk-node/internal/types"
)

// Account is the minimal account shape the admission pipeline needs.
type Account struct {
	Address           string
	PublicKey         []byte
	Balance           uint64
	UBalance          uint64
	SecondSignature   bool
	UTotalFrozeAmount uint64
	Multisignatures   []string
}

// ErrInsufficientBalance is returned by DebitUnconfirmed when an
// account's unconfirmed balance cannot cover amount+fee.
var ErrInsufficientBalance = errors.New("ledger: insufficient unconfirmed balance")

// Ledger is the reference Accounts store: an in-memory index of
// accounts backed by ledgerstore for durability, guarded by a mutex
// since, unlike pool mutations, account reads can come from outside the
// Sequence (e.g. RPC balance queries).
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	store    *ledgerstore.Store
}

// New returns a Ledger backed by store. store may be nil, in which case
// the ledger is purely in-memory (useful for unit tests).
func New(store *ledgerstore.Store) *Ledger {
	return &Ledger{
		accounts: make(map[string]*Account),
		store:    store,
	}
}

// GetOrCreateAccount returns the account for publicKey, creating a
// zero-balance one (and persisting it, if a store is attached) on
// first sight.
func (l *Ledger) GetOrCreateAccount(publicKey []byte) (*Account, error) {
	addr := types.DeriveSenderID(publicKey)

	l.mu.Lock()
	defer l.mu.Unlock()

	if acc, ok := l.accounts[addr]; ok {
		return acc, nil
	}

	acc := &Account{Address: addr, PublicKey: publicKey}
	l.accounts[addr] = acc

	if l.store != nil {
		if err := l.store.PutAccount(addr, acc.Balance, acc.UBalance); err != nil {
			return nil, errors.Wrap(err, "ledger: persist new account")
		}
	}

	return acc, nil
}

// GetAccountByAddress looks up an account without creating it.
func (l *Ledger) GetAccountByAddress(addr string) (*Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[addr]
	if !ok {
		return nil, errors.Errorf("ledger: no account for address %s", addr)
	}
	return acc, nil
}

// DebitUnconfirmed deducts amount+fee from the sender's unconfirmed
// balance. The admission path calls it through the crypto package's
// Logic.NewApplyUnconfirmed.
func (l *Ledger) DebitUnconfirmed(addr string, amount, fee uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[addr]
	if !ok {
		return errors.Errorf("ledger: no account for address %s", addr)
	}

	total := amount + fee
	if acc.UBalance < total {
		return ErrInsufficientBalance
	}

	acc.UBalance -= total
	if l.store != nil {
		if err := l.store.PutAccount(addr, acc.Balance, acc.UBalance); err != nil {
			return errors.Wrap(err, "ledger: persist debit")
		}
	}
	return nil
}

// CreditUnconfirmed reverses DebitUnconfirmed; used by undoUnconfirmed.
// Errors are expected to be logged and swallowed by the caller per spec
// §7 ("undo-unconfirmed failure ... logged, swallowed").
func (l *Ledger) CreditUnconfirmed(addr string, amount, fee uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[addr]
	if !ok {
		return errors.Errorf("ledger: no account for address %s", addr)
	}

	acc.UBalance += amount + fee
	if l.store != nil {
		if err := l.store.PutAccount(addr, acc.Balance, acc.UBalance); err != nil {
			return errors.Wrap(err, "ledger: persist credit")
		}
	}
	return nil
}

// SetInitialBalance seeds an account's confirmed and unconfirmed
// balance; used by tests and genesis loading, never by the admission
// pipeline itself.
func (l *Ledger) SetInitialBalance(publicKey []byte, balance uint64) {
	addr := types.DeriveSenderID(publicKey)

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[addr]
	if !ok {
		acc = &Account{Address: addr, PublicKey: publicKey}
		l.accounts[addr] = acc
	}
	acc.Balance = balance
	acc.UBalance = balance
}
