package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateAccountCreatesOnFirstSight(t *testing.T) {
	l := New(nil)
	key := []byte("pub-key-a")

	acc, err := l.GetOrCreateAccount(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), acc.Balance)

	again, err := l.GetOrCreateAccount(key)
	require.NoError(t, err)
	assert.Same(t, acc, again, "second lookup returns the same account instance")
}

func TestGetAccountByAddressUnknown(t *testing.T) {
	l := New(nil)
	_, err := l.GetAccountByAddress("DDK999")
	assert.Error(t, err)
}

func TestDebitUnconfirmedInsufficientBalance(t *testing.T) {
	l := New(nil)
	key := []byte("pub-key-b")
	acc, err := l.GetOrCreateAccount(key)
	require.NoError(t, err)
	l.SetInitialBalance(key, 10)

	err = l.DebitUnconfirmed(acc.Address, 11, 0)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestDebitThenCreditRoundTrips(t *testing.T) {
	l := New(nil)
	key := []byte("pub-key-c")
	acc, err := l.GetOrCreateAccount(key)
	require.NoError(t, err)
	l.SetInitialBalance(key, 100)

	require.NoError(t, l.DebitUnconfirmed(acc.Address, 10, 1))
	assert.Equal(t, uint64(89), acc.UBalance)

	require.NoError(t, l.CreditUnconfirmed(acc.Address, 10, 1))
	assert.Equal(t, uint64(100), acc.UBalance, "credit reverses debit exactly")
}
