package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/ddk-chain/ddk-node/internal/ledger"
	"github.com/ddk-chain/ddk-node/internal/types"
)

func newTestLogic() (*Logic, *ledger.Ledger) {
	l := ledger.New(nil)
	return NewLogic(l), l
}

func TestCreateDerivesIDAndSenderID(t *testing.T) {
	lg, _ := newTestLogic()

	trs, err := lg.Create(CreateParams{
		Type:            types.Send,
		SenderPublicKey: []byte("pub-a"),
		RecipientID:     "DDK1",
		Amount:          10,
		Fee:             1,
		Timestamp:       100,
		Signature:       []byte("sig"),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, trs.ID)
	assert.NotEmpty(t, trs.SenderID)
	assert.Equal(t, types.Created, trs.Status)
}

func TestGetIDStableForSameContent(t *testing.T) {
	lg, _ := newTestLogic()
	trs := &types.Transaction{
		Type:            types.Send,
		SenderPublicKey: []byte("pub-a"),
		SenderID:        "DDK1",
		RecipientID:     "DDK2",
		Amount:          10,
		Fee:             1,
		Timestamp:       100,
		Signature:       []byte("sig"),
	}

	assert.Equal(t, lg.GetID(trs), lg.GetID(trs))
}

func TestNewVerifyRejectsMissingSignature(t *testing.T) {
	lg, _ := newTestLogic()
	trs := &types.Transaction{SenderPublicKey: []byte("pub-a")}

	err := lg.NewVerify(VerifyInput{Trs: trs, CheckExists: false})
	assert.Equal(t, ErrBadSignature, err)
}

func TestNewVerifyRejectsAlreadyConfirmed(t *testing.T) {
	lg, _ := newTestLogic()
	trs := &types.Transaction{SenderPublicKey: []byte("pub-a"), Signature: []byte("sig")}
	trs.ID = lg.GetID(trs)
	lg.MarkConfirmed(trs.ID)

	err := lg.NewVerify(VerifyInput{Trs: trs, CheckExists: true})
	assert.Equal(t, ErrAlreadyConfirmed, err)
}

func TestNewVerifyAcceptsGenuineEd25519Signature(t *testing.T) {
	lg, _ := newTestLogic()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	trs := &types.Transaction{
		Type:            types.Send,
		SenderPublicKey: pub,
		SenderID:        types.DeriveSenderID(pub),
		RecipientID:     "DDK2",
		Amount:          10,
		Fee:             1,
		Timestamp:       100,
	}
	trs.Signature = ed25519.Sign(priv, lg.signingBytes(trs))
	trs.ID = lg.GetID(trs)

	assert.NoError(t, lg.NewVerify(VerifyInput{Trs: trs}))
}

func TestNewVerifyRejectsTamperedEd25519Signature(t *testing.T) {
	lg, _ := newTestLogic()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	trs := &types.Transaction{
		Type:            types.Send,
		SenderPublicKey: pub,
		SenderID:        types.DeriveSenderID(pub),
		RecipientID:     "DDK2",
		Amount:          10,
		Fee:             1,
		Timestamp:       100,
	}
	trs.Signature = ed25519.Sign(priv, lg.signingBytes(trs))
	trs.Amount = 999 // tamper after signing
	trs.ID = lg.GetID(trs)

	assert.Equal(t, ErrBadSignature, lg.NewVerify(VerifyInput{Trs: trs}))
}

func TestNewVerifyUnconfirmedInsufficientBalance(t *testing.T) {
	lg, l := newTestLogic()
	key := []byte("pub-a")
	acc, err := l.GetOrCreateAccount(key)
	require.NoError(t, err)
	l.SetInitialBalance(key, 5)

	trs := &types.Transaction{SenderID: acc.Address, Amount: 10, Fee: 1}
	err = lg.NewVerifyUnconfirmed(VerifyUnconfirmedInput{Trs: trs, Sender: acc})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestNewVerifyUnconfirmedVoteLimit(t *testing.T) {
	lg, l := newTestLogic()
	key := []byte("pub-a")
	acc, err := l.GetOrCreateAccount(key)
	require.NoError(t, err)
	l.SetInitialBalance(key, 1_000_000)

	for i := 0; i < maxVotesPerAccount; i++ {
		lg.pendingVotes[acc.Address]++
	}

	trs := &types.Transaction{SenderID: acc.Address, Type: types.Vote, Amount: 1}
	err = lg.NewVerifyUnconfirmed(VerifyUnconfirmedInput{Trs: trs, Sender: acc})
	assert.Equal(t, ErrVoteLimitExceeded, err)
}

func TestApplyThenUndoUnconfirmedRoundTrips(t *testing.T) {
	lg, l := newTestLogic()
	key := []byte("pub-a")
	acc, err := l.GetOrCreateAccount(key)
	require.NoError(t, err)
	l.SetInitialBalance(key, 100)

	trs := &types.Transaction{SenderID: acc.Address, Amount: 10, Fee: 1}
	require.NoError(t, lg.NewApplyUnconfirmed(trs))
	assert.Equal(t, uint64(89), acc.UBalance)

	require.NoError(t, lg.NewUndoUnconfirmed(trs))
	assert.Equal(t, uint64(100), acc.UBalance)
}

func TestApplyUnconfirmedTracksPendingVotes(t *testing.T) {
	lg, l := newTestLogic()
	key := []byte("pub-a")
	acc, err := l.GetOrCreateAccount(key)
	require.NoError(t, err)
	l.SetInitialBalance(key, 100)

	trs := &types.Transaction{SenderID: acc.Address, Type: types.Vote, Amount: 1}
	require.NoError(t, lg.NewApplyUnconfirmed(trs))
	assert.Equal(t, 1, lg.pendingVotes[acc.Address])

	require.NoError(t, lg.NewUndoUnconfirmed(trs))
	assert.Equal(t, 0, lg.pendingVotes[acc.Address])
}
