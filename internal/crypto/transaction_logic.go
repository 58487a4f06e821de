// Package crypto supplies the reference implementation of the
// TransactionLogic and BlockCrypto collaborators: id derivation,
// signature verification, and the two-phase verify/apply/undo
// lifecycle the Queue and Pool drive. Amounts are plain uint64; object
// ids use a canonical byte layout hashed with SHA-256.
package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ed25519"

	"github.com/ddk-chain/ddk-node/internal/ledger"
	"github.com/ddk-chain/ddk-node/internal/types"
)

// ErrBadSignature is returned by VerifySignature-family checks.
var ErrBadSignature = errors.New("crypto: signature verification failed")

// ErrAlreadyConfirmed is returned by phase-1 verify when checkExists
// finds the transaction already committed.
var ErrAlreadyConfirmed = errors.New("crypto: transaction already confirmed")

// ErrVoteLimitExceeded is returned by phase-2 verify for excess votes.
var ErrVoteLimitExceeded = errors.New("crypto: vote limit exceeded")

// maxVotesPerAccount bounds outstanding VOTE transactions per sender, a
// small fixed bound enforced during phase-2 verification.
const maxVotesPerAccount = 33

// Logic is the reference TransactionLogic. It is intentionally simple:
// it does enough real cryptographic work (SHA-256 id derivation,
// ed25519 signature checks) to be a faithful stand-in for the
// wire-format-owning collaborator the Queue and Pool treat as
// external.
type Logic struct {
	ledger *ledger.Ledger

	// confirmed tracks ids considered already-committed, used by
	// checkExists during phase-1 verify. A real node backs this with
	// chain state; here it's an explicit seam for tests.
	confirmed map[string]struct{}

	// pendingVotes counts in-flight VOTE transactions per sender for
	// the phase-2 vote-limit check.
	pendingVotes map[string]int
}

// NewLogic returns a Logic bound to ledger for balance effects.
func NewLogic(l *ledger.Ledger) *Logic {
	return &Logic{
		ledger:       l,
		confirmed:    make(map[string]struct{}),
		pendingVotes: make(map[string]int),
	}
}

// MarkConfirmed records id as already committed, for checkExists.
func (lg *Logic) MarkConfirmed(id string) {
	lg.confirmed[id] = struct{}{}
}

// GetBytes renders the canonical byte layout a transaction's id is
// derived from: every field except id and status, in a fixed order.
func (lg *Logic) GetBytes(trs *types.Transaction) []byte {
	buf := new(bytes.Buffer)

	buf.WriteByte(byte(trs.Type))
	buf.Write(trs.SenderPublicKey)
	buf.WriteString(trs.SenderID)
	buf.WriteString(trs.RecipientID)

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], trs.Amount)
	buf.Write(num[:])

	binary.BigEndian.PutUint64(num[:], trs.Fee)
	buf.Write(num[:])

	binary.BigEndian.PutUint64(num[:], uint64(trs.Timestamp))
	buf.Write(num[:])

	buf.Write(trs.Signature)
	buf.Write(trs.Asset)

	return buf.Bytes()
}

// signingBytes renders the same canonical layout as GetBytes, minus the
// signature itself — the message an ed25519 signature actually covers.
func (lg *Logic) signingBytes(trs *types.Transaction) []byte {
	buf := new(bytes.Buffer)

	buf.WriteByte(byte(trs.Type))
	buf.Write(trs.SenderPublicKey)
	buf.WriteString(trs.SenderID)
	buf.WriteString(trs.RecipientID)

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], trs.Amount)
	buf.Write(num[:])

	binary.BigEndian.PutUint64(num[:], trs.Fee)
	buf.Write(num[:])

	binary.BigEndian.PutUint64(num[:], uint64(trs.Timestamp))
	buf.Write(num[:])

	buf.Write(trs.Asset)

	return buf.Bytes()
}

// GetID derives a transaction's id deterministically from its content:
// SHA-256 over the canonical byte layout, hex-encoded.
func (lg *Logic) GetID(trs *types.Transaction) string {
	sum := sha256.Sum256(lg.GetBytes(trs))
	return bigHex(sum[:])
}

func bigHex(b []byte) string {
	return new(big.Int).SetBytes(b).Text(16)
}

// VerifyInput bundles the arguments to NewVerify/NewVerifyUnconfirmed:
// {trs, sender, checkExists}.
type VerifyInput struct {
	Trs         *types.Transaction
	Sender      *ledger.Account
	CheckExists bool
}

// NewVerify is phase 1 of verification: signature, id derivation,
// schema shape, not-yet-confirmed.
func (lg *Logic) NewVerify(in VerifyInput) error {
	if in.Trs.SenderPublicKey == nil {
		return errors.New("crypto: missing sender public key")
	}
	if len(in.Trs.Signature) == 0 {
		return ErrBadSignature
	}
	if len(in.Trs.SenderPublicKey) == ed25519.PublicKeySize {
		if !ed25519.Verify(in.Trs.SenderPublicKey, lg.signingBytes(in.Trs), in.Trs.Signature) {
			return ErrBadSignature
		}
	}

	expectedID := lg.GetID(in.Trs)
	if in.Trs.ID != "" && in.Trs.ID != expectedID {
		return errors.New("crypto: id mismatch")
	}

	if in.CheckExists {
		if _, ok := lg.confirmed[expectedID]; ok {
			return ErrAlreadyConfirmed
		}
	}

	return nil
}

// VerifyUnconfirmedInput bundles arguments for NewVerifyUnconfirmed.
type VerifyUnconfirmedInput struct {
	Trs    *types.Transaction
	Sender *ledger.Account
}

// NewVerifyUnconfirmed is phase 2: balance sufficiency against the
// sender's unconfirmed balance, vote limits, frozen-amount rules.
func (lg *Logic) NewVerifyUnconfirmed(in VerifyUnconfirmedInput) error {
	total := in.Trs.Amount + in.Trs.Fee
	if in.Sender.UBalance < total {
		return ledger.ErrInsufficientBalance
	}

	if in.Trs.Type == types.Vote {
		if lg.pendingVotes[in.Trs.SenderID] >= maxVotesPerAccount {
			return ErrVoteLimitExceeded
		}
	}

	if in.Sender.UTotalFrozeAmount > 0 && in.Trs.Type == types.Stake {
		// frozen-amount rule: staked funds already committed can't be
		// restaked until unfrozen.
		if in.Sender.UTotalFrozeAmount+in.Trs.Amount > in.Sender.Balance {
			return errors.New("crypto: stake exceeds available balance after freeze")
		}
	}

	return nil
}

// NewApplyUnconfirmed debits the sender's unconfirmed balance by
// amount+fee.
func (lg *Logic) NewApplyUnconfirmed(trs *types.Transaction) error {
	if err := lg.ledger.DebitUnconfirmed(trs.SenderID, trs.Amount, trs.Fee); err != nil {
		return err
	}

	if trs.Type == types.Vote {
		lg.pendingVotes[trs.SenderID]++
	}
	return nil
}

// NewUndoUnconfirmed reverses NewApplyUnconfirmed. Callers are expected
// to log and swallow its errors rather than propagate them.
func (lg *Logic) NewUndoUnconfirmed(trs *types.Transaction) error {
	if err := lg.ledger.CreditUnconfirmed(trs.SenderID, trs.Amount, trs.Fee); err != nil {
		return err
	}

	if trs.Type == types.Vote && lg.pendingVotes[trs.SenderID] > 0 {
		lg.pendingVotes[trs.SenderID]--
	}
	return nil
}

// CalcUndoUnconfirmed computes the reverse balance effect without
// applying it, for callers that need to preview the delta.
func (lg *Logic) CalcUndoUnconfirmed(trs *types.Transaction, account *ledger.Account) {
	account.UBalance += trs.Amount + trs.Fee
}

// CreateParams is the input to Create.
type CreateParams struct {
	Type            types.Type
	SenderPublicKey []byte
	RecipientID     string
	Amount          uint64
	Fee             uint64
	Timestamp       int64
	Signature       []byte
	Asset           []byte
}

// Create builds a Transaction with derived SenderID and ID, in status
// Created.
func (lg *Logic) Create(p CreateParams) (*types.Transaction, error) {
	trs := &types.Transaction{
		Type:            p.Type,
		SenderPublicKey: p.SenderPublicKey,
		SenderID:        types.DeriveSenderID(p.SenderPublicKey),
		RecipientID:     p.RecipientID,
		Amount:          p.Amount,
		Fee:             p.Fee,
		Timestamp:       p.Timestamp,
		Signature:       p.Signature,
		Asset:           p.Asset,
		Status:          types.Created,
	}
	trs.ID = lg.GetID(trs)
	return trs, nil
}
