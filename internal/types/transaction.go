// Package types holds the shapes shared across the admission pipeline:
// transactions, blocks, their lifecycle status, and the address/sort
// helpers that several components need without importing each other.
package types

import (
	"crypto/sha256"
	"math/big"
)

// Type tags the kind of transaction. The admission pipeline treats a
// handful of these specially (SIGNATURE, VOTE, REFERRAL, SEND); the rest
// flow through the generic path.
type Type uint8

// Transaction type tags. Values are part of the wire/consensus surface;
// do not renumber.
const (
	Send Type = iota
	Signature
	Vote
	Referral
	Stake
	SendStake
)

func (t Type) String() string {
	switch t {
	case Send:
		return "SEND"
	case Signature:
		return "SIGNATURE"
	case Vote:
		return "VOTE"
	case Referral:
		return "REFERRAL"
	case Stake:
		return "STAKE"
	case SendStake:
		return "SENDSTAKE"
	default:
		return "UNKNOWN"
	}
}

// Status is the lifecycle tag of a transaction as it moves through
// Queue and Pool.
type Status uint8

const (
	Created Status = iota
	Queued
	QueuedAsConflicted
	Verified
	Declined
	PutInPool
	UnconfirmApplied
	Confirmed
)

func (s Status) String() string {
	switch s {
	case Created:
		return "CREATED"
	case Queued:
		return "QUEUED"
	case QueuedAsConflicted:
		return "QUEUED_AS_CONFLICTED"
	case Verified:
		return "VERIFIED"
	case Declined:
		return "DECLINED"
	case PutInPool:
		return "PUT_IN_POOL"
	case UnconfirmApplied:
		return "UNCONFIRM_APPLIED"
	case Confirmed:
		return "CONFIRMED"
	default:
		return "UNKNOWN"
	}
}

// Transaction is the immutable tuple admitted by the Queue and held by
// the Pool. ID and SenderID are derived, not chosen by the caller; use
// crypto.Logic.Create to build one with both populated.
type Transaction struct {
	ID              string
	Type            Type
	SenderPublicKey []byte
	SenderID        string
	RecipientID     string
	Amount          uint64
	Fee             uint64
	Timestamp       int64
	Signature       []byte
	Asset           []byte

	Status Status
}

// AddressPrefix is prepended to every derived account address. It is a
// consensus-visible constant inherited from the chain this node speaks
// to; changing it forks the network.
const AddressPrefix = "DDK"

// DeriveSenderID computes the sender address from a public key:
// SHA-256(publicKey), low 8 bytes read little-endian, rendered as a
// decimal string behind AddressPrefix. Several components (conflict
// detection, account sessions, verification) need to repeat this
// derivation, so it lives here rather than behind a single collaborator.
func DeriveSenderID(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	lo := sum[:8]

	// low 8 bytes, little-endian -> big-endian for big.Int.SetBytes
	rev := make([]byte, 8)
	for i := 0; i < 8; i++ {
		rev[i] = lo[7-i]
	}

	n := new(big.Int).SetBytes(rev)
	return AddressPrefix + n.String()
}
