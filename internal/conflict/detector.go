// Package conflict implements a pure predicate: given a candidate
// transaction and a read-only view of the pool, decide whether
// admitting the candidate could conflict with a transaction already
// pending for the same account.
package conflict

import "github.com/ddk-chain/ddk-node/internal/types"

// PoolView is the minimal read-only surface the detector needs from the
// pool. It exists so the detector has no import-cycle dependency on the
// pool package itself, and so it can be exercised in tests against a
// bare in-memory stub.
type PoolView interface {
	BySender(senderID string) []*types.Transaction
	ByRecipient(recipientID string) []*types.Transaction
}

// IsPotentialConflict evaluates the conflict rule set against
// dependent = pool.byRecipient[trs.senderId] ∪ pool.bySender[trs.senderId].
//
// The function is read-only and side-effect free; it is safe to call
// outside the Sequence as long as the caller accepts that pool may be
// concurrently mutated by whoever does own the Sequence (in practice it
// is always invoked from within the Sequence).
func IsPotentialConflict(trs *types.Transaction, pool PoolView) bool {
	dependent := dependentSet(trs.SenderID, pool)
	if len(dependent) == 0 {
		return false
	}

	switch trs.Type {
	case types.Signature:
		// A sender with any pending tx must not simultaneously rotate keys.
		return true
	case types.Vote:
		for _, d := range dependent {
			if d.Type == types.Vote {
				return true
			}
		}
	case types.Referral:
		for _, d := range dependent {
			if d.Type == types.Referral {
				return true
			}
		}
	}

	candidate := append(append([]*types.Transaction{}, dependent...), trs)
	last := types.Last(candidate)
	return last != trs
}

// dependentSet returns the union of the sender's recipient-indexed and
// sender-indexed pending transactions, deduplicated by ID so a
// transaction that appears in both buckets is not double-counted.
func dependentSet(senderID string, pool PoolView) []*types.Transaction {
	byRecipient := pool.ByRecipient(senderID)
	bySender := pool.BySender(senderID)

	seen := make(map[string]struct{}, len(byRecipient)+len(bySender))
	out := make([]*types.Transaction, 0, len(byRecipient)+len(bySender))

	for _, t := range byRecipient {
		if _, ok := seen[t.ID]; !ok {
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	for _, t := range bySender {
		if _, ok := seen[t.ID]; !ok {
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}

	return out
}
