package blockverifier

import (
	"github.com/ddk-chain/ddk-node/internal/types"
)

// ConfirmedChecker reports whether a transaction id is already
// committed to the ledger — the "checkTransactions" step of
// ProcessBlock needs this to detect a block replaying a confirmed
// transaction.
type ConfirmedChecker interface {
	IsConfirmed(id string) bool
}

// BlockStore persists an accepted block, consumed here only through the
// narrow save-block seam ProcessBlock needs.
type BlockStore interface {
	SaveBlock(blk *types.Block) error
}

// ProcessOptions configures ProcessBlock.
type ProcessOptions struct {
	Broadcast   bool
	Verify      bool
	CurrentSlot int64
	SaveBlock   bool
}

// ProcessBlock orchestrates the accept pipeline: normalize, optionally
// verify, check for already-confirmed duplicate transactions (forking
// on replay), apply to the pool, and persist. It returns the first
// error encountered; on success, the accepted block is reflected via
// OnNewBlock and the pool has released every transaction the block
// confirmed.
func (v *Verifier) ProcessBlock(blk *types.Block, confirmed ConfirmedChecker, store BlockStore, opts ProcessOptions) error {
	blk = v.crypto.ObjectNormalize(blk)

	if opts.Verify {
		var res *Result
		if v.lastBlock != nil {
			res = v.VerifyBlock(blk, opts.CurrentSlot)
		} else {
			res = v.VerifyReceipt(blk, opts.CurrentSlot)
		}
		if !res.OK() {
			log.WithField("block", blk.ID).WithField("errors", res.Errors).Debug("block failed verification")
			return res.Errors[0]
		}
	}

	if confirmed != nil {
		for _, trs := range blk.Transactions {
			if confirmed.IsConfirmed(trs.ID) {
				if v.delegates != nil {
					v.delegates.SignalFork(ForkDuplicateConfirmedTx, blk)
				}
				if v.pool != nil {
					v.pool.Remove(trs)
				}
				log.WithField("tx", trs.ID).Warn("duplicate confirmed transaction in block, fork-2 signaled")
			}
		}
	}

	if v.pool != nil {
		for _, trs := range blk.Transactions {
			if v.pool.Has(trs) {
				v.pool.Remove(trs)
			}
			trs.Status = types.Confirmed
		}
	}

	if opts.SaveBlock && store != nil {
		if err := store.SaveBlock(blk); err != nil {
			return err
		}
	}

	v.OnNewBlock(blk)
	return nil
}
