// Package blockverifier implements the pre-apply block validation
// pipeline: verifyReceipt is the lighter pass used before committing to
// process a peer's block; verifyBlock adds the fork-detection checks
// that require knowing lastBlock. A "receive, validate, maybe defer"
// shape, with a canonical transaction-bytes/rolling-hash payload
// convention.
package blockverifier

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ddk-chain/ddk-node/internal/types"
)

var log = logrus.WithFields(logrus.Fields{"prefix": "blockverifier"})

// Fork signal kinds.
const (
	ForkWrongPreviousBlock   = 1
	ForkDuplicateConfirmedTx = 2
	ForkWrongSlotDelegate    = 3
)

// BlockCrypto is the slice of block-crypto operations the Verifier
// consumes.
type BlockCrypto interface {
	VerifySignature(blk *types.Block) bool
	GetID(blk *types.Block) string
	ObjectNormalize(blk *types.Block) *types.Block
}

// TransactionBytes is the slice of transaction-crypto operations the
// Verifier needs to recompute canonical transaction bytes for the
// rolling payload digest.
type TransactionBytes interface {
	GetBytes(trs *types.Transaction) []byte
}

// BlockVersion validates a (version, height) pair.
type BlockVersion interface {
	IsValid(version uint8, height uint64) bool
}

// Delegates receives fork signals: the rounds/rewards and fork-choice
// module this package treats as an external collaborator.
type Delegates interface {
	SignalFork(kind int, blk *types.Block)
}

// Pool is the slice of the Pool the Verifier needs during processBlock
// to drop transactions the accepted block already confirms.
type Pool interface {
	Has(trs *types.Transaction) bool
	Remove(trs *types.Transaction) bool
}

// Result accumulates verification errors; a block is verified iff
// Errors is empty.
type Result struct {
	Errors []error
}

// OK reports whether no errors were recorded.
func (r *Result) OK() bool { return len(r.Errors) == 0 }

func (r *Result) fail(format string, args ...interface{}) {
	r.Errors = append(r.Errors, errors.Errorf(format, args...))
}

// DefaultBlockVersion accepts only version 1 for any pre-migration block
// and any version of 1 or higher after, without specifying a richer
// version table.
type DefaultBlockVersion struct {
	MigrationHeight uint64
}

// IsValid implements BlockVersion.
func (v DefaultBlockVersion) IsValid(version uint8, height uint64) bool {
	if height <= v.MigrationHeight {
		return version == 1
	}
	return version >= 1
}

// Verifier is the BlockVerifier. Construct with New.
type Verifier struct {
	cfg       Config
	crypto    BlockCrypto
	txBytes   TransactionBytes
	version   BlockVersion
	reward    RewardCalculator
	delegates Delegates
	pool      Pool

	rewardExceptions map[string]bool

	ring      *types.BlockIDRing
	lastBlock *types.Block
}

// New constructs a Verifier. version and reward may be nil to fall back
// to DefaultBlockVersion and a zero-issuance HalvingReward.
func New(cfg Config, bc BlockCrypto, txBytes TransactionBytes, version BlockVersion, reward RewardCalculator, delegates Delegates, pool Pool) *Verifier {
	if version == nil {
		version = DefaultBlockVersion{MigrationHeight: cfg.MasterNodeMigratedBlock}
	}
	if reward == nil {
		reward = NewHalvingReward(0, 0)
	}
	return &Verifier{
		cfg:              cfg,
		crypto:           bc,
		txBytes:          txBytes,
		version:          version,
		reward:           reward,
		delegates:        delegates,
		pool:             pool,
		rewardExceptions: make(map[string]bool),
		ring:             types.NewBlockIDRing(cfg.BlockSlotWindow),
	}
}

// AddRewardException marks blockID as exempt from the verifyReward
// check.
func (v *Verifier) AddRewardException(blockID string) {
	v.rewardExceptions[blockID] = true
}

// SeedLastNBlockIDs preloads the ring buffer at startup.
func (v *Verifier) SeedLastNBlockIDs(ids []string) {
	v.ring.Seed(ids)
}

// SetLastBlock records the current chain tip, used by verifyBlock's
// fork and slot checks.
func (v *Verifier) SetLastBlock(blk *types.Block) {
	v.lastBlock = blk
}

// OnNewBlock records an accepted block's id in the ring and advances
// lastBlock.
func (v *Verifier) OnNewBlock(blk *types.Block) {
	v.ring.Append(blk.ID)
	v.lastBlock = blk
}

// VerifyReceipt runs the lighter pass used before committing to
// process a block received from a peer: all common checks plus
// verifyAgainstLastNBlockIds and verifyBlockSlotWindow.
func (v *Verifier) VerifyReceipt(blk *types.Block, currentSlot int64) *Result {
	res := &Result{}

	v.setHeight(blk)
	v.verifySignature(blk, res)
	v.verifyPreviousBlock(blk, res)
	v.verifyAgainstLastNBlockIDs(blk, res)
	v.verifyBlockSlotWindow(blk, currentSlot, res)
	v.verifyVersion(blk, res)
	v.verifyID(blk, res)
	v.verifyPayload(blk, res)
	v.verifyReward(blk, res)

	return res
}

// VerifyBlock runs the full pass, adding verifyForkOne and
// verifyBlockSlot which require lastBlock.
func (v *Verifier) VerifyBlock(blk *types.Block, currentSlot int64) *Result {
	res := &Result{}

	v.setHeight(blk)
	v.verifySignature(blk, res)
	v.verifyPreviousBlock(blk, res)
	v.verifyVersion(blk, res)
	v.verifyID(blk, res)
	v.verifyPayload(blk, res)
	v.verifyReward(blk, res)
	v.verifyForkOne(blk, res)
	v.verifyBlockSlot(blk, currentSlot, res)

	return res
}

// setHeight sets block.height to lastBlock.height+1 when a chain tip
// is known and the block carries no height; a non-zero height the
// caller already set is left unchanged (e.g. during verifyReceipt
// before sync catches up).
func (v *Verifier) setHeight(blk *types.Block) {
	if v.lastBlock != nil && blk.Height == 0 {
		blk.Height = v.lastBlock.Height + 1
	}
}

// verifySignature delegates to block crypto; the migration height
// disables this error for pre-migration blocks.
func (v *Verifier) verifySignature(blk *types.Block, res *Result) {
	if blk.Height <= v.cfg.MasterNodeMigratedBlock {
		return
	}
	if !v.crypto.VerifySignature(blk) {
		res.fail("block %s: invalid signature", blk.ID)
	}
}

func (v *Verifier) verifyPreviousBlock(blk *types.Block, res *Result) {
	if blk.Height != 1 && blk.PreviousBlock == "" {
		res.fail("block %s: missing previous block reference", blk.ID)
	}
}

func (v *Verifier) verifyAgainstLastNBlockIDs(blk *types.Block, res *Result) {
	if v.ring.Contains(blk.ID) {
		res.fail("block %s: already present in recent block window", blk.ID)
	}
}

func (v *Verifier) verifyBlockSlotWindow(blk *types.Block, currentSlot int64, res *Result) {
	blockSlot := v.cfg.Slot(blk.Timestamp)
	delta := currentSlot - blockSlot

	if delta < 0 {
		res.fail("block %s: slot %d is in the future (current slot %d)", blk.ID, blockSlot, currentSlot)
		return
	}
	if delta > int64(v.cfg.BlockSlotWindow) {
		res.fail("block %s: slot %d is too old (current slot %d)", blk.ID, blockSlot, currentSlot)
	}
}

func (v *Verifier) verifyVersion(blk *types.Block, res *Result) {
	if !v.version.IsValid(blk.Version, blk.Height) {
		res.fail("block %s: version %d invalid at height %d", blk.ID, blk.Version, blk.Height)
	}
}

func (v *Verifier) verifyID(blk *types.Block, res *Result) {
	expected := v.crypto.GetID(blk)
	if blk.ID != "" && blk.ID != expected {
		res.fail("block %s: id mismatch, expected %s", blk.ID, expected)
	}
}

// verifyPayload runs the multi-part payload check. Sum and digest
// equality are only enforced post-migration, preserving the
// historical-compatibility gate.
func (v *Verifier) verifyPayload(blk *types.Block, res *Result) {
	postMigration := blk.Height > v.cfg.MasterNodeMigratedBlock

	if blk.PayloadLength > v.cfg.MaxPayloadLength {
		res.fail("block %s: payload length %d exceeds max %d", blk.ID, blk.PayloadLength, v.cfg.MaxPayloadLength)
	}

	if postMigration && len(blk.Transactions) != blk.NumberOfTransactions {
		res.fail("block %s: declared %d transactions, found %d", blk.ID, blk.NumberOfTransactions, len(blk.Transactions))
	}

	if len(blk.Transactions) > v.cfg.MaxTxsPerBlock {
		res.fail("block %s: %d transactions exceeds max %d", blk.ID, len(blk.Transactions), v.cfg.MaxTxsPerBlock)
	}

	h := sha256.New()
	seen := make(map[string]struct{}, len(blk.Transactions))
	var totalAmount, totalFee uint64

	for _, trs := range blk.Transactions {
		if _, dup := seen[trs.ID]; dup {
			res.fail("Encountered duplicate transaction: %s", trs.ID)
			continue
		}
		seen[trs.ID] = struct{}{}

		h.Write(v.txBytes.GetBytes(trs))
		totalAmount += trs.Amount
		totalFee += trs.Fee
	}

	digest := hex.EncodeToString(h.Sum(nil))

	if postMigration {
		if blk.PayloadHash != "" && digest != blk.PayloadHash {
			res.fail("block %s: payload hash mismatch", blk.ID)
		}
		if totalAmount != blk.TotalAmount {
			res.fail("block %s: total amount mismatch, computed %d declared %d", blk.ID, totalAmount, blk.TotalAmount)
		}
		if totalFee != blk.TotalFee {
			res.fail("block %s: total fee mismatch, computed %d declared %d", blk.ID, totalFee, blk.TotalFee)
		}
	}
}

// verifyReward checks block issuance, including the post-max-height
// zero-issuance rule and the genesis/exception carve-outs.
func (v *Verifier) verifyReward(blk *types.Block, res *Result) {
	expected := v.reward.CalcReward(blk.Height)
	if blk.Height > v.cfg.MaxHeightWithReward {
		expected = 0
		blk.Reward = 0
	}

	if blk.Height == 1 || v.rewardExceptions[blk.ID] {
		return
	}

	if blk.Reward != expected {
		res.fail("block %s: reward %d does not match expected %d", blk.ID, blk.Reward, expected)
	}
}

// verifyForkOne signals a type-1 fork when the block's declared parent
// does not match the chain tip (full verification only).
func (v *Verifier) verifyForkOne(blk *types.Block, res *Result) {
	if v.lastBlock == nil {
		return
	}
	if blk.PreviousBlock != v.lastBlock.ID {
		if v.delegates != nil {
			v.delegates.SignalFork(ForkWrongPreviousBlock, blk)
		}
		res.fail("block %s: previous block %s does not match chain tip %s", blk.ID, blk.PreviousBlock, v.lastBlock.ID)
	}
}

// verifyBlockSlot checks slot(block.timestamp) ∈ (slot(lastBlock.timestamp), currentSlot].
func (v *Verifier) verifyBlockSlot(blk *types.Block, currentSlot int64, res *Result) {
	if v.lastBlock == nil {
		return
	}
	blockSlot := v.cfg.Slot(blk.Timestamp)
	lastSlot := v.cfg.Slot(v.lastBlock.Timestamp)

	if !(blockSlot > lastSlot && blockSlot <= currentSlot) {
		res.fail("block %s: slot %d not in (%d, %d]", blk.ID, blockSlot, lastSlot, currentSlot)
	}
}
