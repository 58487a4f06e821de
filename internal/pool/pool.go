// Package pool implements the mempool: three mutually consistent
// indexes (byId, bySender, byRecipient), all mutations serialized
// through a sequence.Sequence so that balance effects never interleave.
// Holds the verified set with Push/Remove/Pop/Has/GetSize operations;
// transactions leave it through Remove or PopSortedUnconfirmedTransactions.
package pool

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ddk-chain/ddk-node/internal/bus"
	"github.com/ddk-chain/ddk-node/internal/conflict"
	"github.com/ddk-chain/ddk-node/internal/sequence"
	"github.com/ddk-chain/ddk-node/internal/types"
)

var log = logrus.WithFields(logrus.Fields{"prefix": "pool"})

// TransactionLogic is the slice of transaction-crypto operations the
// Pool consumes directly: applying and undoing unconfirmed balance
// effects.
type TransactionLogic interface {
	NewApplyUnconfirmed(trs *types.Transaction) error
	NewUndoUnconfirmed(trs *types.Transaction) error
}

// Bus is the slice of the Bus the Pool consumes: fire-and-forget topic
// messages.
type Bus interface {
	Message(topic string, payload interface{})
}

// DefaultMaxSharedTxs is the fallback clamp for GetTransactions' limit
// argument when no config overrides it.
const DefaultMaxSharedTxs = 1000

// Pool is the mempool. Construct with New; the zero value is not
// usable.
type Pool struct {
	seq   *sequence.Sequence
	logic TransactionLogic
	bus   Bus

	maxSharedTxs int

	mu          sync.RWMutex
	byID        map[string]*types.Transaction
	bySender    map[string][]*types.Transaction
	byRecipient map[string][]*types.Transaction

	locked bool
}

// New constructs a Pool wired to seq for mutation serialization, logic
// for balance effects, and bus for admission notifications.
func New(seq *sequence.Sequence, logic TransactionLogic, b Bus) *Pool {
	return &Pool{
		seq:          seq,
		logic:        logic,
		bus:          b,
		maxSharedTxs: DefaultMaxSharedTxs,
		byID:         make(map[string]*types.Transaction),
		bySender:     make(map[string][]*types.Transaction),
		byRecipient:  make(map[string][]*types.Transaction),
	}
}

// SetMaxSharedTxs overrides the clamp applied by GetTransactions.
func (p *Pool) SetMaxSharedTxs(n int) {
	if n > 0 {
		p.maxSharedTxs = n
	}
}

// BySender implements conflict.PoolView.
func (p *Pool) BySender(senderID string) []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*types.Transaction{}, p.bySender[senderID]...)
}

// ByRecipient implements conflict.PoolView.
func (p *Pool) ByRecipient(recipientID string) []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*types.Transaction{}, p.byRecipient[recipientID]...)
}

// IsPotentialConflict exposes conflict.IsPotentialConflict against this
// pool's current state.
func (p *Pool) IsPotentialConflict(trs *types.Transaction) bool {
	return conflict.IsPotentialConflict(trs, p)
}

// Has reports whether trs.ID is already present in the pool.
func (p *Pool) Has(trs *types.Transaction) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byID[trs.ID]
	return ok
}

// Get looks a transaction up by id.
func (p *Pool) Get(id string) (*types.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	trs, ok := p.byID[id]
	return trs, ok
}

// GetSize returns the number of transactions currently pooled.
func (p *Pool) GetSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}

// GetTransactionsBySenderID returns the sender's pending bucket, or an
// empty slice if the sender has none.
func (p *Pool) GetTransactionsBySenderID(id string) []*types.Transaction {
	return p.BySender(id)
}

// GetTransactionsByRecipientID returns the recipient's pending bucket,
// or an empty slice if the recipient has none.
func (p *Pool) GetTransactionsByRecipientID(id string) []*types.Transaction {
	return p.ByRecipient(id)
}

// Lock gates admission: Push will refuse non-forced calls while locked.
func (p *Pool) Lock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = true
}

// Unlock clears the admission gate set by Lock.
func (p *Pool) Unlock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = false
}

// GetLockStatus reports whether the pool currently refuses non-forced
// admissions.
func (p *Pool) GetLockStatus() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.locked
}

// Push attempts to admit trs into the pool. It runs under
// the Sequence and blocks until that mutation completes, returning
// whether trs is now in the pool.
func (p *Pool) Push(trs *types.Transaction, broadcast, force bool) bool {
	result := make(chan bool, 1)

	p.seq.Add(func(done sequence.Callback, _ ...interface{}) {
		ok := p.pushLocked(trs, broadcast, force)
		done(nil, ok)
	}, func(_ error, res interface{}) {
		result <- res.(bool)
	})

	return <-result
}

// pushLocked performs the actual index mutation and balance effect; it
// must only be called from within the Sequence.
func (p *Pool) pushLocked(trs *types.Transaction, broadcast, force bool) bool {
	p.mu.Lock()
	if p.locked && !force {
		p.mu.Unlock()
		return false
	}
	if _, exists := p.byID[trs.ID]; exists {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	if conflict.IsPotentialConflict(trs, p) {
		return false
	}

	p.insert(trs)

	if err := p.logic.NewApplyUnconfirmed(trs); err != nil {
		p.remove(trs.ID)
		trs.Status = types.Declined
		log.WithError(err).WithField("tx", trs.ID).Debug("apply unconfirmed failed, rolled back")
		return false
	}

	trs.Status = types.UnconfirmApplied

	if broadcast && p.bus != nil {
		p.bus.Message(bus.TopicTransactionPutInPool, trs)
	}

	return true
}

// insert places trs into all three indexes, keeping them consistent.
func (p *Pool) insert(trs *types.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.byID[trs.ID] = trs
	p.bySender[trs.SenderID] = append(p.bySender[trs.SenderID], trs)
	if trs.Type == types.Send {
		p.byRecipient[trs.RecipientID] = append(p.byRecipient[trs.RecipientID], trs)
	}
}

// remove deletes id from all three indexes; it does not touch ledger
// state. Returns the removed transaction, or nil if absent.
func (p *Pool) remove(id string) *types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	trs, ok := p.byID[id]
	if !ok {
		return nil
	}
	delete(p.byID, id)
	p.bySender[trs.SenderID] = removeByID(p.bySender[trs.SenderID], id)
	if len(p.bySender[trs.SenderID]) == 0 {
		delete(p.bySender, trs.SenderID)
	}
	if trs.Type == types.Send {
		p.byRecipient[trs.RecipientID] = removeByID(p.byRecipient[trs.RecipientID], id)
		if len(p.byRecipient[trs.RecipientID]) == 0 {
			delete(p.byRecipient, trs.RecipientID)
		}
	}
	return trs
}

func removeByID(list []*types.Transaction, id string) []*types.Transaction {
	out := list[:0]
	for _, t := range list {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// Remove undoes trs's unconfirmed balance effect and deletes it from
// all indexes. undoUnconfirmed errors are logged and swallowed:
// removal always proceeds.
func (p *Pool) Remove(trs *types.Transaction) bool {
	result := make(chan bool, 1)

	p.seq.Add(func(done sequence.Callback, _ ...interface{}) {
		if err := p.logic.NewUndoUnconfirmed(trs); err != nil {
			log.WithError(err).WithField("tx", trs.ID).Debug("undo unconfirmed failed, removing anyway")
		}
		removed := p.remove(trs.ID) != nil
		done(nil, removed)
	}, func(_ error, res interface{}) {
		result <- res.(bool)
	})

	return <-result
}

// Pop removes trs and returns the pooled copy, or nil if it wasn't
// present.
func (p *Pool) Pop(trs *types.Transaction) *types.Transaction {
	pooled, ok := p.Get(trs.ID)
	if !ok {
		return nil
	}
	if !p.Remove(pooled) {
		return nil
	}
	return pooled
}

// RemoveTransactionBySenderID purges every pooled transaction from
// sender id, snapshot-then-remove to avoid mutating a slice being
// ranged over.
func (p *Pool) RemoveTransactionBySenderID(id string) []*types.Transaction {
	snapshot := p.BySender(id)
	removed := make([]*types.Transaction, 0, len(snapshot))
	for _, trs := range snapshot {
		if p.Remove(trs) {
			removed = append(removed, trs)
		}
	}
	return removed
}

// RemoveTransactionByRecipientID purges every pooled SEND transaction
// addressed to id, same snapshot-then-remove discipline.
func (p *Pool) RemoveTransactionByRecipientID(id string) []*types.Transaction {
	snapshot := p.ByRecipient(id)
	removed := make([]*types.Transaction, 0, len(snapshot))
	for _, trs := range snapshot {
		if p.Remove(trs) {
			removed = append(removed, trs)
		}
	}
	return removed
}

// PopSortedUnconfirmedTransactions snapshots byId, sorts by
// types.SortFunc, takes the first limit, removes each from the pool,
// and returns them in that order — the moment transactions leave the
// pool for block production.
func (p *Pool) PopSortedUnconfirmedTransactions(limit int) []*types.Transaction {
	p.mu.RLock()
	all := make([]*types.Transaction, 0, len(p.byID))
	for _, trs := range p.byID {
		all = append(all, trs)
	}
	p.mu.RUnlock()

	types.SortTransactions(all)
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]*types.Transaction, 0, len(all))
	for _, trs := range all {
		if p.Remove(trs) {
			out = append(out, trs)
		}
	}
	return out
}

// GetTransactionsOptions configures GetTransactions.
type GetTransactionsOptions struct {
	Limit           int
	SenderPublicKey []byte
}

// GetTransactionsResult is GetTransactions' return value.
type GetTransactionsResult struct {
	Transactions []*types.Transaction
	Count        int
}

// GetTransactions runs the shared-mempool query: if SenderPublicKey is
// set, it projects that account's dependent set (sender ∪ recipient),
// sorts ascending and reverses; otherwise it sorts the full pool
// ascending. Limit is clamped to maxSharedTxs.
func (p *Pool) GetTransactions(opts GetTransactionsOptions) GetTransactionsResult {
	limit := opts.Limit
	if limit <= 0 || limit > p.maxSharedTxs {
		limit = p.maxSharedTxs
	}

	var list []*types.Transaction
	reverse := false

	if len(opts.SenderPublicKey) > 0 {
		senderID := types.DeriveSenderID(opts.SenderPublicKey)
		list = dedupeByID(append(p.BySender(senderID), p.ByRecipient(senderID)...))
		reverse = true
	} else {
		p.mu.RLock()
		list = make([]*types.Transaction, 0, len(p.byID))
		for _, trs := range p.byID {
			list = append(list, trs)
		}
		p.mu.RUnlock()
	}

	types.SortTransactions(list)
	if reverse {
		for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
			list[i], list[j] = list[j], list[i]
		}
	}

	if len(list) > limit {
		list = list[:limit]
	}

	return GetTransactionsResult{Transactions: list, Count: len(list)}
}

func dedupeByID(list []*types.Transaction) []*types.Transaction {
	seen := make(map[string]struct{}, len(list))
	out := make([]*types.Transaction, 0, len(list))
	for _, t := range list {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// snapshotAll returns a copy of the pool contents sorted by ID, read
// under the index lock.
func (p *Pool) snapshotAll() []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*types.Transaction, 0, len(p.byID))
	for _, trs := range p.byID {
		out = append(out, trs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
