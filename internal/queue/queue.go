// Package queue implements the admission stage: a staged
// verify-then-push pipeline that either lands a transaction in the
// pool, parks it in a conflicted queue for a later pass, or declines
// it. A single goroutine drains a queue in a loop, running a two-phase
// verify and a conflict-aware push for each entry.
package queue

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ddk-chain/ddk-node/internal/bus"
	"github.com/ddk-chain/ddk-node/internal/crypto"
	"github.com/ddk-chain/ddk-node/internal/ledger"
	"github.com/ddk-chain/ddk-node/internal/types"
)

var log = logrus.WithFields(logrus.Fields{"prefix": "queue"})

// DefaultConflictedExpiry is how long a conflicted entry is allowed to
// wait for reshuffle before the sweeper drops it.
const DefaultConflictedExpiry = 3 * time.Hour

// Pool is the slice of the Pool the Queue depends on.
type Pool interface {
	Has(trs *types.Transaction) bool
	IsPotentialConflict(trs *types.Transaction) bool
	Push(trs *types.Transaction, broadcast, force bool) bool
}

// Ledger is the slice of the Accounts collaborator the Queue depends
// on for sender lookups before verification.
type Ledger interface {
	GetOrCreateAccount(publicKey []byte) (*ledger.Account, error)
}

// TransactionLogic is the slice of transaction-crypto operations the
// Queue consumes: the two verify phases.
type TransactionLogic interface {
	NewVerify(in crypto.VerifyInput) error
	NewVerifyUnconfirmed(in crypto.VerifyUnconfirmedInput) error
}

// AccountSessions is the slice of the per-account notification
// collaborator the Queue consumes for "pool/verify" messages.
type AccountSessions interface {
	Send(address, channel string, payload interface{})
}

const channelPoolVerify = "pool/verify"

type conflictedEntry struct {
	trs    *types.Transaction
	expire time.Time
}

// Queue is the admission stage. Construct with New; New starts no
// goroutines. Push and Unlock start the processing goroutine when work
// is pending, and StartSweeper starts the sweeper.
type Queue struct {
	pool   Pool
	ledger Ledger
	logic  TransactionLogic
	sess   AccountSessions
	expiry time.Duration

	mu         sync.Mutex
	queue      []*types.Transaction
	conflicted []conflictedEntry
	locked     bool
	processing bool

	sweeperStop chan struct{}
}

// New constructs a Queue. expiry of zero selects DefaultConflictedExpiry.
func New(pool Pool, ldgr Ledger, logic TransactionLogic, sess AccountSessions, expiry time.Duration) *Queue {
	if expiry <= 0 {
		expiry = DefaultConflictedExpiry
	}
	return &Queue{
		pool:   pool,
		ledger: ldgr,
		logic:  logic,
		sess:   sess,
		expiry: expiry,
	}
}

// Len reports the current admission-queue depth (excludes the
// conflicted queue).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// ConflictedLen reports the current conflicted-queue depth.
func (q *Queue) ConflictedLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.conflicted)
}

// Lock halts admission without dropping queued work.
func (q *Queue) Lock() {
	q.mu.Lock()
	q.locked = true
	q.mu.Unlock()
}

// Unlock resumes admission and kicks process() if work is pending.
func (q *Queue) Unlock() {
	q.mu.Lock()
	q.locked = false
	needsKick := len(q.queue) > 0 && !q.processing
	q.mu.Unlock()

	if needsKick {
		go q.process()
	}
}

// Push appends trs to the queue. If the queue was empty, a processing
// cycle is kicked; otherwise the queue is re-sorted in place by
// types.SortFunc so ordering stays canonical as entries arrive out of
// order.
func (q *Queue) Push(trs *types.Transaction) {
	trs.Status = types.Queued

	q.mu.Lock()
	wasEmpty := len(q.queue) == 0
	q.queue = append(q.queue, trs)
	if !wasEmpty {
		types.SortTransactions(q.queue)
	}
	shouldKick := wasEmpty && !q.processing
	q.mu.Unlock()

	if shouldKick {
		go q.process()
	}
}

// pushInConflictedQueue parks trs for a later reshuffle.
func (q *Queue) pushInConflictedQueue(trs *types.Transaction) {
	trs.Status = types.QueuedAsConflicted

	q.mu.Lock()
	q.conflicted = append(q.conflicted, conflictedEntry{trs: trs, expire: time.Now().Add(q.expiry)})
	q.mu.Unlock()
}

// Reshuffle drains the conflicted queue back onto the main queue.
// Order doesn't matter: Push's sort immediately reimposes
// types.SortFunc's canonical order.
func (q *Queue) Reshuffle() {
	q.mu.Lock()
	entries := q.conflicted
	q.conflicted = nil
	q.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		q.Push(entries[i].trs)
	}
}

// sweepExpired drops conflicted entries whose expire has passed:
// expiration is enforced, not merely advisory.
func (q *Queue) sweepExpired(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.conflicted[:0]
	dropped := 0
	for _, e := range q.conflicted {
		if now.After(e.expire) {
			e.trs.Status = types.Declined
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	q.conflicted = kept
	return dropped
}

// StartSweeper launches a goroutine that calls sweepExpired every
// interval until StopSweeper is called.
func (q *Queue) StartSweeper(interval time.Duration) {
	q.sweeperStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := q.sweepExpired(time.Now()); n > 0 {
					log.WithField("dropped", n).Debug("swept expired conflicted transactions")
				}
			case <-q.sweeperStop:
				return
			}
		}
	}()
}

// StopSweeper halts the sweeper goroutine started by StartSweeper.
func (q *Queue) StopSweeper() {
	if q.sweeperStop != nil {
		close(q.sweeperStop)
	}
}

// process is the admission state machine. It loops until the queue
// drains or a lock blocks progress.
func (q *Queue) process() {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return
	}
	q.processing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		if q.locked || len(q.queue) == 0 {
			q.mu.Unlock()
			return
		}
		trs := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()

		q.processOne(trs)
	}
}

// processOne is only ever reached with the queue unlocked: process()'s
// loop guard already returns before dequeuing anything while locked.
func (q *Queue) processOne(trs *types.Transaction) {
	if q.pool.Has(trs) {
		// duplicate admitted concurrently
		return
	}

	if q.pool.IsPotentialConflict(trs) {
		q.pushInConflictedQueue(trs)
		return
	}

	sender, err := q.ledger.GetOrCreateAccount(trs.SenderPublicKey)
	if err != nil {
		log.WithError(err).WithField("tx", trs.ID).Error("could not load sender account, dropping from sequence")
		return
	}

	if err := q.verify(trs, sender); err != nil {
		trs.Status = types.Declined
		q.notifyVerify(trs, false, err)
		return
	}

	trs.Status = types.Verified
	q.notifyVerify(trs, true, nil)

	if q.pool.Push(trs, true, false) {
		return
	}

	// raced conflict, pool lock, or apply failure: re-enqueue.
	q.Push(trs)
}

// verify runs the two-phase verification: signature/shape, then
// balance and per-account limits.
func (q *Queue) verify(trs *types.Transaction, sender *ledger.Account) error {
	if err := q.logic.NewVerify(crypto.VerifyInput{Trs: trs, Sender: sender, CheckExists: true}); err != nil {
		return err
	}
	if err := q.logic.NewVerifyUnconfirmed(crypto.VerifyUnconfirmedInput{Trs: trs, Sender: sender}); err != nil {
		return err
	}
	return nil
}

func (q *Queue) notifyVerify(trs *types.Transaction, verified bool, err error) {
	if q.sess == nil {
		return
	}
	msg := bus.AccountMessage{Verified: verified}
	if err != nil {
		msg.Error = err.Error()
	}
	q.sess.Send(trs.SenderID, channelPoolVerify, msg)
}
