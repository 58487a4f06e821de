// Package sequence implements a FIFO task serializer: a single logical
// worker drains a queue of tasks one at a time, so the mempool's
// read-modify-write sections never interleave. One goroutine selects
// over a task channel with a time.After-paced idle tick, serializing
// arbitrary tasks rather than mempool-specific channels.
package sequence

import (
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{"prefix": "sequence"})

// defaultMinInterval is the minimum pacing delay between two tasks, a
// tunable knob rather than a correctness constraint.
const defaultMinInterval = 600 * time.Millisecond

// defaultWarningLimit is the queue depth at which onWarning starts
// firing.
const defaultWarningLimit = 50

// Callback is handed to a Worker so it can report completion.
type Callback func(err error, res interface{})

// Worker performs one unit of work and must call done exactly once.
type Worker func(done Callback, args ...interface{})

type task struct {
	worker Worker
	args   []interface{}
	done   Callback
}

// Sequence is a single-consumer FIFO task queue. Zero value is not
// usable; construct with New.
type Sequence struct {
	minInterval time.Duration
	warningLim  int
	onWarning   func(depth, limit int)

	add     chan task
	count   chan chan int
	closeCh chan struct{}
}

// Option configures a Sequence at construction time.
type Option func(*Sequence)

// WithMinInterval overrides the pacing delay between tasks.
func WithMinInterval(d time.Duration) Option {
	return func(s *Sequence) { s.minInterval = d }
}

// WithWarningLimit overrides the depth at which onWarning fires.
func WithWarningLimit(n int) Option {
	return func(s *Sequence) { s.warningLim = n }
}

// WithWarningObserver registers the onWarning callback.
func WithWarningObserver(fn func(depth, limit int)) Option {
	return func(s *Sequence) { s.onWarning = fn }
}

// New constructs a Sequence and starts its worker goroutine. Callers
// must not call Stop more than once.
func New(opts ...Option) *Sequence {
	s := &Sequence{
		minInterval: defaultMinInterval,
		warningLim:  defaultWarningLimit,
		add:         make(chan task),
		count:       make(chan chan int),
		closeCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

// Add enqueues a unit of work. worker is invoked with a callback the
// Sequence supplies; once the worker reports completion, done (if
// non-nil) is invoked with the same (err, res).
func (s *Sequence) Add(worker Worker, done Callback, args ...interface{}) {
	s.add <- task{worker: worker, args: args, done: done}
}

// Count returns the current queue depth.
func (s *Sequence) Count() int {
	reply := make(chan int, 1)
	s.count <- reply
	return <-reply
}

// Stop terminates the worker goroutine. Pending tasks are dropped.
func (s *Sequence) Stop() {
	close(s.closeCh)
}

// run is the single logical worker: it owns a backing slice used as a
// ring-free FIFO, ticks at minInterval, and fires onWarning whenever the
// depth crosses warningLim at the start of a tick.
func (s *Sequence) run() {
	var pending []task
	timer := time.NewTimer(s.minInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.closeCh:
			return

		case t := <-s.add:
			pending = append(pending, t)

		case reply := <-s.count:
			reply <- len(pending)

		case <-timer.C:
			depth := len(pending)
			if s.onWarning != nil && depth >= s.warningLim {
				s.onWarning(depth, s.warningLim)
			}

			if depth == 0 {
				timer.Reset(s.minInterval)
				continue
			}

			next := pending[0]
			pending = pending[1:]
			s.runOne(next)
			timer.Reset(s.minInterval)
		}
	}
}

// runOne executes a single task synchronously; the worker's own
// blocking calls (db lookups, crypto verification, bus emits) block
// this goroutine, enforcing single-writer discipline over the ledger.
func (s *Sequence) runOne(t task) {
	cb := func(err error, res interface{}) {
		if err != nil {
			log.WithError(err).Debug("worker reported error")
		}
		if t.done != nil {
			t.done(err, res)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("worker panicked, sequence continues")
		}
	}()

	t.worker(cb, t.args...)
}
