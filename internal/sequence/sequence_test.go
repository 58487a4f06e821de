package sequence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceRunsTasksInOrder(t *testing.T) {
	seq := New(WithMinInterval(5 * time.Millisecond))
	defer seq.Stop()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		seq.Add(func(done Callback, _ ...interface{}) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			done(nil, nil)
		}, func(error, interface{}) {
			wg.Done()
		})
	}

	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 5)
	for i, v := range order {
		assert.Equal(t, i, v, "tasks must execute FIFO")
	}
}

func TestSequenceCallbackReceivesWorkerResult(t *testing.T) {
	seq := New(WithMinInterval(5 * time.Millisecond))
	defer seq.Stop()

	result := make(chan interface{}, 1)
	seq.Add(func(done Callback, _ ...interface{}) {
		done(nil, "ok")
	}, func(err error, res interface{}) {
		result <- res
	})

	select {
	case res := <-result:
		assert.Equal(t, "ok", res)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestSequenceSurvivesWorkerPanic(t *testing.T) {
	seq := New(WithMinInterval(5 * time.Millisecond))
	defer seq.Stop()

	seq.Add(func(done Callback, _ ...interface{}) {
		panic("boom")
	}, nil)

	// a task added after the panicking one still runs, proving the
	// worker goroutine recovered and kept draining.
	done := make(chan struct{})
	seq.Add(func(d Callback, _ ...interface{}) {
		d(nil, nil)
	}, func(error, interface{}) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sequence did not recover from a panicking worker")
	}
}

func TestSequenceWarningObserverFires(t *testing.T) {
	var mu sync.Mutex
	fired := false

	seq := New(
		WithMinInterval(20*time.Millisecond),
		WithWarningLimit(3),
		WithWarningObserver(func(depth, limit int) {
			mu.Lock()
			fired = true
			mu.Unlock()
		}),
	)
	defer seq.Stop()

	go func() {
		for i := 0; i < 200; i++ {
			seq.Add(func(done Callback, _ ...interface{}) { done(nil, nil) }, nil)
		}
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired
	}, time.Second, 5*time.Millisecond, "depth should cross warningLim while the background goroutine outpaces draining")
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks to complete")
	}
}
