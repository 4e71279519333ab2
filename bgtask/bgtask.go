// Package bgtask runs the process's background tasks (statistics
// refresh, eviction) under a shared shutdown watch: on shutdown the
// tracker closes to new tasks and waits for every tracked goroutine to
// drain. Periodic tasks retry transient failures with exponential
// backoff and may run one final iteration on shutdown.
package bgtask

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Watch is the process-wide shutdown signal: a channel closed exactly
// once, shared by every executor and background task.
type Watch struct {
	ch   chan struct{}
	once sync.Once
}

func NewWatch() *Watch {
	return &Watch{ch: make(chan struct{})}
}

// Trip signals shutdown. Safe to call more than once.
func (w *Watch) Trip() {
	w.once.Do(func() { close(w.ch) })
}

// Done returns the channel executors select on at their suspension
// points.
func (w *Watch) Done() <-chan struct{} { return w.ch }

// Tripped reports whether shutdown has been signalled.
func (w *Watch) Tripped() bool {
	select {
	case <-w.ch:
		return true
	default:
		return false
	}
}

// Tracker owns the lifecycle of background goroutines. It is cheap to
// share: every component holds the same pointer and spawns through it.
type Tracker struct {
	watch  *Watch
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewTracker(watch *Watch) *Tracker {
	return &Tracker{watch: watch}
}

func (t *Tracker) Watch() *Watch { return t.watch }

// Spawn starts f on its own goroutine, handing it the shutdown channel.
// Returns false once the tracker has shut down.
func (t *Tracker) Spawn(f func(stop <-chan struct{})) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		f(t.watch.Done())
	}()
	return true
}

// Periodic runs f every interval until shutdown, retrying a failed
// iteration with exponential backoff before giving up on that tick. If
// actOnShutdown is set, one final iteration runs after the watch trips.
func (t *Tracker) Periodic(interval time.Duration, actOnShutdown bool, f func() error) bool {
	return t.Spawn(func(stop <-chan struct{}) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				if actOnShutdown {
					_ = f()
				}
				return
			case <-ticker.C:
				runWithBackoff(f, stop)
			}
		}
	})
}

func runWithBackoff(f func() error, stop <-chan struct{}) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	_ = backoff.Retry(func() error {
		select {
		case <-stop:
			return backoff.Permanent(errShutdown{})
		default:
		}
		return f()
	}, policy)
}

type errShutdown struct{}

func (errShutdown) Error() string { return "shutdown" }

// Shutdown trips the watch, refuses new tasks, and waits for every
// tracked goroutine to finish.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.watch.Trip()
	t.wg.Wait()
}
