package pipeline

import (
	"sync"
	"time"
)

// TransactionOptions configure commit and interruption behaviour for one
// transaction.
type TransactionOptions struct {
	Parallel                 bool
	SchemaLockAcquireTimeout time.Duration
	TransactionTimeout       time.Duration
}

func DefaultTransactionOptions() TransactionOptions {
	return TransactionOptions{
		SchemaLockAcquireTimeout: 10 * time.Second,
		TransactionTimeout:       5 * time.Minute,
	}
}

// TransactionOption mutates a TransactionOptions, the same
// struct-plus-option-functions shape the executor options use.
type TransactionOption func(*TransactionOptions)

func WithParallel(parallel bool) TransactionOption {
	return func(o *TransactionOptions) { o.Parallel = parallel }
}

func WithSchemaLockAcquireTimeout(d time.Duration) TransactionOption {
	return func(o *TransactionOptions) { o.SchemaLockAcquireTimeout = d }
}

func WithTransactionTimeout(d time.Duration) TransactionOption {
	return func(o *TransactionOptions) { o.TransactionTimeout = d }
}

func NewTransactionOptions(opts ...TransactionOption) TransactionOptions {
	o := DefaultTransactionOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewControl derives a stage Control from the process shutdown signal and
// the transaction timeout: the returned channel trips on whichever fires
// first. The cancel func releases the timer; call it once the query
// finishes.
func NewControl(shutdown <-chan struct{}, opts TransactionOptions) (*Control, func()) {
	merged := make(chan struct{})
	done := make(chan struct{})
	var timer *time.Timer
	if opts.TransactionTimeout > 0 {
		timer = time.NewTimer(opts.TransactionTimeout)
	}

	go func() {
		if timer != nil {
			select {
			case <-shutdown:
			case <-timer.C:
			case <-done:
				return
			}
		} else {
			select {
			case <-shutdown:
			case <-done:
				return
			}
		}
		close(merged)
	}()

	var cancelOnce sync.Once
	cancel := func() {
		cancelOnce.Do(func() {
			close(done)
			if timer != nil {
				timer.Stop()
			}
		})
	}
	return &Control{Interrupt: merged}, cancel
}
