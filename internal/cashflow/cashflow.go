// Package cashflow drives the interactive confirmation flow for settling
// an invoice in cash. The flow is a small state machine: it starts on the
// confirm prompt, moves to loading while the ledger call is in flight,
// lands on success or error, and resets shortly after a success.
package cashflow

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State string

const (
	StateConfirm State = "CONFIRM"
	StateLoading State = "LOADING"
	StateSuccess State = "SUCCESS"
	StateError   State = "ERROR"
	StateClosed  State = "CLOSED"
)

// DefaultResetDelay is how long the success state stays visible before
// the flow closes and reports completion.
const DefaultResetDelay = 1200 * time.Millisecond

var ErrInvalidFlowState = errors.New("invalid_flow_state")

// Settler performs the actual settlement, typically the ledger's
// MarkCashPaid call for one invoice.
type Settler func(ctx context.Context) error

// Scheduler runs fn after d. Injected so tests can fire timers
// synchronously.
type Scheduler func(d time.Duration, fn func())

type Option func(*Flow)

func WithResetDelay(d time.Duration) Option {
	return func(f *Flow) { f.resetDelay = d }
}

func WithScheduler(s Scheduler) Option {
	return func(f *Flow) { f.schedule = s }
}

// WithOnComplete registers a callback fired once, when the flow closes
// after a successful settlement.
func WithOnComplete(fn func()) Option {
	return func(f *Flow) { f.onComplete = fn }
}

// Flow is safe for concurrent use; every transition happens under the
// mutex.
type Flow struct {
	mu sync.Mutex

	state State
	err   error
	// seq invalidates a scheduled reset once the flow is cancelled or
	// restarted before the timer fires.
	seq int

	settle     Settler
	onComplete func()
	resetDelay time.Duration
	schedule   Scheduler
}

func New(settle Settler, opts ...Option) *Flow {
	f := &Flow{
		state:      StateConfirm,
		settle:     settle,
		resetDelay: DefaultResetDelay,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the settlement error shown on the error screen, nil
// otherwise.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateError {
		return nil
	}
	return f.err
}

// Confirm accepts the prompt and runs the settlement. Only valid from the
// confirm state.
func (f *Flow) Confirm(ctx context.Context) error {
	return f.run(ctx)
}

// Retry dismisses the error screen and returns to the confirm prompt.
// The settlement reruns only once the user confirms again.
func (f *Flow) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateError {
		return ErrInvalidFlowState
	}
	f.state = StateConfirm
	f.err = nil
	f.seq++
	return nil
}

// Cancel abandons the flow. Only valid from the confirm state; once the
// settlement is in flight it runs to completion, and an error screen must
// be dismissed through Retry first.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateConfirm {
		return ErrInvalidFlowState
	}
	f.state = StateClosed
	f.err = nil
	f.seq++
	return nil
}

func (f *Flow) run(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateConfirm {
		f.mu.Unlock()
		return ErrInvalidFlowState
	}
	f.state = StateLoading
	f.err = nil
	f.seq++
	seq := f.seq
	f.mu.Unlock()

	err := f.settle(ctx)

	f.mu.Lock()
	if f.seq != seq || f.state != StateLoading {
		// The flow moved on while the settlement was in flight.
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		f.state = StateError
		f.err = err
		f.mu.Unlock()
		return err
	}
	f.state = StateSuccess
	f.mu.Unlock()

	// Scheduled outside the lock so a test scheduler may fire inline.
	f.schedule(f.resetDelay, func() { f.finish(seq) })
	return nil
}

// finish closes a succeeded flow once the reset delay elapses.
func (f *Flow) finish(seq int) {
	f.mu.Lock()
	if f.seq != seq || f.state != StateSuccess {
		f.mu.Unlock()
		return
	}
	f.state = StateClosed
	done := f.onComplete
	f.mu.Unlock()

	if done != nil {
		done()
	}
}
