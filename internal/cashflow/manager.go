package cashflow

import (
	"context"
	"sync"
	"time"
)

// Settle performs the ledger settlement for one invoice.
type Settle func(ctx context.Context, invoiceID string) error

type ManagerOption func(*Manager)

func WithManagerResetDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.resetDelay = d }
}

func WithManagerScheduler(s Scheduler) ManagerOption {
	return func(m *Manager) { m.scheduler = s }
}

// Manager tracks at most one confirmation flow per invoice. A flow is
// created when the prompt is first confirmed and dropped once it closes.
type Manager struct {
	mu    sync.Mutex
	flows map[string]*Flow

	settle     Settle
	resetDelay time.Duration
	scheduler  Scheduler
}

func NewManager(settle Settle, opts ...ManagerOption) *Manager {
	m := &Manager{
		flows:      make(map[string]*Flow),
		settle:     settle,
		resetDelay: DefaultResetDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports the flow state for an invoice. With no flow in progress
// the prompt state is reported.
func (m *Manager) State(invoiceID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.flows[invoiceID]; ok {
		return f.State()
	}
	return StateConfirm
}

// Confirm accepts the prompt for the invoice and runs the settlement.
func (m *Manager) Confirm(ctx context.Context, invoiceID string) (State, error) {
	f := m.flow(invoiceID)
	err := f.Confirm(ctx)
	return f.State(), err
}

// Retry dismisses a failed settlement, returning the flow to the prompt.
func (m *Manager) Retry(invoiceID string) (State, error) {
	m.mu.Lock()
	f, ok := m.flows[invoiceID]
	m.mu.Unlock()
	if !ok {
		return StateConfirm, ErrInvalidFlowState
	}
	err := f.Retry()
	return f.State(), err
}

// Cancel abandons the flow for the invoice.
func (m *Manager) Cancel(invoiceID string) error {
	m.mu.Lock()
	f, ok := m.flows[invoiceID]
	m.mu.Unlock()
	if !ok {
		// No flow in progress means the prompt is still up; cancelling
		// it is a no-op.
		return nil
	}
	if err := f.Cancel(); err != nil {
		return err
	}
	m.remove(invoiceID)
	return nil
}

func (m *Manager) flow(invoiceID string) *Flow {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.flows[invoiceID]; ok {
		return f
	}

	opts := []Option{
		WithResetDelay(m.resetDelay),
		WithOnComplete(func() { m.remove(invoiceID) }),
	}
	if m.scheduler != nil {
		opts = append(opts, WithScheduler(m.scheduler))
	}
	f := New(func(ctx context.Context) error {
		return m.settle(ctx, invoiceID)
	}, opts...)
	m.flows[invoiceID] = f
	return f
}

func (m *Manager) remove(invoiceID string) {
	m.mu.Lock()
	delete(m.flows, invoiceID)
	m.mu.Unlock()
}
