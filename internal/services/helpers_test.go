package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"famfin/internal/core"
	"famfin/internal/session"
	"famfin/internal/store"
	"famfin/internal/store/memory"
	"famfin/internal/store/storetest"
)

func seeded(t *testing.T) (*memory.Store, storetest.Fixture, *session.Session) {
	t.Helper()
	s := memory.New()
	fx := storetest.Seed(t, s)
	sess := &session.Session{UserID: fx.Admin.ID, FamilyID: fx.Family.ID, Role: core.RoleAdmin}
	return s, fx, sess
}

// countingStore counts transaction queries and can be told to fail them.
type countingStore struct {
	store.TransactionStore
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingStore) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.TransactionStore.ListTransactions(ctx, f)
}

func (c *countingStore) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingPublisher struct {
	mu        sync.Mutex
	recorded  []string
	reminders []core.Reminder
	err       error
}

func (p *recordingPublisher) PublishTransactionRecorded(_ context.Context, id, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.recorded = append(p.recorded, id)
	return nil
}

func (p *recordingPublisher) PublishReminderDue(_ context.Context, r core.Reminder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reminders = append(p.reminders, r)
	return nil
}

var errBoom = errors.New("boom")

// dashboardStore serves accounts from a real store and transactions from a
// counting one.
type dashboardStore struct {
	store.AccountStore
	*countingStore
}
