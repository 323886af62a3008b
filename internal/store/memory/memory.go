// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"famfin/internal/core"
	"famfin/internal/store"
)

type txRecord struct {
	tx        core.Transaction
	seq       int
	synced    bool
	syncError string
}

type Store struct {
	mu         sync.Mutex
	seq        int
	families   map[string]core.Family
	users      map[string]core.User
	accounts   map[string]core.Account
	categories map[string]core.Category
	txs        []*txRecord
	budgets    map[string]core.Budget // by family
	reminders  map[string]core.Reminder
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		families:   map[string]core.Family{},
		users:      map[string]core.User{},
		accounts:   map[string]core.Account{},
		categories: map[string]core.Category{},
		budgets:    map[string]core.Budget{},
		reminders:  map[string]core.Reminder{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateFamilyWithAdmin(_ context.Context, f core.Family, admin core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.families[f.ID]; ok {
		return fmt.Errorf("family %s: %w", f.ID, store.ErrConflict)
	}
	if err := s.checkEmailLocked(admin.Email); err != nil {
		return err
	}
	s.families[f.ID] = f
	s.users[admin.ID] = admin
	return nil
}

func (s *Store) GetFamily(_ context.Context, id string) (core.Family, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[id]
	if !ok {
		return core.Family{}, store.ErrNotFound
	}
	return f, nil
}

func (s *Store) checkEmailLocked(email string) error {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return fmt.Errorf("user %s: %w", email, store.ErrConflict)
		}
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.families[u.FamilyID]; !ok {
		return fmt.Errorf("family %s: %w", u.FamilyID, store.ErrNotFound)
	}
	if err := s.checkEmailLocked(u.Email); err != nil {
		return err
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, familyID string) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.User
	for _, u := range s.users {
		if u.FamilyID == familyID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateUserRole(_ context.Context, familyID, userID string, role core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.FamilyID != familyID {
		return store.ErrNotFound
	}
	if u.Role == core.RoleAdmin && role != core.RoleAdmin && !s.hasOtherAdminLocked(familyID, userID) {
		return store.ErrLastAdmin
	}
	u.Role = role
	s.users[userID] = u
	return nil
}

func (s *Store) hasOtherAdminLocked(familyID, userID string) bool {
	for _, u := range s.users {
		if u.FamilyID == familyID && u.ID != userID && u.Role == core.RoleAdmin {
			return true
		}
	}
	return false
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) ListAccounts(_ context.Context, familyID string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.FamilyID == familyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentBalance.Cents != out[j].CurrentBalance.Cents {
			return out[i].CurrentBalance.Cents > out[j].CurrentBalance.Cents
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return nil
}

func (s *Store) GetCategory(_ context.Context, familyID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.FamilyID != familyID {
		return core.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, familyID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.FamilyID == familyID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) DeleteCategory(_ context.Context, familyID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.FamilyID != familyID {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) RecordTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deltas := t.BalanceDeltas()
	for id := range deltas {
		a, ok := s.accounts[id]
		if !ok || a.FamilyID != t.FamilyID {
			return fmt.Errorf("account %s: %w", id, core.ErrAccountNotFound)
		}
	}
	for id, d := range deltas {
		a := s.accounts[id]
		a.CurrentBalance.Cents += d
		s.accounts[id] = a
	}
	s.seq++
	t.Category = nil
	s.txs = append(s.txs, &txRecord{tx: t, seq: s.seq})
	return nil
}

// expandLocked returns a copy of t with its category attached when it still exists.
func (s *Store) expandLocked(t core.Transaction) core.Transaction {
	if t.CategoryID != "" {
		if c, ok := s.categories[t.CategoryID]; ok && c.FamilyID == t.FamilyID {
			t.Category = &c
		}
	}
	return t
}

func (s *Store) ListTransactions(_ context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []*txRecord
	for _, r := range s.txs {
		t := r.tx
		if t.FamilyID != f.FamilyID || t.Date.Before(f.Start) || t.Date.After(f.End) {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		recs = append(recs, r)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].tx.Date.Equal(recs[j].tx.Date) {
			return recs[i].tx.Date.Before(recs[j].tx.Date)
		}
		return recs[i].seq < recs[j].seq
	})
	out := make([]core.Transaction, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.expandLocked(r.tx))
	}
	return out, nil
}

func (s *Store) ListRecentTransactions(_ context.Context, familyID string, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []*txRecord
	for _, r := range s.txs {
		if r.tx.FamilyID == familyID {
			recs = append(recs, r)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].tx.Date.Equal(recs[j].tx.Date) {
			return recs[i].tx.Date.After(recs[j].tx.Date)
		}
		return recs[i].seq > recs[j].seq
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]core.Transaction, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.expandLocked(r.tx))
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.txs {
		if r.tx.ID == id {
			return s.expandLocked(r.tx), nil
		}
	}
	return core.Transaction{}, store.ErrNotFound
}

func (s *Store) GetPendingSync(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []*txRecord
	for _, r := range s.txs {
		if !r.synced {
			recs = append(recs, r)
		}
	}
	// Rows never tried go before rows whose export failed.
	sort.SliceStable(recs, func(i, j int) bool {
		ei, ej := recs[i].syncError != "", recs[j].syncError != ""
		if ei != ej {
			return !ei
		}
		if !recs[i].tx.CreatedAt.Equal(recs[j].tx.CreatedAt) {
			return recs[i].tx.CreatedAt.Before(recs[j].tx.CreatedAt)
		}
		return recs[i].seq < recs[j].seq
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]core.Transaction, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.expandLocked(r.tx))
	}
	return out, nil
}

func (s *Store) findLocked(id string) (*txRecord, error) {
	for _, r := range s.txs {
		if r.tx.ID == id {
			return r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) MarkSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.findLocked(id)
	if err != nil {
		return err
	}
	r.synced, r.syncError = true, ""
	return nil
}

func (s *Store) MarkSyncError(_ context.Context, id string, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.findLocked(id)
	if err != nil {
		return err
	}
	r.syncError = msg
	return nil
}

func (s *Store) GetBudget(_ context.Context, familyID string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[familyID]
	if !ok {
		return core.Budget{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.budgets[b.FamilyID]; ok {
		b.ID = existing.ID
	}
	s.budgets[b.FamilyID] = b
	return b, nil
}

func (s *Store) CreateReminder(_ context.Context, r core.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[r.ID] = r
	return nil
}

func (s *Store) GetReminder(_ context.Context, familyID, id string) (core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || r.FamilyID != familyID {
		return core.Reminder{}, store.ErrNotFound
	}
	return r, nil
}

func sortReminders(rs []core.Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].NextDueDate.Equal(rs[j].NextDueDate) {
			return rs[i].NextDueDate.Before(rs[j].NextDueDate)
		}
		return rs[i].ID < rs[j].ID
	})
}

func (s *Store) ListReminders(_ context.Context, familyID string) ([]core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Reminder
	for _, r := range s.reminders {
		if r.FamilyID == familyID {
			out = append(out, r)
		}
	}
	sortReminders(out)
	return out, nil
}

func (s *Store) UpdateReminder(_ context.Context, r core.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.reminders[r.ID]
	if !ok || existing.FamilyID != r.FamilyID {
		return store.ErrNotFound
	}
	s.reminders[r.ID] = r
	return nil
}

func (s *Store) DeleteReminder(_ context.Context, familyID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || r.FamilyID != familyID {
		return store.ErrNotFound
	}
	delete(s.reminders, id)
	return nil
}

func (s *Store) ListDueReminders(_ context.Context, cutoff time.Time) ([]core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Reminder
	for _, r := range s.reminders {
		if r.IsActive && !r.NextDueDate.After(cutoff) {
			out = append(out, r)
		}
	}
	sortReminders(out)
	return out, nil
}
