// Package store declares the persistence ports implemented by the SQLite
// repository and the in-memory store.
package store

import (
	"context"
	"errors"
	"time"

	"famfin/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	// ErrLastAdmin rejects a role change that would leave a family without an admin.
	ErrLastAdmin = errors.New("family must keep an admin")
)

// TransactionFilter selects a family's transactions with Start <= date <= End.
// An empty Type matches every type.
type TransactionFilter struct {
	FamilyID string
	Start    time.Time
	End      time.Time
	Type     core.TransactionType
}

// Ports for outbound adapters.
type (
	FamilyStore interface {
		// CreateFamilyWithAdmin stores a family and its first user together.
		CreateFamilyWithAdmin(ctx context.Context, f core.Family, admin core.User) error
		GetFamily(ctx context.Context, id string) (core.Family, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) error
		GetUser(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		ListUsers(ctx context.Context, familyID string) ([]core.User, error)
		// UpdateUserRole fails with ErrLastAdmin when it would demote the family's only admin.
		UpdateUserRole(ctx context.Context, familyID, userID string, role core.Role) error
	}

	AccountStore interface {
		CreateAccount(ctx context.Context, a core.Account) error
		ListAccounts(ctx context.Context, familyID string) ([]core.Account, error)
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) error
		GetCategory(ctx context.Context, familyID, id string) (core.Category, error)
		ListCategories(ctx context.Context, familyID string) ([]core.Category, error)
		DeleteCategory(ctx context.Context, familyID, id string) error
	}

	TransactionStore interface {
		// RecordTransaction applies the balance deltas of t and stores t as one
		// atomic unit. It fails with core.ErrAccountNotFound when an affected
		// account does not exist in t's family, leaving no partial state.
		RecordTransaction(ctx context.Context, t core.Transaction) error
		// ListTransactions returns matching transactions ordered by date ascending,
		// with Category expanded when it still exists.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		ListRecentTransactions(ctx context.Context, familyID string, limit int) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	}

	// SyncStore tracks export of recorded transactions to the spreadsheet ledger.
	SyncStore interface {
		GetPendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkSynced(ctx context.Context, id string) error
		MarkSyncError(ctx context.Context, id string, msg string) error
	}

	BudgetStore interface {
		GetBudget(ctx context.Context, familyID string) (core.Budget, error)
		UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	}

	ReminderStore interface {
		CreateReminder(ctx context.Context, r core.Reminder) error
		GetReminder(ctx context.Context, familyID, id string) (core.Reminder, error)
		ListReminders(ctx context.Context, familyID string) ([]core.Reminder, error)
		UpdateReminder(ctx context.Context, r core.Reminder) error
		DeleteReminder(ctx context.Context, familyID, id string) error
		// ListDueReminders returns active reminders of every family due at or before cutoff.
		ListDueReminders(ctx context.Context, cutoff time.Time) ([]core.Reminder, error)
	}

	// Store is the full persistence surface used by the API process.
	Store interface {
		FamilyStore
		UserStore
		AccountStore
		CategoryStore
		TransactionStore
		SyncStore
		BudgetStore
		ReminderStore
		Ping(ctx context.Context) error
		Close() error
	}
)
