// Package storetest holds behavior checks shared by every store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famfin/internal/core"
	"famfin/internal/store"
)

// Fixture is a seeded family with two accounts and one category per type.
type Fixture struct {
	Family   core.Family
	Admin    core.User
	Checking core.Account
	Wallet   core.Account
	Salary   core.Category
	Food     core.Category
}

// Seed creates a family with an admin, two accounts and two categories.
func Seed(t *testing.T, s store.Store) Fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fx := Fixture{
		Family: core.Family{ID: uuid.NewString(), Name: "Rossi", CreatedAt: now},
	}
	fx.Admin = core.User{ID: uuid.NewString(), FamilyID: fx.Family.ID, Email: uuid.NewString() + "@example.com",
		Name: "Anna", PasswordHash: "x", Role: core.RoleAdmin, CreatedAt: now}
	require.NoError(t, s.CreateFamilyWithAdmin(ctx, fx.Family, fx.Admin))

	fx.Checking = core.Account{ID: uuid.NewString(), FamilyID: fx.Family.ID, Name: "Checking", Type: core.Bank, CurrentBalance: core.Money{Cents: 100000}}
	fx.Wallet = core.Account{ID: uuid.NewString(), FamilyID: fx.Family.ID, Name: "Wallet", Type: core.Cash, CurrentBalance: core.Money{Cents: 5000}}
	require.NoError(t, s.CreateAccount(ctx, fx.Checking))
	require.NoError(t, s.CreateAccount(ctx, fx.Wallet))

	fx.Salary = core.Category{ID: uuid.NewString(), FamilyID: fx.Family.ID, Name: "Salary", Icon: "💼", Color: "green", Type: core.Income}
	fx.Food = core.Category{ID: uuid.NewString(), FamilyID: fx.Family.ID, Name: "Food", Icon: "🍕", Color: "red", Type: core.Expense}
	require.NoError(t, s.CreateCategory(ctx, fx.Salary))
	require.NoError(t, s.CreateCategory(ctx, fx.Food))
	return fx
}

func balances(t *testing.T, s store.Store, familyID string) map[string]int64 {
	t.Helper()
	accts, err := s.ListAccounts(context.Background(), familyID)
	require.NoError(t, err)
	out := map[string]int64{}
	for _, a := range accts {
		out[a.ID] = a.CurrentBalance.Cents
	}
	return out
}

// Run exercises the behavior every store must share.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("record moves balances atomically", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

		exp := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Expense,
			Amount: core.Money{Cents: 2500}, Date: day, CategoryID: fx.Food.ID, SourceAccountID: fx.Checking.ID, CreatedAt: day}
		require.NoError(t, s.RecordTransaction(ctx, exp))

		inc := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Income,
			Amount: core.Money{Cents: 10000}, Date: day, CategoryID: fx.Salary.ID, DestinationAccountID: fx.Wallet.ID, CreatedAt: day}
		require.NoError(t, s.RecordTransaction(ctx, inc))

		tr := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Transfer,
			Amount: core.Money{Cents: 1000}, Date: day, SourceAccountID: fx.Checking.ID, DestinationAccountID: fx.Wallet.ID, CreatedAt: day}
		require.NoError(t, s.RecordTransaction(ctx, tr))

		got := balances(t, s, fx.Family.ID)
		assert.Equal(t, int64(100000-2500-1000), got[fx.Checking.ID])
		assert.Equal(t, int64(5000+10000+1000), got[fx.Wallet.ID])
	})

	t.Run("record with unknown account leaves no trace", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		before := balances(t, s, fx.Family.ID)

		tr := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Transfer,
			Amount: core.Money{Cents: 1000}, Date: day, SourceAccountID: fx.Checking.ID, DestinationAccountID: "missing", CreatedAt: day}
		err := s.RecordTransaction(ctx, tr)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrAccountNotFound), "got %v", err)

		assert.Equal(t, before, balances(t, s, fx.Family.ID))
		_, err = s.GetTransaction(ctx, tr.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("record rejects another family's account", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		other := Seed(t, s)
		day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

		exp := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Expense,
			Amount: core.Money{Cents: 100}, Date: day, SourceAccountID: other.Checking.ID, CreatedAt: day}
		assert.ErrorIs(t, s.RecordTransaction(context.Background(), exp), core.ErrAccountNotFound)
		assert.Equal(t, int64(100000), balances(t, s, other.Family.ID)[other.Checking.ID])
	})

	t.Run("list range is inclusive and expands categories", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC)

		dates := []time.Time{start.Add(-time.Nanosecond), start, start.Add(48 * time.Hour), end, end.Add(time.Nanosecond)}
		for i, d := range dates {
			tx := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Expense,
				Amount: core.Money{Cents: int64(100 * (i + 1))}, Date: d, CategoryID: fx.Food.ID, SourceAccountID: fx.Checking.ID, CreatedAt: d}
			require.NoError(t, s.RecordTransaction(ctx, tx))
		}

		got, err := s.ListTransactions(ctx, store.TransactionFilter{FamilyID: fx.Family.ID, Start: start, End: end})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.True(t, got[0].Date.Equal(start))
		assert.True(t, got[2].Date.Equal(end))
		require.NotNil(t, got[0].Category)
		assert.Equal(t, "Food", got[0].Category.Name)

		onlyIncome, err := s.ListTransactions(ctx, store.TransactionFilter{FamilyID: fx.Family.ID, Start: start, End: end, Type: core.Income})
		require.NoError(t, err)
		assert.Empty(t, onlyIncome)
	})

	t.Run("deleted category leaves dangling reference", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		tx := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Expense,
			Amount: core.Money{Cents: 100}, Date: day, CategoryID: fx.Food.ID, SourceAccountID: fx.Checking.ID, CreatedAt: day}
		require.NoError(t, s.RecordTransaction(ctx, tx))
		require.NoError(t, s.DeleteCategory(ctx, fx.Family.ID, fx.Food.ID))

		got, err := s.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, fx.Food.ID, got.CategoryID)
		assert.Nil(t, got.Category)
		assert.ErrorIs(t, s.DeleteCategory(ctx, fx.Family.ID, fx.Food.ID), store.ErrNotFound)
	})

	t.Run("recent transactions newest first", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 7; i++ {
			d := base.AddDate(0, 0, i)
			tx := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Expense,
				Amount: core.Money{Cents: 100}, Date: d, SourceAccountID: fx.Checking.ID, CreatedAt: d}
			require.NoError(t, s.RecordTransaction(ctx, tx))
		}
		got, err := s.ListRecentTransactions(ctx, fx.Family.ID, 5)
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.True(t, got[0].Date.Equal(base.AddDate(0, 0, 6)))
		assert.True(t, got[4].Date.Equal(base.AddDate(0, 0, 2)))
	})

	t.Run("sync tracking", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		tx := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Expense,
			Amount: core.Money{Cents: 100}, Date: day, SourceAccountID: fx.Checking.ID, CreatedAt: day}
		require.NoError(t, s.RecordTransaction(ctx, tx))

		pending, err := s.GetPendingSync(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		require.NoError(t, s.MarkSyncError(ctx, tx.ID, "boom"))
		pending, err = s.GetPendingSync(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		require.NoError(t, s.MarkSynced(ctx, tx.ID))
		pending, err = s.GetPendingSync(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
		assert.ErrorIs(t, s.MarkSynced(ctx, "missing"), store.ErrNotFound)
	})

	t.Run("accounts list richest first", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		card := core.Account{ID: uuid.NewString(), FamilyID: fx.Family.ID, Name: "Card", Type: core.EWallet, CurrentBalance: core.Money{Cents: -2500}}
		piggy := core.Account{ID: uuid.NewString(), FamilyID: fx.Family.ID, Name: "Piggy", Type: core.Cash, CurrentBalance: core.Money{Cents: 5000}}
		require.NoError(t, s.CreateAccount(ctx, card))
		require.NoError(t, s.CreateAccount(ctx, piggy))

		accts, err := s.ListAccounts(ctx, fx.Family.ID)
		require.NoError(t, err)
		names := make([]string, 0, len(accts))
		for _, a := range accts {
			names = append(names, a.Name)
		}
		// equal balances fall back to name order
		assert.Equal(t, []string{"Checking", "Piggy", "Wallet", "Card"}, names)
	})

	t.Run("failed exports queue behind pending ones", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		ids := make([]string, 4)
		for i := range ids {
			d := base.Add(time.Duration(i) * time.Minute)
			tx := core.Transaction{ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Expense,
				Amount: core.Money{Cents: 100}, Date: d, SourceAccountID: fx.Checking.ID, CreatedAt: d}
			require.NoError(t, s.RecordTransaction(ctx, tx))
			ids[i] = tx.ID
		}
		// The two oldest keep failing.
		require.NoError(t, s.MarkSyncError(ctx, ids[0], "quota"))
		require.NoError(t, s.MarkSyncError(ctx, ids[1], "quota"))

		pending, err := s.GetPendingSync(ctx, 2)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, ids[2], pending[0].ID)
		assert.Equal(t, ids[3], pending[1].ID)

		pending, err = s.GetPendingSync(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 4)
		assert.Equal(t, []string{ids[2], ids[3], ids[0], ids[1]},
			[]string{pending[0].ID, pending[1].ID, pending[2].ID, pending[3].ID})
	})

	t.Run("users and roles", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		member := core.User{ID: uuid.NewString(), FamilyID: fx.Family.ID, Email: "bob-" + fx.Family.ID + "@example.com",
			Name: "Bob", PasswordHash: "x", Role: core.RoleMember, CreatedAt: fx.Admin.CreatedAt.Add(time.Hour)}
		require.NoError(t, s.CreateUser(ctx, member))

		dup := member
		dup.ID = uuid.NewString()
		assert.ErrorIs(t, s.CreateUser(ctx, dup), store.ErrConflict)

		got, err := s.GetUserByEmail(ctx, member.Email)
		require.NoError(t, err)
		assert.Equal(t, member.ID, got.ID)

		require.NoError(t, s.UpdateUserRole(ctx, fx.Family.ID, member.ID, core.RoleAdmin))
		users, err := s.ListUsers(ctx, fx.Family.ID)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, core.RoleAdmin, users[1].Role)

		assert.ErrorIs(t, s.UpdateUserRole(ctx, "other-family", member.ID, core.RoleMember), store.ErrNotFound)
		assert.ErrorIs(t, s.UpdateUserRole(ctx, fx.Family.ID, "missing", core.RoleMember), store.ErrNotFound)

		byID, err := s.GetUser(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, core.RoleAdmin, byID.Role)
		_, err = s.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)

		// Two admins: one may step down, the remaining one may not.
		require.NoError(t, s.UpdateUserRole(ctx, fx.Family.ID, fx.Admin.ID, core.RoleMember))
		assert.ErrorIs(t, s.UpdateUserRole(ctx, fx.Family.ID, member.ID, core.RoleMember), store.ErrLastAdmin)
		require.NoError(t, s.UpdateUserRole(ctx, fx.Family.ID, member.ID, core.RoleAdmin), "re-granting admin is a no-op")
		byID, err = s.GetUser(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, core.RoleAdmin, byID.Role)
		_, err = s.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("budget upsert keeps one row per family", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		_, err := s.GetBudget(ctx, fx.Family.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		b1, err := s.UpsertBudget(ctx, core.Budget{ID: uuid.NewString(), FamilyID: fx.Family.ID, AmountLimit: core.Money{Cents: 50000}, Period: core.Monthly})
		require.NoError(t, err)
		b2, err := s.UpsertBudget(ctx, core.Budget{ID: uuid.NewString(), FamilyID: fx.Family.ID, AmountLimit: core.Money{Cents: 70000}, Period: core.Monthly})
		require.NoError(t, err)
		assert.Equal(t, b1.ID, b2.ID)

		got, err := s.GetBudget(ctx, fx.Family.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(70000), got.AmountLimit.Cents)
	})

	t.Run("reminders crud and due listing", func(t *testing.T) {
		s := newStore(t)
		fx := Seed(t, s)
		ctx := context.Background()
		due := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
		r1 := core.Reminder{ID: uuid.NewString(), FamilyID: fx.Family.ID, Title: "Rent", Amount: core.Money{Cents: 80000},
			NextDueDate: due, IsActive: true, Frequency: 1, Unit: core.Months}
		r2 := core.Reminder{ID: uuid.NewString(), FamilyID: fx.Family.ID, Title: "Gym", Amount: core.Money{Cents: 3000},
			NextDueDate: due.AddDate(0, 0, -2), IsActive: false, Frequency: 1, Unit: core.Weeks}
		r3 := core.Reminder{ID: uuid.NewString(), FamilyID: fx.Family.ID, Title: "Insurance", Amount: core.Money{Cents: 40000},
			NextDueDate: due.AddDate(0, 1, 0), IsActive: true, Frequency: 1, Unit: core.Years}
		for _, r := range []core.Reminder{r1, r2, r3} {
			require.NoError(t, s.CreateReminder(ctx, r))
		}

		list, err := s.ListReminders(ctx, fx.Family.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "Gym", list[0].Title)
		assert.Equal(t, "Insurance", list[2].Title)

		dueNow, err := s.ListDueReminders(ctx, due)
		require.NoError(t, err)
		require.Len(t, dueNow, 1)
		assert.Equal(t, r1.ID, dueNow[0].ID)

		r1.NextDueDate = due.AddDate(0, 1, 0)
		require.NoError(t, s.UpdateReminder(ctx, r1))
		got, err := s.GetReminder(ctx, fx.Family.ID, r1.ID)
		require.NoError(t, err)
		assert.True(t, got.NextDueDate.Equal(r1.NextDueDate))

		require.NoError(t, s.DeleteReminder(ctx, fx.Family.ID, r2.ID))
		_, err = s.GetReminder(ctx, fx.Family.ID, r2.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.DeleteReminder(ctx, "other", r3.ID), store.ErrNotFound)
	})
}
