package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"famfin/internal/core"
	"famfin/internal/session"
	"famfin/internal/store"
)

const recentTransactions = 5

// DashboardStore is the storage surface read by the dashboard.
type DashboardStore interface {
	store.AccountStore
	store.TransactionStore
}

// DashboardService summarizes a family's balances and current month.
type DashboardService struct {
	store DashboardStore
	loc   *time.Location
}

func NewDashboardService(s DashboardStore, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{store: s, loc: loc}
}

// Dashboard loads its sections concurrently. A failing section is logged and
// left at its zero value.
func (s *DashboardService) Dashboard(ctx context.Context, sess *session.Session, now time.Time) (core.DashboardStats, error) {
	if err := session.Check(sess); err != nil {
		return core.DashboardStats{}, err
	}

	stats := core.DashboardStats{RecentTransactions: []core.Transaction{}}
	var g errgroup.Group

	g.Go(func() error {
		accounts, err := s.store.ListAccounts(ctx, sess.FamilyID)
		if err != nil {
			slog.ErrorContext(ctx, "Dashboard balance unavailable", "family_id", sess.FamilyID, "error", err)
			return nil
		}
		for _, a := range accounts {
			stats.TotalBalance.Cents += a.CurrentBalance.Cents
		}
		return nil
	})

	g.Go(func() error {
		local := now.In(s.loc)
		start, end := core.MonthRange(local.Year(), local.Month(), s.loc)
		txs, err := s.store.ListTransactions(ctx, store.TransactionFilter{FamilyID: sess.FamilyID, Start: start, End: end})
		if err != nil {
			slog.ErrorContext(ctx, "Dashboard monthly totals unavailable", "family_id", sess.FamilyID, "error", err)
			return nil
		}
		for _, t := range txs {
			switch t.Type {
			case core.Income:
				stats.MonthlyIncome.Cents += t.Amount.Cents
			case core.Expense:
				stats.MonthlyExpense.Cents += t.Amount.Cents
			}
		}
		return nil
	})

	g.Go(func() error {
		txs, err := s.store.ListRecentTransactions(ctx, sess.FamilyID, recentTransactions)
		if err != nil {
			slog.ErrorContext(ctx, "Dashboard recent transactions unavailable", "family_id", sess.FamilyID, "error", err)
			return nil
		}
		if txs != nil {
			stats.RecentTransactions = txs
		}
		return nil
	})

	// Sections never return errors.
	_ = g.Wait()
	return stats, nil
}
