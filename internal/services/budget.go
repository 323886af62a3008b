package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"famfin/internal/core"
	"famfin/internal/session"
	"famfin/internal/store"
)

// BudgetStore is the storage surface used by BudgetService.
type BudgetStore interface {
	store.BudgetStore
	store.TransactionStore
}

// BudgetService compares the family budget with the current month's expenses.
type BudgetService struct {
	store BudgetStore
	loc   *time.Location
}

func NewBudgetService(s BudgetStore, loc *time.Location) *BudgetService {
	if loc == nil {
		loc = time.UTC
	}
	return &BudgetService{store: s, loc: loc}
}

// GlobalBudget reports limit, spending and the remaining amount for the
// calendar month containing now. A family without a budget gets zeros.
func (s *BudgetService) GlobalBudget(ctx context.Context, sess *session.Session, now time.Time) (core.GlobalBudget, error) {
	if err := session.Check(sess); err != nil {
		return core.GlobalBudget{}, err
	}

	b, err := s.store.GetBudget(ctx, sess.FamilyID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		b = core.Budget{Period: core.Monthly}
	case err != nil:
		return core.GlobalBudget{}, fmt.Errorf("get budget: %w", err)
	}
	if b.Period == "" {
		b.Period = core.Monthly
	}

	local := now.In(s.loc)
	start, end := core.MonthRange(local.Year(), local.Month(), s.loc)
	expenses, err := s.store.ListTransactions(ctx, store.TransactionFilter{
		FamilyID: sess.FamilyID,
		Start:    start,
		End:      end,
		Type:     core.Expense,
	})
	if err != nil {
		return core.GlobalBudget{}, fmt.Errorf("month expenses: %w", err)
	}

	var spent core.Money
	for _, t := range expenses {
		spent.Cents += t.Amount.Cents
	}

	out := core.GlobalBudget{
		ID:     b.ID,
		Limit:  b.AmountLimit,
		Spent:  spent,
		Period: b.Period,
	}
	if b.AmountLimit.Cents > 0 {
		out.Remaining = b.AmountLimit.Sub(spent)
		out.Percentage = core.Percentage(spent, b.AmountLimit)
	}
	return out, nil
}

// SetBudget creates or replaces the family budget. An empty period means monthly.
func (s *BudgetService) SetBudget(ctx context.Context, sess *session.Session, limit core.Money, period core.BudgetPeriod) (core.Budget, error) {
	if err := session.Check(sess); err != nil {
		return core.Budget{}, err
	}
	if period == "" {
		period = core.Monthly
	}
	b := core.Budget{
		ID:          uuid.NewString(),
		FamilyID:    sess.FamilyID,
		AmountLimit: limit,
		Period:      period,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("validate budget: %w", err)
	}

	saved, err := s.store.UpsertBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("set budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget updated",
		"family_id", sess.FamilyID,
		"user_id", sess.UserID,
		"limit_cents", saved.AmountLimit.Cents)
	return saved, nil
}
