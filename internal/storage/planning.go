package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"famfin/internal/core"
)

func (r *SQLiteRepository) GetBudget(ctx context.Context, familyID string) (core.Budget, error) {
	var (
		b      core.Budget
		period string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, family_id, amount_limit, period FROM budgets WHERE family_id = ?`, familyID).
		Scan(&b.ID, &b.FamilyID, &b.AmountLimit.Cents, &period)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", notFound(err))
	}
	b.Period = core.BudgetPeriod(period)
	return b, nil
}

// UpsertBudget keeps a single budget row per family; an existing row keeps its id.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, family_id, amount_limit, period) VALUES (?, ?, ?, ?)
		 ON CONFLICT(family_id) DO UPDATE SET amount_limit = excluded.amount_limit, period = excluded.period`,
		b.ID, b.FamilyID, b.AmountLimit.Cents, string(b.Period))
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget saved", "family_id", b.FamilyID, "limit_cents", b.AmountLimit.Cents)
	return r.GetBudget(ctx, b.FamilyID)
}

const reminderColumns = `id, family_id, title, amount, next_due_date, is_active, frequency, unit`

func scanReminder(row rowScanner) (core.Reminder, error) {
	var (
		rm        core.Reminder
		due, unit string
	)
	if err := row.Scan(&rm.ID, &rm.FamilyID, &rm.Title, &rm.Amount.Cents, &due, &rm.IsActive, &rm.Frequency, &unit); err != nil {
		return core.Reminder{}, err
	}
	rm.Unit = core.ReminderUnit(unit)
	t, err := parseTime(due)
	if err != nil {
		return core.Reminder{}, err
	}
	rm.NextDueDate = t
	return rm, nil
}

func (r *SQLiteRepository) listReminders(ctx context.Context, query string, args ...any) ([]core.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Reminder
	for rows.Next() {
		rm, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateReminder(ctx context.Context, rm core.Reminder) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (`+reminderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rm.ID, rm.FamilyID, rm.Title, rm.Amount.Cents, formatTime(rm.NextDueDate), rm.IsActive, rm.Frequency, string(rm.Unit))
	if err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	slog.InfoContext(ctx, "Reminder created", "reminder_id", rm.ID, "family_id", rm.FamilyID, "title", rm.Title)
	return nil
}

func (r *SQLiteRepository) GetReminder(ctx context.Context, familyID, id string) (core.Reminder, error) {
	rm, err := scanReminder(r.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = ? AND family_id = ?`, id, familyID))
	if err != nil {
		return core.Reminder{}, fmt.Errorf("get reminder: %w", notFound(err))
	}
	return rm, nil
}

func (r *SQLiteRepository) ListReminders(ctx context.Context, familyID string) ([]core.Reminder, error) {
	out, err := r.listReminders(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE family_id = ? ORDER BY next_due_date, id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateReminder(ctx context.Context, rm core.Reminder) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET title = ?, amount = ?, next_due_date = ?, is_active = ?, frequency = ?, unit = ?
		 WHERE id = ? AND family_id = ?`,
		rm.Title, rm.Amount.Cents, formatTime(rm.NextDueDate), rm.IsActive, rm.Frequency, string(rm.Unit),
		rm.ID, rm.FamilyID)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteReminder(ctx context.Context, familyID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	slog.InfoContext(ctx, "Reminder deleted", "reminder_id", id, "family_id", familyID)
	return nil
}

func (r *SQLiteRepository) ListDueReminders(ctx context.Context, cutoff time.Time) ([]core.Reminder, error) {
	out, err := r.listReminders(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE is_active = 1 AND next_due_date <= ? ORDER BY next_due_date, id`,
		formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return out, nil
}
