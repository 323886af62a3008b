package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"famfin/internal/core"
	"famfin/internal/store"
)

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, family_id, name, type, current_balance) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.FamilyID, a.Name, string(a.Type), a.CurrentBalance.Cents)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account created", "account_id", a.ID, "family_id", a.FamilyID, "type", a.Type)
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, familyID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, family_id, name, type, current_balance FROM accounts WHERE family_id = ? ORDER BY current_balance DESC, name, id`,
		familyID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var (
			a   core.Account
			typ string
		)
		if err := rows.Scan(&a.ID, &a.FamilyID, &a.Name, &typ, &a.CurrentBalance.Cents); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(typ)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, family_id, name, icon, color, type) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.FamilyID, c.Name, c.Icon, c.Color, string(c.Type))
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "category_id", c.ID, "family_id", c.FamilyID, "name", c.Name)
	return nil
}

const categoryColumns = `id, family_id, name, icon, color, type`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	if err := row.Scan(&c.ID, &c.FamilyID, &c.Name, &c.Icon, &c.Color, &typ); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	return c, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, familyID, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND family_id = ?`, id, familyID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", notFound(err))
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, familyID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE family_id = ? ORDER BY type, name, id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, familyID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	slog.InfoContext(ctx, "Category deleted", "category_id", id, "family_id", familyID)
	return nil
}

// RecordTransaction updates balances relatively and inserts the record in one
// storage transaction. Accounts are touched in id order.
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, t core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	deltas := t.BalanceDeltas()
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET current_balance = current_balance + ? WHERE id = ? AND family_id = ?`,
			deltas[id], id, t.FamilyID)
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("account %s: %w", id, core.ErrAccountNotFound)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, family_id, user_id, type, amount, date, category_id,
			source_account_id, destination_account_id, note, beneficiary, importance_level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.FamilyID, t.UserID, string(t.Type), t.Amount.Cents, formatTime(t.Date),
		nullString(t.CategoryID), nullString(t.SourceAccountID), nullString(t.DestinationAccountID),
		t.Note, t.Beneficiary, string(t.Importance), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", t.ID,
		"family_id", t.FamilyID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"date", t.Date)
	return nil
}

const transactionSelect = `SELECT t.id, t.family_id, t.user_id, t.type, t.amount, t.date, t.category_id,
	t.source_account_id, t.destination_account_id, t.note, t.beneficiary, t.importance_level, t.created_at,
	c.id, c.name, c.icon, c.color, c.type
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id AND c.family_id = t.family_id`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                                core.Transaction
		typ, date, created, imp          string
		catID, src, dst                  sql.NullString
		cID, cName, cIcon, cColor, cType sql.NullString
	)
	if err := row.Scan(&t.ID, &t.FamilyID, &t.UserID, &typ, &t.Amount.Cents, &date, &catID,
		&src, &dst, &t.Note, &t.Beneficiary, &imp, &created,
		&cID, &cName, &cIcon, &cColor, &cType); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Importance = core.ImportanceLevel(imp)
	t.CategoryID = catID.String
	t.SourceAccountID = src.String
	t.DestinationAccountID = dst.String
	var err error
	if t.Date, err = parseTime(date); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, err
	}
	if cID.Valid {
		t.Category = &core.Category{
			ID:       cID.String,
			FamilyID: t.FamilyID,
			Name:     cName.String,
			Icon:     cIcon.String,
			Color:    cColor.String,
			Type:     core.TransactionType(cType.String),
		}
	}
	return t, nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"t.family_id = ?", "t.date >= ?", "t.date <= ?"}
		args  = []any{f.FamilyID, formatTime(f.Start), formatTime(f.End)}
	)
	if f.Type != "" {
		where = append(where, "t.type = ?")
		args = append(args, string(f.Type))
	}
	query := transactionSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY t.date ASC, t.rowid ASC`

	start := time.Now()
	out, err := r.queryTransactions(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	slog.DebugContext(ctx, "Transactions listed",
		"family_id", f.FamilyID,
		"count", len(out),
		"duration", time.Since(start))
	return out, nil
}

func (r *SQLiteRepository) ListRecentTransactions(ctx context.Context, familyID string, limit int) ([]core.Transaction, error) {
	out, err := r.queryTransactions(ctx,
		transactionSelect+` WHERE t.family_id = ? ORDER BY t.date DESC, t.rowid DESC LIMIT ?`,
		familyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", notFound(err))
	}
	return t, nil
}

// GetPendingSync returns unsynced rows oldest first, with rows that already
// failed to export queued behind the ones never tried.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	out, err := r.queryTransactions(ctx,
		transactionSelect+` WHERE t.sync_status != 'synced'
			ORDER BY CASE t.sync_status WHEN 'pending' THEN 0 ELSE 1 END, t.created_at ASC, t.rowid ASC
			LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'synced', sync_error = NULL, synced_at = ? WHERE id = ?`,
		formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string, msg string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'error', sync_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	return nil
}
