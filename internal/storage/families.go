package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"famfin/internal/core"
	"famfin/internal/store"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepository) CreateFamilyWithAdmin(ctx context.Context, f core.Family, admin core.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO families (id, name, created_at) VALUES (?, ?, ?)`,
		f.ID, f.Name, formatTime(f.CreatedAt)); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create family: %w", store.ErrConflict)
		}
		return fmt.Errorf("create family: %w", err)
	}
	if err := insertUser(ctx, tx, admin); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Family created", "family_id", f.ID, "admin_id", admin.ID)
	return nil
}

func (r *SQLiteRepository) GetFamily(ctx context.Context, id string) (core.Family, error) {
	var (
		f       core.Family
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM families WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &created)
	if err != nil {
		return core.Family{}, fmt.Errorf("get family: %w", notFound(err))
	}
	if f.CreatedAt, err = parseTime(created); err != nil {
		return core.Family{}, err
	}
	return f, nil
}

func insertUser(ctx context.Context, db execer, u core.User) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, family_id, email, name, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FamilyID, u.Email, u.Name, u.PasswordHash, string(u.Role), formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", store.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	if err := insertUser(ctx, r.db, u); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID, "family_id", u.FamilyID, "role", u.Role)
	return nil
}

const userColumns = `id, family_id, email, name, password_hash, role, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u       core.User
		role    string
		created string
	)
	if err := row.Scan(&u.ID, &u.FamilyID, &u.Email, &u.Name, &u.PasswordHash, &role, &created); err != nil {
		return core.User{}, err
	}
	u.Role = core.Role(role)
	t, err := parseTime(created)
	if err != nil {
		return core.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", notFound(err))
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", notFound(err))
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context, familyID string) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE family_id = ? ORDER BY created_at, id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// UpdateUserRole changes a role in one statement so two admins demoting each
// other concurrently cannot both succeed.
func (r *SQLiteRepository) UpdateUserRole(ctx context.Context, familyID, userID string, role core.Role) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = ?
		WHERE id = ? AND family_id = ?
		  AND (? = 'admin' OR role != 'admin' OR EXISTS (
		    SELECT 1 FROM users o WHERE o.family_id = ? AND o.id != ? AND o.role = 'admin'))`,
		string(role), userID, familyID, string(role), familyID, userID)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if err := checkAffected(res); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if u, getErr := r.GetUser(ctx, userID); getErr == nil && u.FamilyID == familyID {
				return fmt.Errorf("update user role: %w", store.ErrLastAdmin)
			}
		}
		return fmt.Errorf("update user role: %w", err)
	}
	slog.InfoContext(ctx, "User role updated", "user_id", userID, "role", role)
	return nil
}
