// Package services implements the family-scoped operations of famfin.
//
// Every family-scoped call takes an explicit *session.Session and fails with
// ErrNotAuthenticated before touching storage when it is missing.
package services

import (
	"context"
	"errors"
	"fmt"

	"famfin/internal/core"
	"famfin/internal/session"
	"famfin/internal/store"
)

var (
	ErrNotAuthenticated   = session.ErrNotAuthenticated
	ErrNotFound           = store.ErrNotFound
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// TransactionPublisher announces committed transactions to downstream workers.
type TransactionPublisher interface {
	PublishTransactionRecorded(ctx context.Context, id, familyID string) error
}

// ReminderPublisher announces due reminders.
type ReminderPublisher interface {
	PublishReminderDue(ctx context.Context, r core.Reminder) error
}

// currentUserStore looks up a user by id.
type currentUserStore interface {
	GetUser(ctx context.Context, id string) (core.User, error)
}

// requireAdmin checks the caller's role as stored now, not the role the
// session token was issued with, so a demotion takes effect immediately.
func requireAdmin(ctx context.Context, users currentUserStore, sess *session.Session) error {
	if err := session.Check(sess); err != nil {
		return err
	}
	u, err := users.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotAuthenticated
		}
		return fmt.Errorf("load caller: %w", err)
	}
	if u.FamilyID != sess.FamilyID {
		return ErrNotAuthenticated
	}
	if u.Role != core.RoleAdmin {
		return ErrForbidden
	}
	return nil
}
