package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"famfin/internal/core"
	"famfin/internal/session"
	"famfin/internal/store"
)

// ReminderInput describes a new reminder.
type ReminderInput struct {
	Title       string
	Amount      core.Money
	NextDueDate time.Time
	Frequency   int
	Unit        core.ReminderUnit
}

// ReminderPatch holds the fields to change; nil fields are kept.
type ReminderPatch struct {
	Title       *string
	Amount      *core.Money
	NextDueDate *time.Time
	IsActive    *bool
	Frequency   *int
	Unit        *core.ReminderUnit
}

// ReminderService manages recurring bill reminders and fires the due ones.
type ReminderService struct {
	store     store.ReminderStore
	publisher ReminderPublisher
	loc       *time.Location
}

func NewReminderService(s store.ReminderStore, publisher ReminderPublisher, loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{store: s, publisher: publisher, loc: loc}
}

func (s *ReminderService) List(ctx context.Context, sess *session.Session) ([]core.Reminder, error) {
	if err := session.Check(sess); err != nil {
		return nil, err
	}
	out, err := s.store.ListReminders(ctx, sess.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

// Create stores an active reminder for the session's family.
func (s *ReminderService) Create(ctx context.Context, sess *session.Session, in ReminderInput) (core.Reminder, error) {
	if err := session.Check(sess); err != nil {
		return core.Reminder{}, err
	}
	r := core.Reminder{
		ID:          uuid.NewString(),
		FamilyID:    sess.FamilyID,
		Title:       strings.TrimSpace(in.Title),
		Amount:      in.Amount,
		NextDueDate: in.NextDueDate,
		IsActive:    true,
		Frequency:   in.Frequency,
		Unit:        in.Unit,
	}
	if err := r.Validate(); err != nil {
		return core.Reminder{}, fmt.Errorf("validate reminder: %w", err)
	}
	if err := s.store.CreateReminder(ctx, r); err != nil {
		return core.Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderService) Update(ctx context.Context, sess *session.Session, id string, p ReminderPatch) (core.Reminder, error) {
	if err := session.Check(sess); err != nil {
		return core.Reminder{}, err
	}
	r, err := s.store.GetReminder(ctx, sess.FamilyID, id)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("update reminder: %w", err)
	}

	if p.Title != nil {
		r.Title = strings.TrimSpace(*p.Title)
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.NextDueDate != nil {
		r.NextDueDate = *p.NextDueDate
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	if p.Frequency != nil {
		r.Frequency = *p.Frequency
	}
	if p.Unit != nil {
		r.Unit = *p.Unit
	}

	if err := r.Validate(); err != nil {
		return core.Reminder{}, fmt.Errorf("validate reminder: %w", err)
	}
	if err := s.store.UpdateReminder(ctx, r); err != nil {
		return core.Reminder{}, fmt.Errorf("update reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderService) Delete(ctx context.Context, sess *session.Session, id string) error {
	if err := session.Check(sess); err != nil {
		return err
	}
	if err := s.store.DeleteReminder(ctx, sess.FamilyID, id); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

// ProcessDue publishes every active reminder due on or before the end of
// now's day and moves it to its next occurrence after that day. A reminder
// whose message cannot be published keeps its date and fires on the next run.
func (s *ReminderService) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	local := now.In(s.loc)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 1).Add(-time.Nanosecond)

	due, err := s.store.ListDueReminders(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	slog.InfoContext(ctx, "Processing due reminders",
		"total_due", len(due),
		"processing_date", local.Format(core.DayLayout))

	processed := 0
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		next, err := NextDueAfter(r, cutoff)
		if err != nil {
			slog.ErrorContext(ctx, "Reminder has an invalid schedule",
				"reminder_id", r.ID,
				"error", err)
			continue
		}

		if s.publisher == nil {
			slog.WarnContext(ctx, "AMQP publisher not available, reminder not announced", "reminder_id", r.ID)
		} else if err := s.publisher.PublishReminderDue(ctx, r); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reminder",
				"reminder_id", r.ID,
				"error", err)
			continue
		}

		r.NextDueDate = next
		if err := s.store.UpdateReminder(ctx, r); err != nil {
			slog.ErrorContext(ctx, "Failed to advance reminder",
				"reminder_id", r.ID,
				"error", err)
			continue
		}

		processed++
		slog.InfoContext(ctx, "Reminder fired",
			"reminder_id", r.ID,
			"family_id", r.FamilyID,
			"title", r.Title,
			"next_due_date", next.Format(core.DayLayout))
	}

	slog.InfoContext(ctx, "Reminder processing complete",
		"processed", processed,
		"total_checked", len(due))
	return processed, nil
}
