package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"famfin/internal/cache"
	"famfin/internal/core"
	"famfin/internal/log"
	"famfin/internal/session"
	"famfin/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// LedgerStore is the storage surface needed to record transactions.
type LedgerStore interface {
	store.TransactionStore
	store.CategoryStore
}

// TransactionInput is a transaction as submitted by a family member.
type TransactionInput struct {
	Type                 core.TransactionType
	Amount               core.Money
	Date                 time.Time
	CategoryID           string
	SourceAccountID      string
	DestinationAccountID string
	Note                 string
	Beneficiary          string
	Importance           core.ImportanceLevel
}

// LedgerService records transactions against family accounts and announces
// them on the message bus.
type LedgerService struct {
	store       LedgerStore
	publisher   TransactionPublisher
	generations *cache.Generations
	now         func() time.Time
}

// NewLedgerService wires the ledger. publisher and gens may be nil.
func NewLedgerService(s LedgerStore, publisher TransactionPublisher, gens *cache.Generations) *LedgerService {
	return &LedgerService{
		store:       s,
		publisher:   publisher,
		generations: gens,
		now:         time.Now,
	}
}

// RecordTransaction validates in and stores it together with its balance
// changes. Publishing happens after commit and never fails the call.
func (s *LedgerService) RecordTransaction(ctx context.Context, sess *session.Session, in TransactionInput) (core.Transaction, error) {
	if err := session.Check(sess); err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		ID:                   uuid.NewString(),
		FamilyID:             sess.FamilyID,
		UserID:               sess.UserID,
		Type:                 in.Type,
		Amount:               in.Amount,
		Date:                 in.Date,
		CategoryID:           strings.TrimSpace(in.CategoryID),
		SourceAccountID:      strings.TrimSpace(in.SourceAccountID),
		DestinationAccountID: strings.TrimSpace(in.DestinationAccountID),
		Note:                 strings.TrimSpace(in.Note),
		Beneficiary:          strings.TrimSpace(in.Beneficiary),
		Importance:           in.Importance,
		CreatedAt:            s.now().UTC(),
	}
	if t.Importance == "" {
		t.Importance = core.General
	}
	// Income records only touch the destination and expenses only the source.
	switch t.Type {
	case core.Income:
		t.SourceAccountID = ""
	case core.Expense:
		t.DestinationAccountID = ""
	}

	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	if t.CategoryID != "" {
		cat, err := s.store.GetCategory(ctx, sess.FamilyID, t.CategoryID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("category %s: %w", t.CategoryID, err)
		}
		if cat.Type != t.Type {
			return core.Transaction{}, fmt.Errorf("category %s: %w", cat.Name, core.ErrCategoryTypeMismatch)
		}
		t.Category = &cat
	}

	logger := log.NewStructuredLogger(log.FromContext(ctx))
	if err := s.store.RecordTransaction(ctx, t); err != nil {
		logger.LogError(ctx, "Failed to record transaction", err, log.ComponentLedger, log.OpRecord,
			log.NewFields().
				WithFamily(t.FamilyID, t.UserID).
				WithTransaction(t.ID, string(t.Type), t.Amount.Cents))
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}
	logger.LogTransactionRecorded(ctx, t.FamilyID, t.UserID, t.ID, string(t.Type), t.Amount.Cents)

	if s.generations != nil {
		s.generations.Bump(t.FamilyID)
	}

	if err := s.publishRecorded(ctx, t); err != nil {
		logger.LogError(ctx, "Failed to publish transaction recorded message", err, log.ComponentAMQP, log.OpRecord,
			log.NewFields().WithTransaction(t.ID, string(t.Type), t.Amount.Cents))
	}

	return t, nil
}

func (s *LedgerService) publishRecorded(ctx context.Context, t core.Transaction) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping transaction message")
		return nil
	}
	return s.publisher.PublishTransactionRecorded(ctx, t.ID, t.FamilyID)
}

// ListTransactions returns the family's latest transactions, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, sess *session.Session, limit int) ([]core.Transaction, error) {
	if err := session.Check(sess); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	txs, err := s.store.ListRecentTransactions(ctx, sess.FamilyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// GetTransaction returns one transaction of the session's family.
func (s *LedgerService) GetTransaction(ctx context.Context, sess *session.Session, id string) (core.Transaction, error) {
	if err := session.Check(sess); err != nil {
		return core.Transaction{}, err
	}
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if t.FamilyID != sess.FamilyID {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", ErrNotFound)
	}
	return t, nil
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, core.ErrAccountNotFound)
}
