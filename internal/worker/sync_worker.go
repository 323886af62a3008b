// Package worker exports recorded transactions to the spreadsheet ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"famfin/internal/amqp"
	"famfin/internal/core"
	"famfin/internal/sheets"
	"famfin/internal/store"
)

// SyncStore is the storage surface used by SyncWorker.
type SyncStore interface {
	store.TransactionStore
	store.SyncStore
}

// SyncWorker appends recorded transactions to the ledger sheet. Delivery is at
// least once: a transaction may be appended again if marking it synced fails.
type SyncWorker struct {
	store     SyncStore
	ledger    sheets.LedgerWriter
	batchSize int
	// serializes exports so the poll loop and the consumer do not race on a row
	mu sync.Mutex
}

func NewSyncWorker(s SyncStore, ledger sheets.LedgerWriter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{store: s, ledger: ledger, batchSize: batchSize}
}

// HandleRecordedMessage exports the transaction named by msg. A transaction
// that no longer exists is dropped without error.
func (w *SyncWorker) HandleRecordedMessage(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction message",
		"id", msg.ID,
		"family_id", msg.FamilyID,
		"version", msg.Version)

	t, err := w.store.GetTransaction(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "Transaction from message not found, dropping", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.syncTransaction(ctx, t); err != nil {
		return fmt.Errorf("sync transaction to sheets: %w", err)
	}
	return nil
}

// ProcessPending exports up to one batch of transactions that are not synced
// yet. It backs up the message path when messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck exports a larger backlog when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) (int, error) {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return n, fmt.Errorf("startup sync: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
	}
	return n, nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending, err := w.store.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	synced, failed := 0, 0
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.syncTransaction(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "id", t.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, nil
}

func (w *SyncWorker) syncTransaction(ctx context.Context, t core.Transaction) error {
	ref, err := w.ledger.Append(ctx, t)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, t.ID, err.Error()); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", t.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row is written; a failed mark only means it may be appended again.
	if err := w.store.MarkSynced(ctx, t.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", t.ID, "error", err)
	}

	slog.InfoContext(ctx, "Synced transaction",
		"id", t.ID,
		"family_id", t.FamilyID,
		"sheets_ref", ref,
		"amount_cents", t.Amount.Cents)
	return nil
}
