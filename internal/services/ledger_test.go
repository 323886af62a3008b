package services

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famfin/internal/core"
	"famfin/internal/log"
	"famfin/internal/session"
)

func bufferContext(buf *bytes.Buffer) context.Context {
	logger := log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	return context.WithValue(context.Background(), log.LoggerContextKey, logger)
}

func balanceOf(t *testing.T, svc *FamilyService, sess *session.Session, id string) int64 {
	t.Helper()
	accounts, err := svc.ListAccounts(context.Background(), sess)
	require.NoError(t, err)
	for _, a := range accounts {
		if a.ID == id {
			return a.CurrentBalance.Cents
		}
	}
	t.Fatalf("account %s not found", id)
	return 0
}

func TestLedgerService_RecordTransaction(t *testing.T) {
	s, fx, sess := seeded(t)
	pub := &recordingPublisher{}
	ledger := NewLedgerService(s, pub, nil)
	family := NewFamilyService(s, session.NewIssuer("0123456789abcdef", time.Hour), nil)
	ctx := context.Background()
	when := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		in       TransactionInput
		checking int64
		wallet   int64
	}{
		{
			name:     "expense debits the source",
			in:       TransactionInput{Type: core.Expense, Amount: core.Money{Cents: 2500}, Date: when, SourceAccountID: fx.Checking.ID, CategoryID: fx.Food.ID},
			checking: -2500,
		},
		{
			name:   "income credits the destination",
			in:     TransactionInput{Type: core.Income, Amount: core.Money{Cents: 9000}, Date: when, DestinationAccountID: fx.Wallet.ID, CategoryID: fx.Salary.ID},
			wallet: 9000,
		},
		{
			name:     "transfer moves between accounts",
			in:       TransactionInput{Type: core.Transfer, Amount: core.Money{Cents: 1000}, Date: when, SourceAccountID: fx.Checking.ID, DestinationAccountID: fx.Wallet.ID},
			checking: -1000,
			wallet:   1000,
		},
		{
			name:     "expense ignores a stray destination",
			in:       TransactionInput{Type: core.Expense, Amount: core.Money{Cents: 100}, Date: when, SourceAccountID: fx.Checking.ID, DestinationAccountID: fx.Wallet.ID},
			checking: -100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checking := balanceOf(t, family, sess, fx.Checking.ID)
			wallet := balanceOf(t, family, sess, fx.Wallet.ID)

			got, err := ledger.RecordTransaction(ctx, sess, tt.in)
			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, sess.FamilyID, got.FamilyID)
			assert.Equal(t, sess.UserID, got.UserID)
			assert.Equal(t, core.General, got.Importance)

			assert.Equal(t, checking+tt.checking, balanceOf(t, family, sess, fx.Checking.ID))
			assert.Equal(t, wallet+tt.wallet, balanceOf(t, family, sess, fx.Wallet.ID))
		})
	}

	assert.Len(t, pub.recorded, len(tests))
}

func TestLedgerService_RecordTransactionRejects(t *testing.T) {
	s, fx, sess := seeded(t)
	ledger := NewLedgerService(s, nil, nil)
	ctx := context.Background()
	when := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sess *session.Session
		in   TransactionInput
		want error
	}{
		{"no session", nil, TransactionInput{Type: core.Expense, Amount: core.Money{Cents: 1}, Date: when, SourceAccountID: fx.Checking.ID}, ErrNotAuthenticated},
		{"zero amount", sess, TransactionInput{Type: core.Expense, Date: when, SourceAccountID: fx.Checking.ID}, core.ErrInvalidAmount},
		{"missing source", sess, TransactionInput{Type: core.Expense, Amount: core.Money{Cents: 1}, Date: when}, core.ErrMissingSourceAccount},
		{"same account transfer", sess, TransactionInput{Type: core.Transfer, Amount: core.Money{Cents: 1}, Date: when, SourceAccountID: fx.Checking.ID, DestinationAccountID: fx.Checking.ID}, core.ErrSameAccount},
		{"category type mismatch", sess, TransactionInput{Type: core.Expense, Amount: core.Money{Cents: 1}, Date: when, SourceAccountID: fx.Checking.ID, CategoryID: fx.Salary.ID}, core.ErrCategoryTypeMismatch},
		{"unknown category", sess, TransactionInput{Type: core.Expense, Amount: core.Money{Cents: 1}, Date: when, SourceAccountID: fx.Checking.ID, CategoryID: "nope"}, ErrNotFound},
		{"unknown account", sess, TransactionInput{Type: core.Expense, Amount: core.Money{Cents: 1}, Date: when, SourceAccountID: "nope"}, core.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.RecordTransaction(ctx, tt.sess, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	recent, err := ledger.ListTransactions(ctx, sess, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestLedgerService_PublishFailureDoesNotFail(t *testing.T) {
	s, fx, sess := seeded(t)
	ledger := NewLedgerService(s, &recordingPublisher{err: errBoom}, nil)

	got, err := ledger.RecordTransaction(context.Background(), sess, TransactionInput{
		Type: core.Income, Amount: core.Money{Cents: 100}, Date: time.Now(), DestinationAccountID: fx.Wallet.ID,
	})
	require.NoError(t, err)

	stored, err := ledger.GetTransaction(context.Background(), sess, got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ID, stored.ID)
}

func TestLedgerService_LogsCommittedTransaction(t *testing.T) {
	s, fx, sess := seeded(t)
	var buf bytes.Buffer
	ledger := NewLedgerService(s, &recordingPublisher{err: errBoom}, nil)

	got, err := ledger.RecordTransaction(bufferContext(&buf), sess, TransactionInput{
		Type: core.Expense, Amount: core.Money{Cents: 1250}, Date: time.Now(), SourceAccountID: fx.Wallet.ID,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `msg="Transaction recorded"`)
	assert.Contains(t, out, "component=ledger")
	assert.Contains(t, out, "transaction_id="+got.ID)
	assert.Contains(t, out, "amount_cents=1250")
	assert.Contains(t, out, "family_id="+fx.Family.ID)
	assert.Contains(t, out, "operation=record")
	assert.Contains(t, out, "component=amqp")
	assert.Contains(t, out, "error=boom")
}

func TestLedgerService_GetTransactionOtherFamily(t *testing.T) {
	s, fx, sess := seeded(t)
	ledger := NewLedgerService(s, nil, nil)
	got, err := ledger.RecordTransaction(context.Background(), sess, TransactionInput{
		Type: core.Income, Amount: core.Money{Cents: 100}, Date: time.Now(), DestinationAccountID: fx.Wallet.ID,
	})
	require.NoError(t, err)

	stranger := &session.Session{UserID: "u", FamilyID: "other", Role: core.RoleAdmin}
	_, err = ledger.GetTransaction(context.Background(), stranger, got.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
}
