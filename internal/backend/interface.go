package backend

import (
	"context"

	"famfin/internal/amqp"
	"famfin/internal/services"
	"famfin/internal/sheets"
	"famfin/internal/store"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// BackendResult contains the store, the optional broker client and a cleanup function
type BackendResult struct {
	Store   store.Store
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// TransactionPublisher returns the broker client as a publisher, or nil when
// messaging is disabled.
func (r *BackendResult) TransactionPublisher() services.TransactionPublisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// ReminderPublisher returns the broker client as a reminder publisher, or nil
// when messaging is disabled.
func (r *BackendResult) ReminderPublisher() services.ReminderPublisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)

	// CreateLedgerWriter creates the spreadsheet ledger used by the sync worker
	CreateLedgerWriter(ctx context.Context, config Config) (sheets.LedgerWriter, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Messaging, optional for every backend
	AMQPURL           string
	AMQPExchange      string
	AMQPQueue         string
	AMQPReminderQueue string

	// Spreadsheet ledger
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	GoogleOAuthClientFile string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenFile  string
	GoogleOAuthTokenJSON  string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
