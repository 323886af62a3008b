package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"famfin/internal/amqp"
	"famfin/internal/sheets"
	gsheet "famfin/internal/sheets/google"
	sheetmem "famfin/internal/sheets/memory"
	"famfin/internal/storage"
	"famfin/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	loc    *time.Location
}

// NewFactory creates a new backend factory. loc is the zone used for ledger
// dates and year-prefixed sheet names.
func NewFactory(logger *slog.Logger, loc *time.Location) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DefaultFactory{
		logger: logger,
		loc:    loc,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var result *BackendResult
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		result = &BackendResult{Store: repo}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		result = &BackendResult{Store: memory.New()}
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if err := result.Store.Ping(ctx); err != nil {
		_ = result.Store.Close()
		return nil, fmt.Errorf("store not reachable: %w", err)
	}

	// Messaging is optional: without a broker, the sync worker's periodic
	// pass still picks up pending transactions.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, config.AMQPReminderQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without messaging", "error", err)
		} else {
			result.AMQP = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue,
				"reminder_queue", config.AMQPReminderQueue)
		}
	}

	result.Cleanup = func() error {
		var amqpErr error
		if result.AMQP != nil {
			amqpErr = result.AMQP.Close()
		}
		if err := result.Store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
		return amqpErr
	}

	return result, nil
}

// CreateLedgerWriter implements Factory.CreateLedgerWriter. Without a
// spreadsheet ID rows are kept in memory, which is only useful for local runs.
func (f *DefaultFactory) CreateLedgerWriter(ctx context.Context, config Config) (sheets.LedgerWriter, error) {
	if !config.SheetsEnabled() {
		f.logger.Warn("No spreadsheet configured, ledger rows are kept in memory")
		return sheetmem.New(f.loc), nil
	}

	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsFile: config.GoogleCredentialsFile,
		CredentialsJSON: config.GoogleCredentialsJSON,
		OAuthClientFile: config.GoogleOAuthClientFile,
		OAuthClientJSON: config.GoogleOAuthClientJSON,
		OAuthTokenFile:  config.GoogleOAuthTokenFile,
		OAuthTokenJSON:  config.GoogleOAuthTokenJSON,
		Location:        f.loc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets ledger", "sheet", config.GoogleSheetName)
	return client, nil
}
