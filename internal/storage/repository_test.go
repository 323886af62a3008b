package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famfin/internal/core"
	"famfin/internal/store"
	"famfin/internal/store/storetest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "famfin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestRepo(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "famfin.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var version int
	var dirty bool
	require.NoError(t, db.QueryRow(`SELECT version, dirty FROM schema_migrations`).Scan(&version, &dirty))
	assert.Equal(t, 1, version)
	assert.False(t, dirty)
}

func TestTimeLayoutSortsChronologically(t *testing.T) {
	a := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	b := time.Date(2025, 3, 1, 8, 30, 0, 5, time.UTC)
	// a is 08:00 UTC, so it sorts before b
	assert.Less(t, formatTime(a), formatTime(b))

	back, err := parseTime(formatTime(b))
	require.NoError(t, err)
	assert.True(t, back.Equal(b))
}

func TestConcurrentRecordsDoNotLoseUpdates(t *testing.T) {
	repo := newTestRepo(t)
	fx := storetest.Seed(t, repo)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.RecordTransaction(ctx, core.Transaction{
				ID: uuid.NewString(), FamilyID: fx.Family.ID, UserID: fx.Admin.ID, Type: core.Expense,
				Amount: core.Money{Cents: 100}, Date: day, SourceAccountID: fx.Checking.ID, CreatedAt: day,
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	accts, err := repo.ListAccounts(ctx, fx.Family.ID)
	require.NoError(t, err)
	for _, a := range accts {
		if a.ID == fx.Checking.ID {
			assert.Equal(t, fx.Checking.CurrentBalance.Cents-n*100, a.CurrentBalance.Cents)
		}
	}
}
