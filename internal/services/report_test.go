package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famfin/internal/cache"
	"famfin/internal/core"
	"famfin/internal/session"
)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 10, 0, 0, 0, time.UTC)
}

func tx(typ core.TransactionType, cents int64, date time.Time, cat *core.Category) core.Transaction {
	t := core.Transaction{Type: typ, Amount: core.Money{Cents: cents}, Date: date}
	if cat != nil {
		t.CategoryID = cat.ID
		t.Category = cat
	}
	return t
}

func TestAggregateReport_Example(t *testing.T) {
	a := &core.Category{ID: "a", Name: "Salary", Icon: "$", Color: "green"}
	b := &core.Category{ID: "b", Name: "Food", Icon: "F", Color: "red"}
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 5, 23, 59, 59, 0, time.UTC)

	r := AggregateReport([]core.Transaction{
		tx(core.Income, 1_000_000, day(1), a),
		tx(core.Expense, 300_000, day(1), b),
		tx(core.Expense, 200_000, day(3), b),
	}, start, end, "March", time.UTC)

	assert.Equal(t, "March", r.Label)
	assert.Equal(t, int64(1_000_000), r.TotalIncome.Cents)
	assert.Equal(t, int64(500_000), r.TotalExpense.Cents)
	assert.Equal(t, int64(500_000), r.NetSavings.Cents)
	require.Len(t, r.DailyStats, 5)
	assert.Equal(t, core.DailyStat{Date: "2025-03-01", Income: core.Money{Cents: 1_000_000}, Expense: core.Money{Cents: 300_000}}, r.DailyStats[0])
	assert.Equal(t, core.DailyStat{Date: "2025-03-02"}, r.DailyStats[1])
	assert.Equal(t, int64(200_000), r.DailyStats[2].Expense.Cents)
	require.Len(t, r.ExpenseCategoryStats, 1)
	assert.Equal(t, core.CategoryStat{ID: "b", Name: "Food", Icon: "F", Color: "red", Total: core.Money{Cents: 500_000}, Percentage: 100}, r.ExpenseCategoryStats[0])
	require.Len(t, r.IncomeCategoryStats, 1)
	assert.Equal(t, 100.0, r.IncomeCategoryStats[0].Percentage)
}

func TestAggregateReport_DailySeries(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		txs   []core.Transaction
		want  []string
	}{
		{
			name:  "single day",
			start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 1, 23, 59, 59, 0, time.UTC),
			want:  []string{"2025-03-01"},
		},
		{
			name:  "sixty day span is dense",
			start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "span counts calendar days, not elapsed time",
			start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 2, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name:  "longer span keeps active days only",
			start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			txs: []core.Transaction{
				tx(core.Expense, 100, time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC), nil),
				tx(core.Income, 100, time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC), nil),
				tx(core.Expense, 100, time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC), nil),
			},
			want: []string{"2025-01-05", "2025-02-10"},
		},
		{
			name:  "long span without activity",
			start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := AggregateReport(tt.txs, tt.start, tt.end, "", time.UTC)
			got := make([]string, 0, len(r.DailyStats))
			for _, d := range r.DailyStats {
				got = append(got, d.Date)
			}
			if tt.want == nil {
				require.Len(t, got, 61)
				assert.Equal(t, "2025-01-01", got[0])
				assert.Equal(t, "2025-03-02", got[60])
				for _, d := range r.DailyStats {
					assert.Zero(t, d.Income.Cents)
					assert.Zero(t, d.Expense.Cents)
				}
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateReport_TransfersIgnored(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r := AggregateReport([]core.Transaction{
		{Type: core.Transfer, Amount: core.Money{Cents: 5000}, Date: day(4)},
	}, start, end, "", time.UTC)

	assert.Zero(t, r.TotalIncome.Cents)
	assert.Zero(t, r.TotalExpense.Cents)
	assert.Empty(t, r.DailyStats)
	assert.Empty(t, r.IncomeCategoryStats)
	assert.Empty(t, r.ExpenseCategoryStats)
}

func TestAggregateReport_Categories(t *testing.T) {
	food := &core.Category{ID: "food", Name: "Food", Icon: "F", Color: "red"}
	rent := &core.Category{ID: "rent", Name: "Rent", Icon: "R", Color: "blue"}
	fun := &core.Category{ID: "fun", Name: "Fun", Icon: "!", Color: "pink"}
	dangling := tx(core.Expense, 100, day(2), nil)
	dangling.CategoryID = "gone"

	r := AggregateReport([]core.Transaction{
		tx(core.Expense, 100, day(1), food),
		tx(core.Expense, 600, day(1), rent),
		tx(core.Expense, 100, day(2), fun),
		dangling,
		tx(core.Expense, 100, day(2), nil),
	}, day(1), day(2), "", time.UTC)

	require.Len(t, r.ExpenseCategoryStats, 4)
	ids := []string{}
	for _, s := range r.ExpenseCategoryStats {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"rent", "food", "fun", "gone"}, ids)
	assert.Equal(t, "Unknown", r.ExpenseCategoryStats[3].Name)
	assert.Equal(t, "?", r.ExpenseCategoryStats[3].Icon)
	assert.Equal(t, "gray", r.ExpenseCategoryStats[3].Color)
	assert.Equal(t, int64(1000), r.TotalExpense.Cents)
	assert.Equal(t, 60.0, r.ExpenseCategoryStats[0].Percentage)

	sum := 0.0
	for _, s := range r.ExpenseCategoryStats {
		sum += s.Percentage
	}
	// the uncategorized expense has no stat
	assert.InDelta(t, 90.0, sum, 0.01)
}

func TestAggregateReport_PercentagesSumToHundred(t *testing.T) {
	var txs []core.Transaction
	for i, cents := range []int64{333, 333, 334, 1, 999} {
		c := &core.Category{ID: string(rune('a' + i)), Name: string(rune('A' + i))}
		txs = append(txs, tx(core.Expense, cents, day(1), c))
	}
	r := AggregateReport(txs, day(1), day(1), "", time.UTC)

	sum := 0.0
	for _, s := range r.ExpenseCategoryStats {
		sum += s.Percentage
	}
	assert.InDelta(t, 100.0, sum, 0.05)
}

func TestAggregateReport_ZeroTotalsGiveZeroPercentages(t *testing.T) {
	r := AggregateReport(nil, day(1), day(3), "", time.UTC)
	assert.Len(t, r.DailyStats, 3)
	assert.Empty(t, r.ExpenseCategoryStats)
	assert.Zero(t, r.NetSavings.Cents)
}

func TestAggregateReport_BucketsInLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 20:00 UTC on March 1 is March 2 in UTC+7.
	late := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, jakarta)
	end := time.Date(2025, 3, 3, 0, 0, 0, 0, jakarta)

	r := AggregateReport([]core.Transaction{tx(core.Expense, 500, late, nil)}, start, end, "", jakarta)

	require.Len(t, r.DailyStats, 3)
	assert.Zero(t, r.DailyStats[0].Expense.Cents)
	assert.Equal(t, "2025-03-02", r.DailyStats[1].Date)
	assert.Equal(t, int64(500), r.DailyStats[1].Expense.Cents)
}

func TestReportService_RequiresSession(t *testing.T) {
	s, _, _ := seeded(t)
	counting := &countingStore{TransactionStore: s}
	svc := NewReportService(counting, time.UTC, nil, nil)

	for _, sess := range []*session.Session{nil, {}, {UserID: "u"}} {
		_, err := svc.BuildReport(context.Background(), sess, day(1), day(5), "x")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	}
	assert.Zero(t, counting.Calls())
}

func TestReportService_QueryErrorIsReturned(t *testing.T) {
	s, _, sess := seeded(t)
	counting := &countingStore{TransactionStore: s, err: errBoom}
	svc := NewReportService(counting, time.UTC, nil, nil)

	_, err := svc.BuildReport(context.Background(), sess, day(1), day(5), "x")
	assert.ErrorIs(t, err, errBoom)
}

func TestReportService_MonthlyReport(t *testing.T) {
	s, fx, sess := seeded(t)
	ledger := NewLedgerService(s, nil, nil)
	ctx := context.Background()

	for _, in := range []TransactionInput{
		{Type: core.Income, Amount: core.Money{Cents: 300000}, Date: time.Date(2025, 2, 28, 23, 0, 0, 0, time.UTC), DestinationAccountID: fx.Checking.ID, CategoryID: fx.Salary.ID},
		{Type: core.Expense, Amount: core.Money{Cents: 4500}, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), SourceAccountID: fx.Checking.ID, CategoryID: fx.Food.ID},
		{Type: core.Expense, Amount: core.Money{Cents: 1500}, Date: time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC), SourceAccountID: fx.Wallet.ID, CategoryID: fx.Food.ID},
		{Type: core.Transfer, Amount: core.Money{Cents: 1000}, Date: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), SourceAccountID: fx.Checking.ID, DestinationAccountID: fx.Wallet.ID},
	} {
		_, err := ledger.RecordTransaction(ctx, sess, in)
		require.NoError(t, err)
	}

	svc := NewReportService(s, time.UTC, nil, nil)
	r, err := svc.MonthlyReport(ctx, sess, 2025, time.March)
	require.NoError(t, err)

	assert.Equal(t, "March 2025", r.Label)
	assert.Zero(t, r.TotalIncome.Cents)
	assert.Equal(t, int64(6000), r.TotalExpense.Cents)
	assert.Equal(t, int64(-6000), r.NetSavings.Cents)
	assert.Len(t, r.DailyStats, 31)
	require.Len(t, r.ExpenseCategoryStats, 1)
	assert.Equal(t, "Food", r.ExpenseCategoryStats[0].Name)

	_, err = svc.MonthlyReport(ctx, sess, 2025, 13)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestReportService_RangeReport(t *testing.T) {
	s, fx, sess := seeded(t)
	ledger := NewLedgerService(s, nil, nil)
	ctx := context.Background()

	for _, in := range []TransactionInput{
		{Type: core.Income, Amount: core.Money{Cents: 300000}, Date: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), DestinationAccountID: fx.Checking.ID, CategoryID: fx.Salary.ID},
		{Type: core.Expense, Amount: core.Money{Cents: 4500}, Date: time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC), SourceAccountID: fx.Checking.ID, CategoryID: fx.Food.ID},
		{Type: core.Expense, Amount: core.Money{Cents: 1500}, Date: time.Date(2025, 3, 16, 20, 0, 0, 0, time.UTC), SourceAccountID: fx.Wallet.ID, CategoryID: fx.Food.ID},
		{Type: core.Expense, Amount: core.Money{Cents: 900}, Date: time.Date(2025, 12, 31, 18, 0, 0, 0, time.UTC), SourceAccountID: fx.Wallet.ID, CategoryID: fx.Food.ID},
		{Type: core.Expense, Amount: core.Money{Cents: 100}, Date: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), SourceAccountID: fx.Wallet.ID, CategoryID: fx.Food.ID},
	} {
		_, err := ledger.RecordTransaction(ctx, sess, in)
		require.NoError(t, err)
	}

	svc := NewReportService(s, time.UTC, nil, nil)
	ref := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC) // a Friday

	t.Run("yearly is sparse", func(t *testing.T) {
		r, err := svc.RangeReport(ctx, sess, core.RangeYearly, ref)
		require.NoError(t, err)
		assert.Equal(t, "2025", r.Label)
		assert.Equal(t, int64(300000), r.TotalIncome.Cents)
		assert.Equal(t, int64(6900), r.TotalExpense.Cents)
		dates := make([]string, 0, len(r.DailyStats))
		for _, d := range r.DailyStats {
			dates = append(dates, d.Date)
		}
		assert.Equal(t, []string{"2025-01-10", "2025-03-12", "2025-03-16", "2025-12-31"}, dates)
	})

	t.Run("weekly starts on monday", func(t *testing.T) {
		r, err := svc.RangeReport(ctx, sess, core.RangeWeekly, ref)
		require.NoError(t, err)
		assert.Equal(t, "Week of 10 March 2025", r.Label)
		assert.True(t, r.Start.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, int64(6000), r.TotalExpense.Cents)
		assert.Len(t, r.DailyStats, 7)
	})

	t.Run("daily", func(t *testing.T) {
		r, err := svc.RangeReport(ctx, sess, core.RangeDaily, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, int64(4500), r.TotalExpense.Cents)
		assert.Len(t, r.DailyStats, 1)
	})

	t.Run("monthly matches MonthlyReport", func(t *testing.T) {
		byRange, err := svc.RangeReport(ctx, sess, core.RangeMonthly, ref)
		require.NoError(t, err)
		byMonth, err := svc.MonthlyReport(ctx, sess, 2025, time.March)
		require.NoError(t, err)
		assert.Equal(t, byMonth, byRange)
	})

	_, err := svc.RangeReport(ctx, sess, "fortnightly", ref)
	assert.ErrorIs(t, err, core.ErrInvalidRange)
}

func TestReportService_CacheInvalidatedByNewTransaction(t *testing.T) {
	s, fx, sess := seeded(t)
	counting := &countingStore{TransactionStore: s}
	gens := cache.NewGenerations()
	svc := NewReportService(counting, time.UTC, cache.NewLRUCache[core.FinancialReport](10, time.Minute), gens)
	ledger := NewLedgerService(s, nil, gens)
	ctx := context.Background()
	start, end := day(1), day(20)

	first, err := svc.BuildReport(ctx, sess, start, end, "r")
	require.NoError(t, err)
	_, err = svc.BuildReport(ctx, sess, start, end, "r")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.Calls())
	assert.Zero(t, first.TotalExpense.Cents)

	_, err = ledger.RecordTransaction(ctx, sess, TransactionInput{
		Type: core.Expense, Amount: core.Money{Cents: 700}, Date: day(10), SourceAccountID: fx.Checking.ID,
	})
	require.NoError(t, err)

	second, err := svc.BuildReport(ctx, sess, start, end, "r")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.Calls())
	assert.Equal(t, int64(700), second.TotalExpense.Cents)
}
