package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"famfin/internal/cache"
	"famfin/internal/core"
	"famfin/internal/session"
	"famfin/internal/store"
)

// denseSpanDays is the largest start-to-end day distance for which every
// calendar day gets a DailyStat entry.
const denseSpanDays = 60

// ReportService builds financial reports for a family over a date range.
type ReportService struct {
	transactions store.TransactionStore
	loc          *time.Location
	cache        *cache.LRUCache[core.FinancialReport]
	generations  *cache.Generations
}

// NewReportService returns a report builder bucketing days in loc. A nil
// reports cache disables caching; gens must be shared with every service
// that changes a family's transactions or categories.
func NewReportService(transactions store.TransactionStore, loc *time.Location, reports *cache.LRUCache[core.FinancialReport], gens *cache.Generations) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	if gens == nil {
		gens = cache.NewGenerations()
	}
	return &ReportService{
		transactions: transactions,
		loc:          loc,
		cache:        reports,
		generations:  gens,
	}
}

// Location returns the time zone used for calendar days.
func (s *ReportService) Location() *time.Location {
	return s.loc
}

// BuildReport aggregates the family's transactions with start <= date <= end.
func (s *ReportService) BuildReport(ctx context.Context, sess *session.Session, start, end time.Time, label string) (core.FinancialReport, error) {
	if err := session.Check(sess); err != nil {
		return core.FinancialReport{}, err
	}

	key := fmt.Sprintf("%s|%d|%d|%d|%s", sess.FamilyID, s.generations.Current(sess.FamilyID),
		start.UnixNano(), end.UnixNano(), label)
	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			slog.DebugContext(ctx, "Report served from cache", "family_id", sess.FamilyID, "label", label)
			return r, nil
		}
	}

	txs, err := s.transactions.ListTransactions(ctx, store.TransactionFilter{
		FamilyID: sess.FamilyID,
		Start:    start,
		End:      end,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch report transactions",
			"family_id", sess.FamilyID,
			"start", start,
			"end", end,
			"error", err)
		return core.FinancialReport{}, fmt.Errorf("build report: %w", err)
	}

	report := AggregateReport(txs, start, end, label, s.loc)
	if s.cache != nil {
		s.cache.Set(key, report)
	}

	slog.InfoContext(ctx, "Report built",
		"family_id", sess.FamilyID,
		"label", label,
		"transactions", len(txs),
		"days", len(report.DailyStats))
	return report, nil
}

// MonthlyReport covers one calendar month in the report location.
func (s *ReportService) MonthlyReport(ctx context.Context, sess *session.Session, year int, month time.Month) (core.FinancialReport, error) {
	if err := session.Check(sess); err != nil {
		return core.FinancialReport{}, err
	}
	if month < time.January || month > time.December {
		return core.FinancialReport{}, fmt.Errorf("month %d: %w", month, core.ErrInvalidDate)
	}
	start, end := core.MonthRange(year, month, s.loc)
	return s.BuildReport(ctx, sess, start, end, start.Format("January 2006"))
}

// RangeReport covers the day, Monday-start week, month or year that contains
// ref in the report location. Spans longer than denseSpanDays list only the
// days with activity.
func (s *ReportService) RangeReport(ctx context.Context, sess *session.Session, rng core.ReportRange, ref time.Time) (core.FinancialReport, error) {
	if err := session.Check(sess); err != nil {
		return core.FinancialReport{}, err
	}
	start, end, label, err := core.PeriodRange(rng, ref, s.loc)
	if err != nil {
		return core.FinancialReport{}, err
	}
	return s.BuildReport(ctx, sess, start, end, label)
}

// AggregateReport folds txs into a report in a single pass. Transfers and
// unknown types are ignored. Days are calendar days in loc.
func AggregateReport(txs []core.Transaction, start, end time.Time, label string, loc *time.Location) core.FinancialReport {
	if loc == nil {
		loc = time.UTC
	}

	report := core.FinancialReport{Label: label, Start: start, End: end}
	daily := make(map[string]*core.DailyStat)
	incomeCats := newCategoryTotals()
	expenseCats := newCategoryTotals()

	for _, t := range txs {
		if t.Type != core.Income && t.Type != core.Expense {
			continue
		}

		day := t.Date.In(loc).Format(core.DayLayout)
		d, ok := daily[day]
		if !ok {
			d = &core.DailyStat{Date: day}
			daily[day] = d
		}

		if t.Type == core.Income {
			d.Income.Cents += t.Amount.Cents
			report.TotalIncome.Cents += t.Amount.Cents
			incomeCats.add(t)
		} else {
			d.Expense.Cents += t.Amount.Cents
			report.TotalExpense.Cents += t.Amount.Cents
			expenseCats.add(t)
		}
	}

	report.NetSavings = report.TotalIncome.Sub(report.TotalExpense)
	report.DailyStats = dailySeries(daily, start, end, loc)
	report.IncomeCategoryStats = incomeCats.stats(report.TotalIncome)
	report.ExpenseCategoryStats = expenseCats.stats(report.TotalExpense)
	return report
}

func dailySeries(daily map[string]*core.DailyStat, start, end time.Time, loc *time.Location) []core.DailyStat {
	first, last := civilDay(start.In(loc)), civilDay(end.In(loc))
	span := int(last.Sub(first).Hours() / 24)

	if span >= 0 && span <= denseSpanDays {
		out := make([]core.DailyStat, 0, span+1)
		for i := 0; i <= span; i++ {
			key := first.AddDate(0, 0, i).Format(core.DayLayout)
			if d, ok := daily[key]; ok {
				out = append(out, *d)
			} else {
				out = append(out, core.DailyStat{Date: key})
			}
		}
		return out
	}

	out := make([]core.DailyStat, 0, len(daily))
	for _, d := range daily {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// civilDay maps t's calendar date to UTC midnight so that day arithmetic is
// free of DST shifts.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type categoryTotals struct {
	byID map[string]*core.CategoryStat
}

func newCategoryTotals() *categoryTotals {
	return &categoryTotals{byID: make(map[string]*core.CategoryStat)}
}

// add accumulates t under its category. Display metadata comes from the first
// transaction seen for the category.
func (c *categoryTotals) add(t core.Transaction) {
	if t.CategoryID == "" {
		return
	}
	st, ok := c.byID[t.CategoryID]
	if !ok {
		meta := core.UnknownCategory
		if t.Category != nil {
			meta = *t.Category
		}
		st = &core.CategoryStat{ID: t.CategoryID, Name: meta.Name, Icon: meta.Icon, Color: meta.Color}
		c.byID[t.CategoryID] = st
	}
	st.Total.Cents += t.Amount.Cents
}

func (c *categoryTotals) stats(grandTotal core.Money) []core.CategoryStat {
	out := make([]core.CategoryStat, 0, len(c.byID))
	for _, st := range c.byID {
		st.Percentage = core.Percentage(st.Total, grandTotal)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
