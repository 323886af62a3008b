package core

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day key used in daily series.
const DayLayout = "2006-01-02"

// DailyStat holds income and expense totals for one calendar day.
type DailyStat struct {
	Date    string `json:"date"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
}

// CategoryStat is an amount aggregated by category with its share of the grand total.
type CategoryStat struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Icon       string  `json:"icon"`
	Color      string  `json:"color"`
	Total      Money   `json:"total"`
	Percentage float64 `json:"percentage"`
}

// FinancialReport is the aggregate over a date range. It is never persisted.
type FinancialReport struct {
	Label                string         `json:"label"`
	Start                time.Time      `json:"start"`
	End                  time.Time      `json:"end"`
	TotalIncome          Money          `json:"totalIncome"`
	TotalExpense         Money          `json:"totalExpense"`
	NetSavings           Money          `json:"netSavings"`
	DailyStats           []DailyStat    `json:"dailyStats"`
	ExpenseCategoryStats []CategoryStat `json:"expenseCategoryStats"`
	IncomeCategoryStats  []CategoryStat `json:"incomeCategoryStats"`
}

// GlobalBudget is the family budget compared with the current month's spending.
type GlobalBudget struct {
	ID         string       `json:"id,omitempty"`
	Limit      Money        `json:"limit"`
	Spent      Money        `json:"spent"`
	Remaining  Money        `json:"remaining"`
	Percentage float64      `json:"percentage"`
	Period     BudgetPeriod `json:"period"`
}

// DashboardStats summarizes balances and the current month.
type DashboardStats struct {
	TotalBalance       Money         `json:"totalBalance"`
	MonthlyIncome      Money         `json:"monthlyIncome"`
	MonthlyExpense     Money         `json:"monthlyExpense"`
	RecentTransactions []Transaction `json:"recentTransactions"`
}

// UnknownCategory is the display fallback for a category whose metadata is missing.
var UnknownCategory = Category{Name: "Unknown", Icon: "?", Color: "gray"}

// MonthRange returns the first and last instant of a calendar month in loc.
func MonthRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// ReportRange names a calendar window around a reference date.
type ReportRange string

const (
	RangeDaily   ReportRange = "daily"
	RangeWeekly  ReportRange = "weekly"
	RangeMonthly ReportRange = "monthly"
	RangeYearly  ReportRange = "yearly"
)

// PeriodRange returns the first and last instant of the day, week, month or
// year in loc that contains ref, plus a display label. Weeks start on Monday.
func PeriodRange(rng ReportRange, ref time.Time, loc *time.Location) (time.Time, time.Time, string, error) {
	if loc == nil {
		loc = time.UTC
	}
	ref = ref.In(loc)
	y, m, d := ref.Date()
	var start, next time.Time
	var label string
	switch rng {
	case RangeDaily:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 1)
		label = start.Format("2 January 2006")
	case RangeWeekly:
		back := (int(ref.Weekday()) + 6) % 7
		start = time.Date(y, m, d-back, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 7)
		label = "Week of " + start.Format("2 January 2006")
	case RangeMonthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
		label = start.Format("January 2006")
	case RangeYearly:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
		label = start.Format("2006")
	default:
		return time.Time{}, time.Time{}, "", fmt.Errorf("range %q: %w", rng, ErrInvalidRange)
	}
	return start, next.Add(-time.Nanosecond), label, nil
}
