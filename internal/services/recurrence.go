// This file implements the Strategy Pattern for reminder recurrence.
// Each unit (days, weeks, months, years) has its own stepper that computes
// the n-th occurrence after an anchor date.

package services

import (
	"fmt"
	"time"

	"famfin/internal/core"
)

// Stepper computes the date n periods after anchor.
type Stepper interface {
	Step(anchor time.Time, n int) time.Time
}

// DayStepper advances by calendar days.
type DayStepper struct{}

func (DayStepper) Step(anchor time.Time, n int) time.Time {
	return anchor.AddDate(0, 0, n)
}

// WeekStepper advances by whole weeks.
type WeekStepper struct{}

func (WeekStepper) Step(anchor time.Time, n int) time.Time {
	return anchor.AddDate(0, 0, 7*n)
}

// MonthStepper advances by calendar months. A day that does not exist in the
// target month is clamped to its last day (Jan 31 + 1 month = Feb 28/29).
type MonthStepper struct{}

func (MonthStepper) Step(anchor time.Time, n int) time.Time {
	return addMonthsClamped(anchor, n)
}

// YearStepper advances by calendar years, clamping Feb 29 to Feb 28.
type YearStepper struct{}

func (YearStepper) Step(anchor time.Time, n int) time.Time {
	return addMonthsClamped(anchor, 12*n)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return first.AddDate(0, 0, d-1)
}

var steppers = map[core.ReminderUnit]Stepper{
	core.Days:   DayStepper{},
	core.Weeks:  WeekStepper{},
	core.Months: MonthStepper{},
	core.Years:  YearStepper{},
}

// GetStepper returns the stepper for a reminder unit.
func GetStepper(unit core.ReminderUnit) (Stepper, error) {
	s, ok := steppers[unit]
	if !ok {
		return nil, fmt.Errorf("unit %q: %w", unit, core.ErrInvalidUnit)
	}
	return s, nil
}

// NextDueAfter returns the first occurrence of r strictly after cutoff.
// Occurrences are counted from r.NextDueDate so that repeated month steps
// within one call do not accumulate clamping.
func NextDueAfter(r core.Reminder, cutoff time.Time) (time.Time, error) {
	if r.Frequency < 1 {
		return time.Time{}, core.ErrInvalidFrequency
	}
	s, err := GetStepper(r.Unit)
	if err != nil {
		return time.Time{}, err
	}
	next := r.NextDueDate
	for k := 1; !next.After(cutoff); k++ {
		next = s.Step(r.NextDueDate, k*r.Frequency)
	}
	return next, nil
}
