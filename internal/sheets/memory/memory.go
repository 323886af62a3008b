// Package memory is an in-process LedgerWriter for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"famfin/internal/core"
	"famfin/internal/sheets"
)

var _ sheets.LedgerWriter = (*Ledger)(nil)

type Ledger struct {
	mu   sync.Mutex
	loc  *time.Location
	rows [][]any
	err  error
}

func New(loc *time.Location) *Ledger {
	return &Ledger{loc: loc}
}

// Append stores the row and returns a synthetic row reference.
func (l *Ledger) Append(_ context.Context, t core.Transaction) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	l.rows = append(l.rows, sheets.LedgerRow(t, l.loc))
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

// FailWith makes every following Append return err; nil restores normal behavior.
func (l *Ledger) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// Rows returns a copy of the appended rows.
func (l *Ledger) Rows() [][]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]any, len(l.rows))
	copy(out, l.rows)
	return out
}
