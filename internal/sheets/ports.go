// Package sheets exports recorded transactions to a spreadsheet ledger.
package sheets

import (
	"context"
	"time"

	"famfin/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter appends one row per transaction and returns a reference
	// to the written range.
	LedgerWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}
)

// LedgerHeader names the columns written by LedgerRow.
var LedgerHeader = []string{"Date", "Type", "Amount", "Category", "Source", "Destination", "Note", "Recorded by", "ID"}

// LedgerRow renders t as spreadsheet cells. Dates use loc; the amount is in
// major units so that the sheet can sum it.
func LedgerRow(t core.Transaction, loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	category := ""
	if t.Category != nil {
		category = t.Category.Name
	} else if t.CategoryID != "" {
		category = core.UnknownCategory.Name
	}
	return []any{
		t.Date.In(loc).Format(core.DayLayout),
		string(t.Type),
		t.Amount.Euros(),
		category,
		t.SourceAccountID,
		t.DestinationAccountID,
		t.Note,
		t.UserID,
		t.ID,
	}
}
