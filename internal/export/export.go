// Package export appends transaction events to an external backup log.
// The log is append-only: creations and deletions both become rows, so the
// sheet is an audit trail rather than a mirror of the database.
package export

import (
	"context"
	"strconv"
	"time"

	"tally/internal/core"
)

// Appender writes one event row to the backup log.
type Appender interface {
	Append(ctx context.Context, ev Event) error
}

// Event is one row of the audit log.
type Event struct {
	Op          string
	RecordedAt  time.Time
	Transaction core.Transaction
}

// Row renders the event as a spreadsheet row: recorded-at, op, id, user,
// type, amount, category id, description, transaction date.
func (e Event) Row() []any {
	category := ""
	if e.Transaction.CategoryID != nil {
		category = formatID(*e.Transaction.CategoryID)
	}
	return []any{
		e.RecordedAt.UTC().Format(time.RFC3339),
		e.Op,
		e.Transaction.ID,
		e.Transaction.UserID,
		string(e.Transaction.Type),
		e.Transaction.Amount.String(),
		category,
		e.Transaction.Description,
		e.Transaction.Date.UTC().Format("2006-01-02"),
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
