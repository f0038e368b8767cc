// Package sheets defines the ports for the spreadsheet backup target.
package sheets

import (
	"context"

	"milktrack/internal/core"
)

// EntryAppender appends one delivery change to the backup journal and
// returns a reference to the written range.
type EntryAppender interface {
	AppendEntry(ctx context.Context, ownerID string, e core.Entry, op string) (string, error)
}
