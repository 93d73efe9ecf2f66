package ledger

import "errors"

// Common ledger errors.
var (
	// ErrEntryNotFound is returned when a removal targets a title that
	// has no matching entry.
	ErrEntryNotFound = errors.New("note entry not found")
)
