package document

import (
	"context"
	"errors"

	"github.com/notebot-io/notebot/ledger"
)

// Common editor errors.
var (
	// ErrConflict is returned by ApplyUpdate when the document changed
	// since the snapshot was taken. The caller is expected to reload
	// and re-apply its mutation against the fresh state.
	ErrConflict = errors.New("document modified concurrently")

	// ErrNotFound is returned when the target document does not exist.
	ErrNotFound = errors.New("document not found")
)

// Snapshot is the state an Editor observed for one document at load
// time. Version is an opaque token owned by the Editor implementation
// (a KV revision, the previously read body) and is what makes
// ApplyUpdate a compare-and-swap rather than a blind overwrite.
type Snapshot struct {
	Ref    Ref
	Marker string

	// Ledger is the decoded shadow state; the zero value when the
	// document has no managed region yet.
	Ledger ledger.Ledger

	// Found reports whether persisted state existed at load time.
	Found bool

	// Version is the implementation-specific concurrency token.
	Version any
}

// Editor is the persistence collaborator. Implementations load the
// current ledger state out of a document and write back the rendered
// markdown together with the new structured state as one atomic unit,
// detecting concurrent modification instead of overwriting it.
type Editor interface {
	// LoadCurrent reads the document and decodes the managed region
	// named by marker. A document with no region yet yields a snapshot
	// with an empty ledger and Found == false.
	LoadCurrent(ctx context.Context, ref Ref, marker string) (Snapshot, error)

	// ApplyUpdate persists newMarkdown and newState into the region the
	// snapshot was taken from. It returns ErrConflict when the document
	// no longer matches the snapshot's version token.
	ApplyUpdate(ctx context.Context, snap Snapshot, newMarkdown string, newState ledger.Ledger) error
}
