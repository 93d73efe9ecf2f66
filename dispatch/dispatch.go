// Package dispatch orchestrates one note command: load the current
// ledger state out of the target document, apply the command, render,
// and persist state and markdown as one atomic unit, retrying the
// whole cycle when a concurrent edit is detected.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/notebot-io/notebot/command"
	"github.com/notebot-io/notebot/document"
	"github.com/notebot-io/notebot/ledger"
)

// Dispatch errors.
var (
	// ErrMissingContext is returned when the event lacks a target
	// document, an author, or a comment link.
	ErrMissingContext = errors.New("missing event context")
)

// DefaultMaxAttempts bounds the read-mutate-persist retry loop.
const DefaultMaxAttempts = 3

// Context is the minimal event context accompanying a command: where
// the note goes and who posted it from which comment.
type Context struct {
	Ref        document.Ref
	Author     string
	CommentURL string
}

func (c Context) validate() error {
	switch {
	case c.Ref.IsZero():
		return fmt.Errorf("%w: no target document", ErrMissingContext)
	case c.Author == "":
		return fmt.Errorf("%w: no author", ErrMissingContext)
	case c.CommentURL == "":
		return fmt.Errorf("%w: no comment link", ErrMissingContext)
	}
	return nil
}

// Outcome is the result of a successfully handled command. Ledger and
// Markdown come from the same mutation, so rendering Ledger again
// reproduces Markdown exactly.
type Outcome struct {
	Ledger   ledger.Ledger
	Markdown string

	// Attempts is how many read-mutate-persist cycles ran, > 1 only
	// when conflicts forced retries.
	Attempts int
}

// Dispatcher handles note commands against a document editor. It holds
// no per-request state; a single Dispatcher serves any number of
// concurrent commands.
type Dispatcher struct {
	editor      document.Editor
	marker      string
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxAttempts overrides the conflict retry bound.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Dispatcher writing to the region named by marker
// (e.g. "SUMMARY") through the given editor.
func New(editor document.Editor, marker string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		editor:      editor,
		marker:      marker,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle applies cmd to the document named by evctx. The full
// load-mutate-render-persist cycle runs as one logical transaction:
// when the editor reports a concurrent modification the cycle restarts
// against freshly observed state, up to the configured attempt bound.
//
// Recoverable failures are surfaced as typed errors the caller can
// classify with errors.Is: ledger.ErrEntryNotFound for a removal with
// no matching entry, ErrMissingContext for incomplete event context,
// and document.ErrConflict when retries are exhausted.
func (d *Dispatcher) Handle(ctx context.Context, cmd command.Command, evctx Context) (Outcome, error) {
	if err := evctx.validate(); err != nil {
		return Outcome{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		snap, err := d.editor.LoadCurrent(ctx, evctx.Ref, d.marker)
		if err != nil {
			return Outcome{}, fmt.Errorf("load current state for %s: %w", evctx.Ref, err)
		}

		current := snap.Ledger
		if err := d.apply(&current, cmd, evctx); err != nil {
			return Outcome{}, err
		}

		markdown := current.Render()
		err = d.editor.ApplyUpdate(ctx, snap, markdown, current)
		if err == nil {
			d.logger.Debug("Applied note command",
				"doc", evctx.Ref.String(),
				"command", cmd.String(),
				"entries", current.Len(),
				"attempt", attempt)
			return Outcome{Ledger: current, Markdown: markdown, Attempts: attempt}, nil
		}
		if !errors.Is(err, document.ErrConflict) {
			return Outcome{}, fmt.Errorf("persist update for %s: %w", evctx.Ref, err)
		}

		lastErr = err
		d.logger.Warn("Concurrent document edit detected, retrying",
			"doc", evctx.Ref.String(),
			"attempt", attempt,
			"max_attempts", d.maxAttempts)
	}

	return Outcome{}, fmt.Errorf("persist update for %s after %d attempts: %w",
		evctx.Ref, d.maxAttempts, lastErr)
}

// apply mutates the ledger per the command.
func (d *Dispatcher) apply(l *ledger.Ledger, cmd command.Command, evctx Context) error {
	switch cmd.Kind {
	case command.KindAdd:
		l.Append(ledger.Entry{
			Title:      cmd.Title,
			CommentURL: evctx.CommentURL,
			Author:     evctx.Author,
		})
		return nil
	case command.KindRemove:
		return l.RemoveByTitle(cmd.Title)
	default:
		return fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}
