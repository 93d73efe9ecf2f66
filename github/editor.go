package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/notebot-io/notebot/document"
	"github.com/notebot-io/notebot/ledger"
)

// Editor persists the notes region into GitHub issue bodies. The
// GitHub API has no conditional write, so the editor implements the
// optimistic concurrency contract as a content-match compare-and-swap:
// the snapshot remembers the body it read, and ApplyUpdate re-fetches
// and compares before patching. A body that changed in between is
// reported as document.ErrConflict for the dispatcher to retry.
type Editor struct {
	client *Client
}

// NewEditor creates an Editor over the given API client.
func NewEditor(client *Client) *Editor {
	return &Editor{client: client}
}

var _ document.Editor = (*Editor)(nil)

// LoadCurrent fetches the issue and decodes the managed region.
func (e *Editor) LoadCurrent(ctx context.Context, ref document.Ref, marker string) (document.Snapshot, error) {
	issue, err := e.client.Issue(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return document.Snapshot{}, fmt.Errorf("%w: %s", document.ErrNotFound, ref)
		}
		return document.Snapshot{}, err
	}

	snap := document.Snapshot{
		Ref:     ref,
		Marker:  marker,
		Version: issue.Body,
	}

	region, found := document.NewSection(marker).Extract(issue.Body)
	if found && region.Data != nil {
		if err := json.Unmarshal(region.Data, &snap.Ledger); err != nil {
			return document.Snapshot{}, fmt.Errorf("decode shadow state for %s: %w", ref, err)
		}
		snap.Found = true
	}
	return snap, nil
}

// ApplyUpdate splices the new markdown and shadow state into the body
// the snapshot observed and writes it back, after verifying the live
// body still matches.
func (e *Editor) ApplyUpdate(ctx context.Context, snap document.Snapshot, newMarkdown string, newState ledger.Ledger) error {
	prevBody, ok := snap.Version.(string)
	if !ok {
		return fmt.Errorf("snapshot for %s was not produced by this editor", snap.Ref)
	}

	data, err := json.Marshal(newState)
	if err != nil {
		return fmt.Errorf("encode shadow state for %s: %w", snap.Ref, err)
	}

	live, err := e.client.Issue(ctx, snap.Ref)
	if err != nil {
		return err
	}
	if live.Body != prevBody {
		return fmt.Errorf("%w: %s", document.ErrConflict, snap.Ref)
	}

	newBody := document.NewSection(snap.Marker).Splice(prevBody, newMarkdown, data)
	return e.client.EditIssueBody(ctx, snap.Ref, newBody)
}
