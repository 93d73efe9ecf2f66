// Package store provides NATS JetStream-backed persistence: a KV
// document editor for locally hosted documents and a processed-delivery
// record that gives at-least-once consumers idempotency.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/notebot-io/notebot/document"
	"github.com/notebot-io/notebot/ledger"
)

// BucketDocuments is the KV bucket holding document bodies.
const BucketDocuments = "NOTEBOT_DOCS"

// KVDocuments is a document.Editor over a NATS KV bucket that stores
// whole document bodies keyed by ref. The KV revision number is the
// concurrency token: updates use revision-conditional writes, so a
// racing writer surfaces as document.ErrConflict instead of being
// overwritten. Used in self-hosted mode and integration tests.
type KVDocuments struct {
	kv jetstream.KeyValue
}

// NewKVDocuments creates the editor, creating the bucket if needed.
func NewKVDocuments(ctx context.Context, js jetstream.JetStream) (*KVDocuments, error) {
	kv, err := getOrCreateBucket(ctx, js, BucketDocuments, "Document bodies for the notes ledger")
	if err != nil {
		return nil, fmt.Errorf("create documents bucket: %w", err)
	}
	return &KVDocuments{kv: kv}, nil
}

var _ document.Editor = (*KVDocuments)(nil)

// key maps a document ref onto a KV key. "/" and "#" are not valid in
// KV keys, so components are dot-joined.
func key(ref document.Ref) string {
	return fmt.Sprintf("%s.%s.%d", ref.Owner, ref.Repo, ref.Number)
}

// kvVersion is the concurrency token: the revision the body was read
// at, plus the body itself so updates can splice without re-reading.
type kvVersion struct {
	revision uint64
	body     string
}

// LoadCurrent reads the document body and decodes the managed region.
// A document that does not exist yet loads as empty with revision 0;
// ApplyUpdate will then create it.
func (s *KVDocuments) LoadCurrent(ctx context.Context, ref document.Ref, marker string) (document.Snapshot, error) {
	snap := document.Snapshot{Ref: ref, Marker: marker, Version: kvVersion{}}

	entry, err := s.kv.Get(ctx, key(ref))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return snap, nil
		}
		return document.Snapshot{}, fmt.Errorf("get document %s: %w", ref, err)
	}

	body := string(entry.Value())
	snap.Version = kvVersion{revision: entry.Revision(), body: body}

	region, found := document.NewSection(marker).Extract(body)
	if found && region.Data != nil {
		if err := json.Unmarshal(region.Data, &snap.Ledger); err != nil {
			return document.Snapshot{}, fmt.Errorf("decode shadow state for %s: %w", ref, err)
		}
		snap.Found = true
	}
	return snap, nil
}

// ApplyUpdate splices the new region into the body the snapshot was
// taken from and writes it back conditional on the snapshot revision.
func (s *KVDocuments) ApplyUpdate(ctx context.Context, snap document.Snapshot, newMarkdown string, newState ledger.Ledger) error {
	ver, ok := snap.Version.(kvVersion)
	if !ok {
		return fmt.Errorf("snapshot for %s was not produced by this editor", snap.Ref)
	}

	data, err := json.Marshal(newState)
	if err != nil {
		return fmt.Errorf("encode shadow state for %s: %w", snap.Ref, err)
	}

	newBody := []byte(document.NewSection(snap.Marker).Splice(ver.body, newMarkdown, data))

	if ver.revision == 0 {
		if _, err := s.kv.Create(ctx, key(snap.Ref), newBody); err != nil {
			if errors.Is(err, jetstream.ErrKeyExists) {
				return fmt.Errorf("%w: %s", document.ErrConflict, snap.Ref)
			}
			return fmt.Errorf("create document %s: %w", snap.Ref, err)
		}
		return nil
	}

	if _, err := s.kv.Update(ctx, key(snap.Ref), newBody, ver.revision); err != nil {
		if isWrongRevision(err) {
			return fmt.Errorf("%w: %s", document.ErrConflict, snap.Ref)
		}
		return fmt.Errorf("update document %s: %w", snap.Ref, err)
	}
	return nil
}

// isWrongRevision checks whether a KV update failed its revision guard.
func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name, description string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: description,
		History:     5, // Keep last 5 revisions
	})
}
