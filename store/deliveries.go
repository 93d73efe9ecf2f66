package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketDeliveries is the KV bucket recording processed webhook
// delivery IDs.
const BucketDeliveries = "NOTEBOT_DELIVERIES"

// deliveryTTL is how long processed delivery IDs are remembered.
// GitHub redeliveries land well inside this window.
const deliveryTTL = 24 * time.Hour

// Deliveries records which webhook deliveries have already been
// processed, so redelivered or replayed events are handled exactly
// once. MarkProcessed is a first-writer-wins atomic create.
type Deliveries struct {
	kv jetstream.KeyValue
}

// NewDeliveries creates the record, creating the bucket if needed.
func NewDeliveries(ctx context.Context, js jetstream.JetStream) (*Deliveries, error) {
	kv, err := js.KeyValue(ctx, BucketDeliveries)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      BucketDeliveries,
			Description: "Processed webhook delivery IDs",
			TTL:         deliveryTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("create deliveries bucket: %w", err)
		}
	}
	return &Deliveries{kv: kv}, nil
}

// MarkProcessed records the delivery ID. The second return value is
// false when the ID was already recorded by an earlier (or concurrent)
// consumer, in which case the event must be skipped.
func (d *Deliveries) MarkProcessed(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, fmt.Errorf("empty delivery ID")
	}
	_, err := d.kv.Create(ctx, deliveryID, []byte{1})
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("record delivery %s: %w", deliveryID, err)
	}
	return true, nil
}

// Clear releases a delivery claim so the event can be retried, used
// when processing failed after the claim was taken.
func (d *Deliveries) Clear(ctx context.Context, deliveryID string) error {
	if err := d.kv.Delete(ctx, deliveryID); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("clear delivery %s: %w", deliveryID, err)
	}
	return nil
}
