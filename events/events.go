// Package events defines the comment event stream: the JetStream
// stream the webhook ingress publishes into and the handler consumes
// from.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/notebot-io/notebot/github"
)

const (
	// StreamName is the JetStream stream holding comment events.
	StreamName = "NOTEBOT_EVENTS"

	// SubjectComment is the subject comment events are published on.
	SubjectComment = "notebot.event.comment"
)

// EnsureStream creates the event stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Inbound comment events awaiting command handling",
		Subjects:    []string{"notebot.event.>"},
		Retention:   jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	return stream, nil
}

// Publisher publishes comment events onto the stream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a Publisher, ensuring the stream exists.
func NewPublisher(ctx context.Context, js jetstream.JetStream) (*Publisher, error) {
	if _, err := EnsureStream(ctx, js); err != nil {
		return nil, err
	}
	return &Publisher{js: js}, nil
}

// PublishEvent publishes the event. The delivery ID doubles as the
// JetStream message ID, so redeliveries of the same webhook collapse
// into one stream entry inside the dedup window.
func (p *Publisher) PublishEvent(ctx context.Context, ev github.CommentEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal comment event: %w", err)
	}
	_, err = p.js.Publish(ctx, SubjectComment, data, jetstream.WithMsgID(ev.DeliveryID))
	if err != nil {
		return fmt.Errorf("publish comment event %s: %w", ev.DeliveryID, err)
	}
	return nil
}
