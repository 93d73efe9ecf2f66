package handler

import (
	"fmt"
	"time"
)

// Config holds configuration for the note handler component.
type Config struct {
	// StreamName is the event stream to consume from.
	StreamName string `json:"stream_name"`

	// Subject filters which events this handler receives.
	Subject string `json:"subject"`

	// ConsumerName is the durable consumer name.
	ConsumerName string `json:"consumer_name"`

	// AckWait is how long a delivery may stay unacknowledged.
	AckWait time.Duration `json:"ack_wait"`

	// MaxDeliver bounds redeliveries of a failing event.
	MaxDeliver int `json:"max_deliver"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StreamName:   "NOTEBOT_EVENTS",
		Subject:      "notebot.event.comment",
		ConsumerName: "note-handler",
		AckWait:      30 * time.Second,
		MaxDeliver:   3,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.AckWait <= 0 {
		return fmt.Errorf("ack_wait must be positive")
	}
	if c.MaxDeliver <= 0 {
		return fmt.Errorf("max_deliver must be positive")
	}
	return nil
}
