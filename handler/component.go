// Package handler provides the note handler component: it consumes
// comment events from the event stream, parses note commands, runs
// them through the dispatcher, and reports recoverable failures back
// to the commenting user.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/notebot-io/notebot/command"
	"github.com/notebot-io/notebot/dispatch"
	"github.com/notebot-io/notebot/document"
	"github.com/notebot-io/notebot/github"
	"github.com/notebot-io/notebot/ledger"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebot_commands_total",
		Help: "Note commands by kind and result",
	}, []string{"kind", "result"})

	conflictRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notebot_conflict_retries_total",
		Help: "Read-modify-write cycles repeated due to concurrent edits",
	})
)

// Replier posts a reply comment on a document. *github.Client
// satisfies it; a nil Replier silently drops replies.
type Replier interface {
	PostComment(ctx context.Context, ref document.Ref, body string) error
}

// Deduper records processed delivery IDs. *store.Deliveries satisfies it.
type Deduper interface {
	MarkProcessed(ctx context.Context, deliveryID string) (bool, error)
	Clear(ctx context.Context, deliveryID string) error
}

// Component implements the note handler processor.
type Component struct {
	config     Config
	js         jetstream.JetStream
	parser     *command.Parser
	dispatcher *dispatch.Dispatcher
	deliveries Deduper
	replier    Replier
	logger     *slog.Logger

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	consumer  jetstream.Consumer

	// Metrics
	eventsProcessed atomic.Int64
	commandsApplied atomic.Int64
	commandsFailed  atomic.Int64
}

// New creates a note handler component. Zero config fields take their
// defaults.
func New(config Config, js jetstream.JetStream, dispatcher *dispatch.Dispatcher, parser *command.Parser, deliveries Deduper, replier Replier, logger *slog.Logger) (*Component, error) {
	defaults := DefaultConfig()
	if config.StreamName == "" {
		config.StreamName = defaults.StreamName
	}
	if config.Subject == "" {
		config.Subject = defaults.Subject
	}
	if config.ConsumerName == "" {
		config.ConsumerName = defaults.ConsumerName
	}
	if config.AckWait == 0 {
		config.AckWait = defaults.AckWait
	}
	if config.MaxDeliver == 0 {
		config.MaxDeliver = defaults.MaxDeliver
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Component{
		config:     config,
		js:         js,
		parser:     parser,
		dispatcher: dispatcher,
		deliveries: deliveries,
		replier:    replier,
		logger:     logger,
	}, nil
}

// Start begins consuming comment events.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.js == nil {
		c.mu.Unlock()
		return fmt.Errorf("JetStream context required")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	stream, err := c.js.Stream(subCtx, c.config.StreamName)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.StreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: c.config.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.AckWait,
		MaxDeliver:    c.config.MaxDeliver,
	})
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	c.consumer = consumer

	go c.consumeLoop(subCtx)

	c.logger.Info("note-handler started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"subject", c.config.Subject)

	return nil
}

// Stop halts event consumption.
func (c *Component) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.logger.Info("note-handler stopped",
		"events_processed", c.eventsProcessed.Load(),
		"commands_applied", c.commandsApplied.Load())
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

// consumeLoop continuously fetches events from the consumer.
func (c *Component) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleMessage(ctx, msg)
		}
	}
}

// handleMessage processes one comment event delivery.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	if ctx.Err() != nil {
		c.nak(msg)
		return
	}

	c.eventsProcessed.Add(1)

	var ev github.CommentEvent
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		c.logger.Error("Failed to parse comment event", "error", err)
		c.ack(msg)
		return
	}

	if err := c.ProcessEvent(ctx, ev); err != nil {
		c.nak(msg)
		return
	}
	c.ack(msg)
}

// ProcessEvent runs one comment event to completion: parse, dedupe,
// dispatch, reply. User-facing failures are resolved here with a reply
// comment; only transient persistence failures return an error, after
// releasing the dedup claim, so the delivery can be retried.
func (c *Component) ProcessEvent(ctx context.Context, ev github.CommentEvent) error {
	cmd, err := c.parser.Parse(ev.Body)
	if err != nil {
		if errors.Is(err, command.ErrEmptyTitle) {
			c.reply(ctx, ev.Ref(), "A note needs a title: `@notebot note <title>` or `@notebot note remove <title>`.")
		}
		// Ordinary comments not addressed to us land here too.
		return nil
	}

	if c.deliveries != nil {
		fresh, err := c.deliveries.MarkProcessed(ctx, ev.DeliveryID)
		if err != nil {
			c.logger.Error("Failed to record delivery",
				"delivery", ev.DeliveryID,
				"error", err)
			return err
		}
		if !fresh {
			c.logger.Debug("Skipping duplicate delivery", "delivery", ev.DeliveryID)
			return nil
		}
	}

	evctx := dispatch.Context{
		Ref:        ev.Ref(),
		Author:     ev.Author,
		CommentURL: ev.CommentURL,
	}

	out, err := c.dispatcher.Handle(ctx, cmd, evctx)
	if err == nil {
		c.commandsApplied.Add(1)
		commandsTotal.WithLabelValues(string(cmd.Kind), "ok").Inc()
		if out.Attempts > 1 {
			conflictRetriesTotal.Add(float64(out.Attempts - 1))
		}
		c.logger.Info("Note command applied",
			"doc", ev.Ref().String(),
			"command", cmd.String(),
			"author", ev.Author,
			"entries", out.Ledger.Len())
		return nil
	}

	c.commandsFailed.Add(1)
	switch {
	case errors.Is(err, ledger.ErrEntryNotFound):
		commandsTotal.WithLabelValues(string(cmd.Kind), "not_found").Inc()
		c.reply(ctx, ev.Ref(), fmt.Sprintf("No note titled %q exists here, so nothing was removed.", cmd.Title))
		return nil
	case errors.Is(err, dispatch.ErrMissingContext):
		commandsTotal.WithLabelValues(string(cmd.Kind), "invalid").Inc()
		c.logger.Warn("Dropped command with incomplete context",
			"delivery", ev.DeliveryID,
			"error", err)
		return nil
	default:
		// Persistence failed (conflict retries exhausted or I/O).
		// Release the dedup claim so the redelivery can try again.
		commandsTotal.WithLabelValues(string(cmd.Kind), "error").Inc()
		c.logger.Error("Note command failed",
			"doc", ev.Ref().String(),
			"command", cmd.String(),
			"error", err)
		if c.deliveries != nil {
			if cerr := c.deliveries.Clear(ctx, ev.DeliveryID); cerr != nil {
				c.logger.Warn("Failed to release delivery claim",
					"delivery", ev.DeliveryID,
					"error", cerr)
			}
		}
		return err
	}
}

func (c *Component) reply(ctx context.Context, ref document.Ref, body string) {
	if c.replier == nil {
		return
	}
	if err := c.replier.PostComment(ctx, ref, body); err != nil {
		c.logger.Warn("Failed to post reply comment",
			"doc", ref.String(),
			"error", err)
	}
}

func (c *Component) ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK message", "error", err)
	}
}

func (c *Component) nak(msg jetstream.Msg) {
	if err := msg.Nak(); err != nil {
		c.logger.Warn("Failed to NAK message", "error", err)
	}
}

// Stats is a point-in-time view of handler activity.
type Stats struct {
	Running         bool
	EventsProcessed int64
	CommandsApplied int64
	CommandsFailed  int64
}

// Stats returns current handler counters.
func (c *Component) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Running:         c.running,
		EventsProcessed: c.eventsProcessed.Load(),
		CommandsApplied: c.commandsApplied.Load(),
		CommandsFailed:  c.commandsFailed.Load(),
	}
}
