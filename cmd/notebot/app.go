package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/notebot-io/notebot/command"
	"github.com/notebot-io/notebot/config"
	"github.com/notebot-io/notebot/dispatch"
	"github.com/notebot-io/notebot/document"
	"github.com/notebot-io/notebot/events"
	"github.com/notebot-io/notebot/github"
	"github.com/notebot-io/notebot/handler"
	"github.com/notebot-io/notebot/store"
	"github.com/notebot-io/notebot/webhook"
)

const shutdownTimeout = 10 * time.Second

func run(configPath, logLevel string) error {
	logger := newLogger(logLevel)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Connecting to NATS", "url", cfg.NATS.URL)
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(appName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return wrapNATSError(err, cfg.NATS.URL)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	if _, err := events.EnsureStream(ctx, js); err != nil {
		return fmt.Errorf("ensure event stream: %w", err)
	}

	deliveries, err := store.NewDeliveries(ctx, js)
	if err != nil {
		return fmt.Errorf("initialize delivery store: %w", err)
	}

	editor, replier, err := buildEditor(ctx, cfg, js, logger)
	if err != nil {
		return err
	}

	dispatcher := dispatch.New(editor, cfg.Bot.Marker,
		dispatch.WithMaxAttempts(cfg.Bot.MaxAttempts),
		dispatch.WithLogger(logger),
	)

	component, err := handler.New(handler.Config{}, js, dispatcher,
		command.NewParser(cfg.Bot.Mention), deliveries, replier, logger)
	if err != nil {
		return fmt.Errorf("create note handler: %w", err)
	}
	if err := component.Start(ctx); err != nil {
		return fmt.Errorf("start note handler: %w", err)
	}
	defer component.Stop()

	publisher, err := events.NewPublisher(ctx, js)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           webhook.NewServer(cfg.Server.WebhookSecret, cfg.Bot.Repos, publisher, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Webhook server listening",
			"addr", cfg.Server.Addr,
			"mention", cfg.Bot.Mention,
			"editor", cfg.Bot.Editor)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Webhook server shutdown failed", "error", err)
	}

	logger.Info("Notebot shutdown complete")
	return nil
}

// buildEditor selects the document persistence backend. The github
// editor writes through the REST API and can also post reply comments;
// the kv editor keeps documents in a JetStream bucket and has no reply
// channel.
func buildEditor(ctx context.Context, cfg *config.Config, js jetstream.JetStream, logger *slog.Logger) (document.Editor, handler.Replier, error) {
	switch cfg.Bot.Editor {
	case config.EditorGitHub:
		opts := []github.ClientOption{github.WithLogger(logger)}
		if cfg.GitHub.APIBaseURL != "" {
			opts = append(opts, github.WithBaseURL(cfg.GitHub.APIBaseURL))
		}
		client := github.NewClient(cfg.GitHub.Token, opts...)
		return github.NewEditor(client), client, nil
	case config.EditorKV:
		docs, err := store.NewKVDocuments(ctx, js)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize document store: %w", err)
		}
		return docs, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown editor %q", cfg.Bot.Editor)
	}
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	return fmt.Errorf(`NATS connection failed: %w

NATS is not reachable at %s.

To start NATS locally:
  docker run -p 4222:4222 nats:latest -js

Or point nats.url (or your config file) at a running server.`, err, url)
}
