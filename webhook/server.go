// Package webhook provides the HTTP ingress for GitHub deliveries:
// signature verification, repository filtering, and publication of
// normalized comment events onto the event stream.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notebot-io/notebot/github"
)

// maxRequestBodySize limits webhook body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notebot_webhook_deliveries_total",
	Help: "Webhook deliveries by outcome",
}, []string{"outcome"})

// Publisher publishes normalized comment events for the handler to
// consume.
type Publisher interface {
	PublishEvent(ctx context.Context, ev github.CommentEvent) error
}

// Server is the webhook HTTP surface.
type Server struct {
	secret    string
	repos     []string
	publisher Publisher
	logger    *slog.Logger
}

// NewServer creates a Server. secret may be empty, disabling signature
// verification (local development only). repos is a list of owner/repo
// glob patterns; empty means all repositories.
func NewServer(secret string, repos []string, publisher Publisher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		secret:    secret,
		repos:     repos,
		publisher: publisher,
		logger:    logger,
	}
}

// Routes returns the handler with all endpoints registered:
//
//	POST /webhook
//	GET  /healthz
//	GET  /metrics
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		deliveriesTotal.WithLabelValues("read_error").Inc()
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(payload) > maxRequestBodySize {
		deliveriesTotal.WithLabelValues("too_large").Inc()
		http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	if s.secret != "" {
		if err := ValidateSignature(s.secret, payload, r.Header.Get("X-Hub-Signature-256")); err != nil {
			deliveriesTotal.WithLabelValues("bad_signature").Inc()
			s.logger.Warn("Rejected webhook delivery",
				"delivery", r.Header.Get("X-GitHub-Delivery"),
				"error", err)
			status := http.StatusForbidden
			if errors.Is(err, ErrMissingSignature) {
				status = http.StatusBadRequest
			}
			http.Error(w, "Invalid signature", status)
			return
		}
	}

	// Only comment creations carry commands; everything else is
	// acknowledged and dropped.
	if event := r.Header.Get("X-GitHub-Event"); event != "issue_comment" {
		deliveriesTotal.WithLabelValues("ignored_event").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	var wp github.WebhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		deliveriesTotal.WithLabelValues("bad_payload").Inc()
		http.Error(w, "Malformed payload", http.StatusBadRequest)
		return
	}
	if wp.Action != "created" {
		deliveriesTotal.WithLabelValues("ignored_action").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	if deliveryID == "" {
		deliveryID = uuid.New().String()
	}

	ev, ok := wp.ToCommentEvent(deliveryID)
	if !ok {
		deliveriesTotal.WithLabelValues("bad_payload").Inc()
		http.Error(w, "Malformed payload", http.StatusBadRequest)
		return
	}

	if !s.repoAllowed(ev.Owner + "/" + ev.Repo) {
		deliveriesTotal.WithLabelValues("filtered_repo").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.publisher.PublishEvent(r.Context(), ev); err != nil {
		deliveriesTotal.WithLabelValues("publish_error").Inc()
		s.logger.Error("Failed to publish comment event",
			"delivery", deliveryID,
			"doc", ev.Ref().String(),
			"error", err)
		http.Error(w, "Event publication failed", http.StatusInternalServerError)
		return
	}

	deliveriesTotal.WithLabelValues("accepted").Inc()
	s.logger.Debug("Accepted webhook delivery",
		"delivery", deliveryID,
		"doc", ev.Ref().String(),
		"author", ev.Author)
	w.WriteHeader(http.StatusAccepted)
}

// repoAllowed matches the owner/repo slug against the configured glob
// patterns.
func (s *Server) repoAllowed(slug string) bool {
	if len(s.repos) == 0 {
		return true
	}
	for _, pattern := range s.repos {
		if ok, err := doublestar.Match(pattern, slug); err == nil && ok {
			return true
		}
	}
	return false
}
