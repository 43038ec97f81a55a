package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/domain"
	"github.com/codecritics/codecritic/internal/metrics"
	"github.com/codecritics/codecritic/internal/security"
	"github.com/codecritics/codecritic/internal/types"
)

// Runner is the capability the Dispatcher hands an admitted envelope to. The
// Review Orchestrator implements this; the Dispatcher itself knows nothing
// about admission, fetching, or publishing.
type Runner interface {
	Run(ctx context.Context, env domain.Envelope)
}

// Dispatcher is the front door (C12): it authenticates and classifies each
// inbound request, ACKs fast, and launches the review asynchronously on a
// bounded pool of background tasks.
type Dispatcher struct {
	cfg    *config.Config
	runner Runner
	sem    chan struct{}
	wg     sync.WaitGroup
}

func NewDispatcher(cfg *config.Config, runner Runner) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		runner: runner,
		sem:    make(chan struct{}, cfg.Job.QueueCapacity),
	}
}

// WaitForCompletion blocks until every in-flight review job has finished.
// Called from the graceful-shutdown path in cmd/server.
func (d *Dispatcher) WaitForCompletion() { d.wg.Wait() }

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.WebhookRequests.WithLabelValues("received").Inc()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, d.cfg.Server.MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body", nil)
		metrics.WebhookRequests.WithLabelValues("error_read").Inc()
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	eventHeader := r.Header.Get("X-GitHub-Event")
	deliveryID := r.Header.Get("X-GitHub-Delivery")

	if !security.VerifySignature(body, signature, d.cfg.Server.WebhookSecret) {
		slog.Warn("webhook signature rejected", "delivery_id", deliveryID)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		metrics.WebhookRequests.WithLabelValues("invalid_signature").Inc()
		return
	}

	env, err := Validate(eventHeader, body)
	if err != nil {
		var verr *ValidationError
		details := []string{err.Error()}
		if ok := asValidationError(err, &verr); ok {
			details = verr.Details
		}
		writeJSONError(w, http.StatusBadRequest, "invalid payload", details)
		metrics.WebhookRequests.WithLabelValues("invalid_payload").Inc()
		return
	}
	env.DeliveryID = deliveryID

	defer logSanitized(env, body)

	switch env.EventKind {
	case domain.EventPing:
		writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
		metrics.WebhookRequests.WithLabelValues("ping").Inc()
		return

	case domain.EventPRChanged, domain.EventMentionComment:
		if !d.accept(env) {
			slog.Warn("job queue at capacity, dropping request", "repo", env.Repo.FullName)
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "server busy, please retry later"})
			metrics.WebhookRequests.WithLabelValues("dropped_capacity").Inc()
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "accepted"})
		metrics.WebhookRequests.WithLabelValues("accepted").Inc()
		return

	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "event not handled"})
		metrics.WebhookRequests.WithLabelValues("ignored").Inc()
		return
	}
}

func (d *Dispatcher) accept(env domain.Envelope) bool {
	select {
	case d.sem <- struct{}{}:
	default:
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic recovered in review job", "panic", r, "stack", string(debug.Stack()))
			}
		}()

		deadline := time.Duration(d.cfg.Job.DeadlineSeconds) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), deadline)
		defer cancel()

		d.runner.Run(ctx, env)
	}()
	return true
}

func logSanitized(env domain.Envelope, body []byte) {
	var titleField struct {
		PullRequest struct {
			Title string `json:"title"`
		} `json:"pull_request"`
		Comment struct {
			Body string `json:"body"`
		} `json:"comment"`
	}
	_ = json.Unmarshal(body, &titleField)

	slog.Debug("webhook admitted",
		"delivery_id", env.DeliveryID,
		"event_kind", env.EventKind,
		"repo", env.Repo.FullName,
		"pull_number", env.PullNumber,
		"title", types.Truncate(types.Sanitize(titleField.PullRequest.Title), 100),
		"comment_body", types.Truncate(types.Sanitize(titleField.Comment.Body), 100),
	)
}

func asValidationError(err error, target **ValidationError) bool {
	if ve, ok := err.(*ValidationError); ok {
		*target = ve
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, errMsg string, details []string) {
	writeJSON(w, status, map[string]any{"error": errMsg, "details": details})
}
