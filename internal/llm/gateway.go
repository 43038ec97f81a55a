// Package llm implements the LLM Gateway: a provider-polymorphic
// complete(messages) contract with primary/fallback provider selection,
// retry with backoff, per-call timeouts, and error redaction.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/metrics"
	"github.com/codecritics/codecritic/internal/types"
)

// Message is one turn of the conversation sent to a provider.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Provider is a single LLM backend capable of one-shot chat completion.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []Message) (string, error)
}

const (
	maxAttempts = 3
	callTimeout = 60 * time.Second
)

// retryBaseDur is the exponential backoff base; a var (not const) so tests
// can shrink it instead of sleeping through real retry delays.
var retryBaseDur = time.Second

// Gateway exposes a single complete(messages) operation over whichever
// provider was selected at construction, with the primary used first and a
// configured fallback used only when the primary itself could not be built.
type Gateway struct {
	provider   Provider
	production bool
}

// NewGateway builds the primary provider named by cfg.AI.Provider; if that
// construction fails (e.g. missing key), it falls back to the other
// provider. If neither can be constructed, it returns a ProviderUnavailable
// error; a zero Gateway likewise fails every Complete call with
// ProviderUnavailable and reports an empty ProviderName.
func NewGateway(cfg *config.Config) (*Gateway, error) {
	primary, primaryErr := buildProvider(cfg, cfg.AI.Provider)
	if primaryErr == nil {
		return &Gateway{provider: primary, production: cfg.IsProduction()}, nil
	}
	slog.Warn("llm primary provider unavailable, trying fallback",
		"primary", cfg.AI.Provider, "error", types.Sanitize(primaryErr.Error()))

	fallbackName := otherProvider(cfg.AI.Provider)
	fallback, fallbackErr := buildProvider(cfg, fallbackName)
	if fallbackErr == nil {
		slog.Warn("llm using fallback provider", "provider", fallbackName)
		return &Gateway{provider: fallback, production: cfg.IsProduction()}, nil
	}

	return nil, types.ProviderUnavailable("llm.construct",
		fmt.Errorf("primary %s: %w; fallback %s: %v", cfg.AI.Provider, primaryErr, fallbackName, fallbackErr))
}

func buildProvider(cfg *config.Config, name string) (Provider, error) {
	switch name {
	case config.ProviderGemini:
		return newGeminiProvider(cfg)
	case config.ProviderDeepSeek:
		return newDeepSeekProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func otherProvider(name string) string {
	if name == config.ProviderGemini {
		return config.ProviderDeepSeek
	}
	return config.ProviderGemini
}

// ProviderName reports which provider backs this gateway, for health and
// logging surfaces.
func (g *Gateway) ProviderName() string {
	if g.provider == nil {
		return ""
	}
	return g.provider.Name()
}

// Complete sends messages to the selected provider, retrying transient
// failures with exponential backoff, bounded by the job's deadline via ctx
// and by callTimeout per individual attempt.
func (g *Gateway) Complete(ctx context.Context, messages []Message) (string, error) {
	if g.provider == nil {
		return "", types.ProviderUnavailable("llm.complete", errors.New("no provider configured"))
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, callTimeout)
		start := time.Now()
		text, err := g.provider.Complete(attemptCtx, messages)
		cancel()
		metrics.LLMCallDuration.WithLabelValues(g.provider.Name()).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.LLMCalls.WithLabelValues(g.provider.Name(), "success").Inc()
			return text, nil
		}
		lastErr = err

		if !isRetriable(err) {
			metrics.LLMCalls.WithLabelValues(g.provider.Name(), "failed").Inc()
			return "", g.redact(err)
		}

		metrics.LLMCalls.WithLabelValues(g.provider.Name(), "retry").Inc()
		if attempt == maxAttempts-1 {
			break
		}
		wait := retryWait(attempt, err)
		slog.Warn("llm call failed, retrying",
			"provider", g.provider.Name(), "attempt", attempt+1, "wait", wait,
			"error", types.Sanitize(err.Error()))

		select {
		case <-ctx.Done():
			return "", types.Timeout("llm.complete", ctx.Err())
		case <-time.After(wait):
		}
	}

	metrics.LLMCalls.WithLabelValues(g.provider.Name(), "exhausted").Inc()
	return "", g.redact(lastErr)
}

// redact applies the Gateway's error-surface redaction policy before an
// error leaves the LLM Gateway boundary: pattern-based redaction normally,
// or wholesale replacement of the provider body in production.
func (g *Gateway) redact(err error) error {
	if err == nil {
		return nil
	}
	msg := types.Sanitize(err.Error())
	if g.production {
		msg = "[Error details redacted in production]"
	}
	kind := types.KindOf(err)
	var rl *RateLimitError
	switch {
	case errors.As(err, &rl):
		kind = types.KindRateLimited
	case kind == types.KindInternalBug && isRetriable(err):
		kind = types.KindTransient
	}
	return types.New(kind, "llm.complete", errors.New(msg))
}

func retryWait(attempt int, err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	return retryBaseDur * time.Duration(math.Pow(2, float64(attempt)))
}

// RateLimitError signals a provider 429 response, optionally carrying the
// server-indicated reset duration.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("rate limited: %v", e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

// TransientError marks a provider failure as retriable (network, timeout, 5xx).
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func isRetriable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
