package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/hostclient"
)

type fakeHost struct {
	hostclient.Client
	login   string
	idErr   error
	rl      hostclient.RateLimitStatus
	rlErr   error
}

func (f *fakeHost) ValidateIdentity(ctx context.Context) (string, int64, error) {
	return f.login, 1, f.idErr
}

func (f *fakeHost) RateLimit(ctx context.Context) (hostclient.RateLimitStatus, error) {
	return f.rl, f.rlErr
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.GitHub.Token = "t"
	cfg.Server.WebhookSecret = "s"
	cfg.Server.Port = 8080
	cfg.AI.Provider = "gemini"
	cfg.AI.GeminiAPIKey = "k"
	cfg.Diff.MaxDiffSize = 500_000
	return cfg
}

func TestHealth_OKWhenIdentitySucceeds(t *testing.T) {
	host := &fakeHost{login: "codecritic-bot", rl: hostclient.RateLimitStatus{Limit: 5000, Remaining: 4999, Reset: time.Now()}}
	h := NewHandler(testConfig(), host, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rep report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rep.Status != StatusOK {
		t.Errorf("status = %q, want ok", rep.Status)
	}
	if !rep.HostIdentity.OK || rep.HostIdentity.Login != "codecritic-bot" {
		t.Errorf("unexpected host identity: %+v", rep.HostIdentity)
	}
	if rep.RateLimit == nil || rep.RateLimit.Remaining != 4999 {
		t.Errorf("unexpected rate limit: %+v", rep.RateLimit)
	}
	if !rep.Config.RequiredSecretsSet {
		t.Error("expected required secrets to be reported as set")
	}
}

func TestHealth_DegradedWhenIdentityFails(t *testing.T) {
	host := &fakeHost{idErr: errors.New("401 unauthorized")}
	h := NewHandler(testConfig(), host, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var rep report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rep.Status != StatusDegraded {
		t.Errorf("status = %q, want degraded", rep.Status)
	}
	if rep.HostIdentity.OK {
		t.Error("expected host identity to be reported as failed")
	}
}

func TestHealth_MissingSecretsReported(t *testing.T) {
	cfg := &config.Config{}
	host := &fakeHost{login: "bot"}
	h := NewHandler(cfg, host, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var rep report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rep.Config.RequiredSecretsSet {
		t.Error("expected required secrets to be reported as missing")
	}
}

func TestHealth_RateLimitErrorOmitsField(t *testing.T) {
	host := &fakeHost{login: "bot", rlErr: errors.New("rate limit unavailable")}
	h := NewHandler(testConfig(), host, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var rep report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rep.RateLimit != nil {
		t.Errorf("expected rate limit to be omitted on error, got %+v", rep.RateLimit)
	}
}
