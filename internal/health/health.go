// Package health implements the health and liveness surface (C13): GET
// /health reports configuration presence, source-host identity, rate-limit
// headroom, and a static configuration echo.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/hostclient"
	"github.com/codecritics/codecritic/internal/llm"
)

// Status is the top-level health verdict.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

type report struct {
	Status       Status `json:"status"`
	Config       configEcho `json:"config"`
	HostIdentity identity   `json:"host_identity"`
	RateLimit    *rateLimit `json:"rate_limit,omitempty"`
}

type configEcho struct {
	Provider            string `json:"provider"`
	MaxDiffSize         int    `json:"max_diff_size"`
	AllowListConfigured bool   `json:"allow_list_configured"`
	RequiredSecretsSet  bool   `json:"required_secrets_set"`
}

type identity struct {
	OK    bool   `json:"ok"`
	Login string `json:"login,omitempty"`
	Error string `json:"error,omitempty"`
}

type rateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// Handler serves GET /health.
type Handler struct {
	cfg  *config.Config
	host hostclient.Client
	gw   *llm.Gateway
}

func NewHandler(cfg *config.Config, host hostclient.Client, gw *llm.Gateway) *Handler {
	return &Handler{cfg: cfg, host: host, gw: gw}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rep := report{
		Config: configEcho{
			Provider:            h.providerName(),
			MaxDiffSize:         h.cfg.Diff.MaxDiffSize,
			AllowListConfigured: len(h.cfg.Admission.AllowedRepositories) > 0,
			RequiredSecretsSet:  h.cfg.Validate() == nil,
		},
	}

	login, _, err := h.host.ValidateIdentity(ctx)
	if err != nil {
		rep.HostIdentity = identity{OK: false, Error: err.Error()}
		rep.Status = StatusDegraded
	} else {
		rep.HostIdentity = identity{OK: true, Login: login}
		rep.Status = StatusOK
	}

	if rl, err := h.host.RateLimit(ctx); err == nil {
		rep.RateLimit = &rateLimit{Limit: rl.Limit, Remaining: rl.Remaining, Reset: rl.Reset}
	}

	code := http.StatusOK
	if rep.Status == StatusDegraded {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		slog.Error("health: encode response failed", "error", err)
	}
}

func (h *Handler) providerName() string {
	if h.gw == nil {
		return ""
	}
	return h.gw.ProviderName()
}
