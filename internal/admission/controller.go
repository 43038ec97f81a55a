// Package admission implements the Admission Controller (C4): repository
// allow-listing and a per-repository sliding-window rate limiter with
// independent budgets for automatic and manual review triggers.
package admission

import (
	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/domain"
	"github.com/codecritics/codecritic/internal/metrics"
)

// Decision is the result of an admission check.
type Decision int

const (
	Allowed Decision = iota
	Disallowed
	RateLimited
)

// Controller gates a Job's admission in order: allow-list then rate limit.
type Controller struct {
	allowed map[string]bool // nil means no allow-list configured
	auto    *RateLimiter
	manual  *RateLimiter
}

func NewController(cfg *config.Config) *Controller {
	var allowed map[string]bool
	if len(cfg.Admission.AllowedRepositories) > 0 {
		allowed = make(map[string]bool, len(cfg.Admission.AllowedRepositories))
		for _, r := range cfg.Admission.AllowedRepositories {
			allowed[r] = true
		}
	}
	return &Controller{
		allowed: allowed,
		auto:    NewRateLimiter(cfg.Admission.AutoRateLimit, cfg.Admission.RateLimitWindow, cfg.Admission.RateLimitCacheCap),
		manual:  NewRateLimiter(cfg.Admission.ManualRateLimit, cfg.Admission.RateLimitWindow, cfg.Admission.RateLimitCacheCap),
	}
}

// Admit evaluates the allow-list and rate limit for a job's trigger.
func (c *Controller) Admit(repo domain.Repo, trigger domain.Trigger) Decision {
	if c.allowed != nil && !c.allowed[repo.FullName] {
		metrics.AdmissionDecisions.WithLabelValues("disallowed").Inc()
		return Disallowed
	}

	var limiter *RateLimiter
	key := repo.FullName
	if trigger == domain.TriggerManual {
		limiter = c.manual
		key += "#manual"
	} else {
		limiter = c.auto
	}

	if !limiter.Allow(key) {
		metrics.AdmissionDecisions.WithLabelValues("rate_limited").Inc()
		return RateLimited
	}

	metrics.AdmissionDecisions.WithLabelValues("allowed").Inc()
	return Allowed
}
