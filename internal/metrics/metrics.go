// Package metrics holds the Prometheus collectors exposed on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequests counts inbound webhook requests by how the Dispatcher
	// disposed of them.
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codecritic_webhook_requests_total",
		Help: "Inbound webhook requests by disposition",
	}, []string{"status"})

	// AdmissionDecisions counts Admission Controller outcomes.
	AdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codecritic_admission_decisions_total",
		Help: "Admission Controller decisions by outcome",
	}, []string{"decision"})

	// ReviewJobs counts terminal Review Job outcomes.
	ReviewJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codecritic_review_jobs_total",
		Help: "Terminal review job outcomes",
	}, []string{"outcome"})

	// ReviewDuration measures end-to-end job latency.
	ReviewDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codecritic_review_duration_seconds",
		Help:    "End-to-end review job duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// LLMCalls counts Gateway calls by provider and outcome.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codecritic_llm_calls_total",
		Help: "LLM Gateway calls by provider and outcome",
	}, []string{"provider", "outcome"})

	// LLMCallDuration measures per-call latency by provider.
	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codecritic_llm_call_duration_seconds",
		Help:    "LLM Gateway call duration by provider",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	// PublisherActions counts Publisher operations by action and result.
	PublisherActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codecritic_publisher_actions_total",
		Help: "Publisher operations by action and result",
	}, []string{"action", "status"})

	// HostClientCalls counts source-host capability invocations by method and result.
	HostClientCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codecritic_host_client_calls_total",
		Help: "Source-host capability calls by method and result",
	}, []string{"method", "result"})
)
