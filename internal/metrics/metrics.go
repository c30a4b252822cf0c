// Package metrics defines the Prometheus instruments for rewrites, reviews
// and audit appends. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rewrite pipeline.
type Metrics struct {
	// Completed rewrites by domain and assigned risk level
	Rewrites *prometheus.CounterVec

	// Failed rewrites by domain and error kind
	RewriteErrors *prometheus.CounterVec

	// End-to-end rewrite latency, including the generator call
	RewriteLatency *prometheus.HistogramVec

	// Flagged phrases by domain and phrase
	FlaggedPhrases *prometheus.CounterVec

	// Review actions by domain and action
	Reviews *prometheus.CounterVec

	// Failed audit appends by domain and journal
	AppendFailures *prometheus.CounterVec
}

// New registers all instruments with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Rewrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redline_rewrites_total",
			Help: "Total completed rewrites by domain and risk level",
		}, []string{"domain", "risk_level"}),

		RewriteErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redline_rewrite_errors_total",
			Help: "Total failed rewrites by domain and error kind",
		}, []string{"domain", "kind"}), // kind: "validation", "upstream", "storage", "configuration"

		RewriteLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redline_rewrite_duration_seconds",
			Help:    "Duration of rewrite requests including generator calls and audit append",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"domain", "mode"}), // mode: "local", "generator"

		FlaggedPhrases: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redline_flagged_phrases_total",
			Help: "Total risk phrase matches by domain and phrase",
		}, []string{"domain", "phrase"}),

		Reviews: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redline_reviews_total",
			Help: "Total applied review actions by domain and action",
		}, []string{"domain", "action"}),

		AppendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "redline_audit_append_failures_total",
			Help: "Total failed audit journal appends",
		}, []string{"domain", "journal"}),
	}
}

// ObserveRewrite records a completed rewrite and its flagged phrases.
func (m *Metrics) ObserveRewrite(domain, riskLevel, mode string, flagged []string, d time.Duration) {
	if m == nil {
		return
	}
	m.Rewrites.WithLabelValues(domain, riskLevel).Inc()
	m.RewriteLatency.WithLabelValues(domain, mode).Observe(d.Seconds())
	for _, p := range flagged {
		m.FlaggedPhrases.WithLabelValues(domain, p).Inc()
	}
}

// IncrementRewriteError records a failed rewrite.
func (m *Metrics) IncrementRewriteError(domain, kind string) {
	if m != nil {
		m.RewriteErrors.WithLabelValues(domain, kind).Inc()
	}
}

// IncrementReview records an applied review action.
func (m *Metrics) IncrementReview(domain, action string) {
	if m != nil {
		m.Reviews.WithLabelValues(domain, action).Inc()
	}
}

// IncrementAppendFailure records a failed journal append.
func (m *Metrics) IncrementAppendFailure(domain, journal string) {
	if m != nil {
		m.AppendFailures.WithLabelValues(domain, journal).Inc()
	}
}
