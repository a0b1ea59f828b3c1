package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesProposed = promauto.NewCounter(prometheus.CounterOpts{Namespace: "load_matching", Name: "matches_proposed_total", Help: "Total matches proposed"})
	MatchesAccepted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "load_matching", Name: "matches_accepted_total", Help: "Total matches accepted by drivers"})
	MatchesRejected = promauto.NewCounter(prometheus.CounterOpts{Namespace: "load_matching", Name: "matches_rejected_total", Help: "Total matches rejected by drivers"})
	MatchesExpired  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "load_matching", Name: "matches_expired_total", Help: "Total matches expired by the sweep"})
	MatchConflicts  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "load_matching", Name: "match_conflicts_total", Help: "Concurrent match creations rejected"})

	PricingRuns      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "load_matching", Name: "pricing_runs_total", Help: "Total pricing computations"})
	AdvisoryFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "load_matching", Name: "advisory_failures_total", Help: "External advisory calls that failed or timed out"})

	ScoringLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "load_matching", Name: "scoring_latency_seconds", Help: "Candidate scoring latency", Buckets: prometheus.DefBuckets})
	LocationReports = promauto.NewCounter(prometheus.CounterOpts{Namespace: "load_matching", Name: "location_reports_total", Help: "Driver location reports applied to the geo index"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "load_matching", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "load_matching",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
