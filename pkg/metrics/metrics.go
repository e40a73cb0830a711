package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency per route and status
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbank_http_request_duration_seconds",
			Help:    "HTTP request latency by method, path and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// DatabaseConnectionsGauge exposes sql.DB pool stats
	DatabaseConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dbank_database_connections",
			Help: "Database connection pool state",
		},
		[]string{"state"},
	)

	// VerificationOutcomes counts verification results by network and outcome
	VerificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbank_verification_outcomes_total",
			Help: "Blockchain verification outcomes by network and result",
		},
		[]string{"network", "outcome"},
	)

	// CreditsGranted counts credits added through verified deposits
	CreditsGranted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dbank_credits_granted_total",
			Help: "Total credits granted through verified deposits",
		},
	)

	// PriceFeedFallbacks counts answers served by a backup price source
	PriceFeedFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbank_price_feed_fallback_total",
			Help: "Native asset prices served by a backup source after the primary failed",
		},
		[]string{"source"},
	)

	// IssuerRequestErrors counts failed calls to the card issuer API
	IssuerRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbank_issuer_request_errors_total",
			Help: "Card issuer API request failures by kind",
		},
		[]string{"kind"},
	)
)
