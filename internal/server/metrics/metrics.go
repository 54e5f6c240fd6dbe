// Package metrics provides Prometheus metrics for the diagrams server.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "diagrams"

var (
	// TokensIssuedTotal counts access tokens handed out by login.
	TokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Total number of access tokens issued",
		},
	)

	// LoginFailuresTotal counts rejected credential exchanges.
	LoginFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Total number of failed login attempts",
		},
	)

	// VerifyTotal counts session verifications by outcome.
	VerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verify_total",
			Help:      "Total number of session verifications",
		},
		[]string{"result"},
	)

	// RevocationsPurgedTotal counts expired revocation records removed.
	RevocationsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_purged_total",
			Help:      "Total number of expired revocation records deleted",
		},
	)

	// RequestDuration measures HTTP request handling time.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// RecordTokenIssued records a successful login.
func RecordTokenIssued() {
	TokensIssuedTotal.Inc()
}

// RecordLoginFailure records a rejected login.
func RecordLoginFailure() {
	LoginFailuresTotal.Inc()
}

// RecordVerify records a verification outcome, e.g. "ok", "expired".
func RecordVerify(result string) {
	VerifyTotal.WithLabelValues(result).Inc()
}

// RecordPurge records n deleted revocation records.
func RecordPurge(n int64) {
	RevocationsPurgedTotal.Add(float64(n))
}

// RecordRequest records one handled HTTP request.
func RecordRequest(route, method string, status int, seconds float64) {
	RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(seconds)
}
