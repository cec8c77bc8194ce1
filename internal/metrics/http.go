// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrelay_http_requests_total",
		Help: "API requests, by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks API latency by route pattern. Download
	// requests include the full streaming time.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidrelay_http_request_duration_seconds",
		Help:    "API request latency, by method and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// RateLimitExceededTotal counts requests refused by a limiter.
	RateLimitExceededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrelay_rate_limit_exceeded_total",
		Help: "Requests refused by a rate limiter, by limiter.",
	}, []string{"limiter"})
)

// IncRateLimited counts one refused request.
func IncRateLimited(limiter string) {
	RateLimitExceededTotal.WithLabelValues(limiter).Inc()
}
