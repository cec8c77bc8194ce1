// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbeTotal counts info probes by asset kind and result.
	ProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrelay_probe_total",
		Help: "Video info probes, by asset kind and result (ok, failure, rate_limited).",
	}, []string{"kind", "result"})

	// ProbeDurationSeconds tracks end-to-end probe latency.
	ProbeDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidrelay_probe_duration_seconds",
		Help:    "Time spent producing a video info result.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	// ManifestEstimatesTotal counts analyzer outcomes.
	// outcome: bandwidth, segment_head, duration_only, segment_sum, unknown, fetch_failed
	ManifestEstimatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrelay_manifest_estimates_total",
		Help: "Manifest size estimates, by format and outcome.",
	}, []string{"format", "outcome"})
)

// RecordProbe counts one probe and its latency.
func RecordProbe(kind, result string, seconds float64) {
	ProbeTotal.WithLabelValues(kind, result).Inc()
	ProbeDurationSeconds.WithLabelValues(kind).Observe(seconds)
}

// RecordManifestEstimate counts one analyzer outcome.
func RecordManifestEstimate(format, outcome string) {
	ManifestEstimatesTotal.WithLabelValues(format, outcome).Inc()
}
