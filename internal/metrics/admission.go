// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for vidrelay.
// Labels never carry task ids, request ids or client addresses.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// AdmissionPermitsInUse tracks transcode permits currently held across all clients.
	AdmissionPermitsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidrelay_admission_permits_in_use",
		Help: "Current number of held per-client transcode permits.",
	})

	// AdmissionWaitSeconds tracks how long acquirers waited for a permit.
	AdmissionWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidrelay_admission_wait_seconds",
		Help:    "Time spent waiting for a per-client transcode permit.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"outcome"})

	// AdmissionClients tracks distinct client identities seen since start.
	AdmissionClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidrelay_admission_clients",
		Help: "Distinct client identities holding a permit table.",
	})
)

// ObserveAdmissionWait records one Acquire call.
// outcome: "acquired" or "canceled"
func ObserveAdmissionWait(outcome string, waited time.Duration) {
	AdmissionWaitSeconds.WithLabelValues(outcome).Observe(waited.Seconds())
}

// IncPermitsInUse increments the held permit gauge.
func IncPermitsInUse() {
	AdmissionPermitsInUse.Inc()
}

// DecPermitsInUse decrements the held permit gauge.
func DecPermitsInUse() {
	AdmissionPermitsInUse.Dec()
}

// GetPermitsInUse returns the current held permit gauge value.
func GetPermitsInUse() float64 {
	var m dto.Metric
	if err := AdmissionPermitsInUse.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// SetAdmissionClients sets the distinct client gauge.
func SetAdmissionClients(n int) {
	AdmissionClients.Set(float64(n))
}
