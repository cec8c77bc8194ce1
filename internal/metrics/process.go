// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcTerminateTotal counts signals sent to supervised process groups.
	ProcTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrelay_proc_terminate_total",
		Help: "Signals sent to supervised process groups, by signal and result (sent, esrch, error).",
	}, []string{"signal", "result"})

	// ProcWaitTotal counts how supervised processes were reaped.
	ProcWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrelay_proc_wait_total",
		Help: "Reaped supervised processes, by outcome.",
	}, []string{"outcome"})
)

// IncProcTerminate counts one signal delivery attempt.
func IncProcTerminate(signal, result string) {
	ProcTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait counts one reap outcome.
func IncProcWait(outcome string) {
	ProcWaitTotal.WithLabelValues(outcome).Inc()
}
