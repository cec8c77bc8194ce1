// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks live transcode sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidrelay_sessions_active",
		Help: "Current number of running transcode sessions.",
	})

	// SessionsEndedTotal counts sessions by terminal state.
	SessionsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrelay_sessions_ended_total",
		Help: "Transcode sessions that reached a terminal state, by state.",
	}, []string{"state"})

	// SessionStartFailuresTotal counts ffmpeg spawn failures.
	SessionStartFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidrelay_session_start_failures_total",
		Help: "Transcode sessions whose process could not be started.",
	})

	// SessionBytesStreamedTotal counts bytes written to download clients.
	SessionBytesStreamedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidrelay_session_bytes_streamed_total",
		Help: "Total transcoded bytes written to clients.",
	})

	// SessionDurationSeconds tracks session wall time by terminal state.
	SessionDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidrelay_session_duration_seconds",
		Help:    "Wall time from process start to terminal state.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"state"})

	// FFmpegErrorsTotal counts classified ffmpeg stderr failures.
	FFmpegErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidrelay_ffmpeg_errors_total",
		Help: "Classified ffmpeg failures observed on stderr.",
	}, []string{"class"})
)

// RecordSessionEnd counts a terminal state and its duration.
func RecordSessionEnd(state string, seconds float64) {
	SessionsEndedTotal.WithLabelValues(state).Inc()
	SessionDurationSeconds.WithLabelValues(state).Observe(seconds)
}

// AddBytesStreamed adds n to the streamed bytes counter.
func AddBytesStreamed(n int) {
	SessionBytesStreamedTotal.Add(float64(n))
}

// IncFFmpegError counts one classified ffmpeg failure.
func IncFFmpegError(class string) {
	FFmpegErrorsTotal.WithLabelValues(class).Inc()
}
