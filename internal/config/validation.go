// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"

	"github.com/ManuGH/vidrelay/internal/validate"
)

// Validate checks a merged AppConfig. All problems are reported together.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("listen_addr", cfg.ListenAddr)
	if cfg.MetricsAddr != "" {
		v.ListenAddr("metrics_addr", cfg.MetricsAddr)
		if cfg.MetricsAddr == cfg.ListenAddr {
			v.AddError("metrics_addr", "must differ from listen_addr", cfg.MetricsAddr)
		}
	}
	if _, err := validate.ParseLogLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		v.AddError("log_level", "must be one of debug, info, warn, error", cfg.LogLevel)
	}

	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.NotEmpty("ffmpeg.ffprobe_bin", cfg.FFmpeg.FFprobeBin)
	v.Range("ffmpeg.chunk_size", cfg.FFmpeg.ChunkSize, 4096, 16<<20)
	v.PositiveDuration("ffmpeg.kill_grace", cfg.FFmpeg.KillGrace)
	v.PositiveDuration("ffmpeg.probe_timeout", cfg.FFmpeg.ProbeTimeout)

	v.Range("limits.per_client_sessions", cfg.Limits.PerClientSessions, 1, 64)
	if cfg.Limits.ProbeRPS <= 0 {
		v.AddError("limits.probe_rps", "must be positive", cfg.Limits.ProbeRPS)
	}
	v.Positive("limits.probe_burst", cfg.Limits.ProbeBurst)
	v.NonNegative("limits.api_requests_per_minute", cfg.Limits.APIRequestsPerMinute)

	v.PositiveDuration("http.fetch_timeout", cfg.HTTP.FetchTimeout)

	for _, origin := range cfg.CORS.AllowedOrigins {
		if origin == "*" {
			continue
		}
		v.URL("cors.allowed_origins", origin, []string{"http", "https", "chrome-extension"})
	}
	for _, id := range cfg.CORS.ExtensionIDs {
		if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "/: ") {
			v.AddError("cors.extension_ids", "must be a bare extension id", id)
		}
	}

	v.CIDRs("outbound.allow_cidrs", cfg.Outbound.AllowCIDRs)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.sampling_rate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
