// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the effective, validated configuration.
type AppConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Limits    LimitsConfig    `yaml:"limits"`
	HTTP      HTTPConfig      `yaml:"http"`
	CORS      CORSConfig      `yaml:"cors"`
	Outbound  OutboundConfig  `yaml:"outbound"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Version is set from the binary, never from file or env.
	Version string `yaml:"-"`
}

// FFmpegConfig covers the transcoder and the metadata probe.
type FFmpegConfig struct {
	Bin          string        `yaml:"bin"`
	FFprobeBin   string        `yaml:"ffprobe_bin"`
	ChunkSize    int           `yaml:"chunk_size"`
	KillGrace    time.Duration `yaml:"kill_grace"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// LimitsConfig bounds per-client work.
type LimitsConfig struct {
	PerClientSessions int     `yaml:"per_client_sessions"`
	ProbeRPS          float64 `yaml:"probe_rps"`
	ProbeBurst        int     `yaml:"probe_burst"`
	// APIRequestsPerMinute is the per-IP limit on all API routes; 0 disables it.
	APIRequestsPerMinute int `yaml:"api_requests_per_minute"`
}

// HTTPConfig configures outbound manifest and segment fetches.
type HTTPConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	// ExtensionIDs become chrome-extension://<id> origins.
	ExtensionIDs []string `yaml:"extension_ids"`
}

// Origins returns the allowed origins with extension ids expanded.
func (c CORSConfig) Origins() []string {
	out := make([]string, 0, len(c.AllowedOrigins)+len(c.ExtensionIDs))
	out = append(out, c.AllowedOrigins...)
	for _, id := range c.ExtensionIDs {
		out = append(out, "chrome-extension://"+id)
	}
	return out
}

// OutboundConfig restricts which source URLs may be fetched.
type OutboundConfig struct {
	Enabled    bool     `yaml:"enabled"`
	AllowHosts []string `yaml:"allow_hosts"`
	AllowCIDRs []string `yaml:"allow_cidrs"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:  ":8000",
		MetricsAddr: ":9090",
		LogLevel:    "info",
		FFmpeg: FFmpegConfig{
			Bin:          "ffmpeg",
			ChunkSize:    1 << 20,
			KillGrace:    3 * time.Second,
			ProbeTimeout: 30 * time.Second,
		},
		Limits: LimitsConfig{
			PerClientSessions:    2,
			ProbeRPS:             2,
			ProbeBurst:           5,
			APIRequestsPerMinute: 120,
		},
		HTTP: HTTPConfig{
			FetchTimeout: 10 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
