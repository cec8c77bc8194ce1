// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. An empty configPath skips
// the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
	}
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)
	cfg.FFmpeg.FFprobeBin = ResolveFFprobeBin(cfg.FFmpeg.FFprobeBin, cfg.FFmpeg.Bin)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing. Keys absent from
// the file keep their current values.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnv applies VIDRELAY_* overrides. Each variable falls back to the
// value already in cfg.
func mergeEnv(cfg *AppConfig) {
	cfg.ListenAddr = ParseString("VIDRELAY_LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = ParseString("VIDRELAY_METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = ParseString("VIDRELAY_LOG_LEVEL", cfg.LogLevel)

	cfg.FFmpeg.Bin = ParseString("VIDRELAY_FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = ParseString("VIDRELAY_FFPROBE_BIN", cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.ChunkSize = ParseInt("VIDRELAY_CHUNK_SIZE", cfg.FFmpeg.ChunkSize)
	cfg.FFmpeg.KillGrace = ParseDuration("VIDRELAY_KILL_GRACE", cfg.FFmpeg.KillGrace)
	cfg.FFmpeg.ProbeTimeout = ParseDuration("VIDRELAY_PROBE_TIMEOUT", cfg.FFmpeg.ProbeTimeout)

	cfg.Limits.PerClientSessions = ParseInt("VIDRELAY_PER_CLIENT_SESSIONS", cfg.Limits.PerClientSessions)
	cfg.Limits.ProbeRPS = ParseFloat("VIDRELAY_PROBE_RPS", cfg.Limits.ProbeRPS)
	cfg.Limits.ProbeBurst = ParseInt("VIDRELAY_PROBE_BURST", cfg.Limits.ProbeBurst)
	cfg.Limits.APIRequestsPerMinute = ParseInt("VIDRELAY_API_RPM", cfg.Limits.APIRequestsPerMinute)

	cfg.HTTP.FetchTimeout = ParseDuration("VIDRELAY_FETCH_TIMEOUT", cfg.HTTP.FetchTimeout)

	cfg.CORS.AllowedOrigins = ParseList("VIDRELAY_CORS_ORIGINS", cfg.CORS.AllowedOrigins)
	cfg.CORS.ExtensionIDs = ParseList("VIDRELAY_EXTENSION_IDS", cfg.CORS.ExtensionIDs)
	// Store and unpacked builds of the browser extension.
	for _, key := range []string{"EXTENSION_ID_STORE", "EXTENSION_ID_LOCAL"} {
		if id := ParseString(key, ""); id != "" {
			cfg.CORS.ExtensionIDs = appendUnique(cfg.CORS.ExtensionIDs, id)
		}
	}

	cfg.Outbound.Enabled = ParseBool("VIDRELAY_OUTBOUND_ENABLED", cfg.Outbound.Enabled)
	cfg.Outbound.AllowHosts = ParseList("VIDRELAY_OUTBOUND_ALLOW_HOSTS", cfg.Outbound.AllowHosts)
	cfg.Outbound.AllowCIDRs = ParseList("VIDRELAY_OUTBOUND_ALLOW_CIDRS", cfg.Outbound.AllowCIDRs)

	cfg.Telemetry.Enabled = ParseBool("VIDRELAY_TRACING_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("VIDRELAY_TRACING_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("VIDRELAY_TRACING_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat("VIDRELAY_TRACING_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
