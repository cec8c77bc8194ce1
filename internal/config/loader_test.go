// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, 2, cfg.Limits.PerClientSessions)
	assert.Equal(t, 1<<20, cfg.FFmpeg.ChunkSize)
	assert.Equal(t, 3*time.Second, cfg.FFmpeg.KillGrace)
	assert.Equal(t, "ffprobe", cfg.FFmpeg.FFprobeBin)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins())
	assert.Equal(t, "v1.2.3", cfg.Version)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen_addr: "127.0.0.1:8100"
ffmpeg:
  bin: /opt/ffmpeg/bin/ffmpeg
  kill_grace: 5s
limits:
  per_client_sessions: 4
cors:
  allowed_origins: ["https://app.example"]
  extension_ids: ["abcdefghijklmnop"]
outbound:
  enabled: true
  allow_cidrs: ["10.0.0.0/8"]
`)
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8100", cfg.ListenAddr)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpeg.Bin)
	assert.Equal(t, 5*time.Second, cfg.FFmpeg.KillGrace)
	assert.Equal(t, 4, cfg.Limits.PerClientSessions)
	// Untouched keys keep defaults.
	assert.Equal(t, 1<<20, cfg.FFmpeg.ChunkSize)
	assert.Equal(t, []string{"https://app.example", "chrome-extension://abcdefghijklmnop"}, cfg.CORS.Origins())
	assert.True(t, cfg.Outbound.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "limits:\n  per_client_sessions: 4\n")
	t.Setenv("VIDRELAY_PER_CLIENT_SESSIONS", "3")
	t.Setenv("VIDRELAY_KILL_GRACE", "1500ms")
	t.Setenv("VIDRELAY_OUTBOUND_ALLOW_HOSTS", "cdn.example, media.example")
	t.Setenv("EXTENSION_ID_STORE", "storeid")
	t.Setenv("EXTENSION_ID_LOCAL", "localid")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Limits.PerClientSessions)
	assert.Equal(t, 1500*time.Millisecond, cfg.FFmpeg.KillGrace)
	assert.Equal(t, []string{"cdn.example", "media.example"}, cfg.Outbound.AllowHosts)
	assert.Equal(t, []string{"storeid", "localid"}, cfg.CORS.ExtensionIDs)
}

func TestLoad_StrictUnknownField(t *testing.T) {
	path := writeConfig(t, "listen_addr: \":8000\"\nstream_port: 8001\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "listen_addr: \":8000\"\n---\nlisten_addr: \":8001\"\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, ""), "").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().ListenAddr, cfg.ListenAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"bad listen addr", func(c *AppConfig) { c.ListenAddr = "8000" }, "listen_addr"},
		{"same metrics addr", func(c *AppConfig) { c.MetricsAddr = c.ListenAddr }, "metrics_addr"},
		{"bad log level", func(c *AppConfig) { c.LogLevel = "verbose" }, "log_level"},
		{"zero sessions", func(c *AppConfig) { c.Limits.PerClientSessions = 0 }, "limits.per_client_sessions"},
		{"tiny chunk", func(c *AppConfig) { c.FFmpeg.ChunkSize = 10 }, "ffmpeg.chunk_size"},
		{"zero grace", func(c *AppConfig) { c.FFmpeg.KillGrace = 0 }, "ffmpeg.kill_grace"},
		{"bad origin", func(c *AppConfig) { c.CORS.AllowedOrigins = []string{"ftp://x.example"} }, "cors.allowed_origins"},
		{"bad extension id", func(c *AppConfig) { c.CORS.ExtensionIDs = []string{"chrome-extension://x"} }, "cors.extension_ids"},
		{"bad cidr", func(c *AppConfig) { c.Outbound.AllowCIDRs = []string{"nope"} }, "outbound.allow_cidrs"},
		{"bad exporter", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, "telemetry.exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.FFmpeg.FFprobeBin = "ffprobe"
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	cfg := Defaults()
	cfg.FFmpeg.FFprobeBin = "ffprobe"
	assert.NoError(t, Validate(cfg))
}
