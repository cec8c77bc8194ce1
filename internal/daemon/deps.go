// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ServerConfig holds listener settings. There is no write
// timeout: downloads stream for as long as the transcode runs.
type ServerConfig struct {
	ListenAddr        string
	MetricsAddr       string // empty disables the metrics listener
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration
}

// DefaultServerConfig returns listener settings for addr.
func DefaultServerConfig(listenAddr, metricsAddr string) ServerConfig {
	return ServerConfig{
		ListenAddr:        listenAddr,
		MetricsAddr:       metricsAddr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   15 * time.Second,
	}
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the API server
	APIHandler http.Handler

	// MetricsHandler is the HTTP handler for Prometheus metrics (if enabled)
	MetricsHandler http.Handler

	// OnAPIShutdown runs as soon as API shutdown begins, concurrently with
	// connection draining. Long-lived streams must be ended here or Shutdown
	// waits for them until its deadline.
	OnAPIShutdown []func()
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
