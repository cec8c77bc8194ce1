// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the configured components together and runs the
// API and metrics listeners until shutdown.
package daemon

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/vidrelay/internal/admission"
	"github.com/ManuGH/vidrelay/internal/api"
	"github.com/ManuGH/vidrelay/internal/config"
	"github.com/ManuGH/vidrelay/internal/dash"
	"github.com/ManuGH/vidrelay/internal/health"
	"github.com/ManuGH/vidrelay/internal/hls"
	xglog "github.com/ManuGH/vidrelay/internal/log"
	"github.com/ManuGH/vidrelay/internal/platform/httpx"
	platformnet "github.com/ManuGH/vidrelay/internal/platform/net"
	"github.com/ManuGH/vidrelay/internal/probe"
	"github.com/ManuGH/vidrelay/internal/ratelimit"
	"github.com/ManuGH/vidrelay/internal/telemetry"
	"github.com/ManuGH/vidrelay/internal/transcode"
)

const serviceName = "vidrelay"

// Bootstrap builds every component from cfg and returns the App that runs
// them. Telemetry is started here and flushed by a shutdown hook.
func Bootstrap(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    "production",
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	client := httpx.NewInstrumentedClient(cfg.HTTP.FetchTimeout)
	prober := probe.NewProber(
		probe.Config{FFprobeBin: cfg.FFmpeg.FFprobeBin, Timeout: cfg.FFmpeg.ProbeTimeout},
		hls.NewAnalyzer(client, logger),
		dash.NewAnalyzer(client, logger),
		logger,
	)

	limits := ratelimit.DefaultConfig()
	limits.PerClientRate = rate.Limit(cfg.Limits.ProbeRPS)
	limits.PerClientBurst = cfg.Limits.ProbeBurst

	ctrl := admission.NewController(cfg.Limits.PerClientSessions)
	registry := transcode.NewRegistry()

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin))
	hm.RegisterChecker(health.NewBinaryChecker("ffprobe", cfg.FFmpeg.FFprobeBin))

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = serviceName
	}

	srv := api.New(api.Config{
		AllowedOrigins:    cfg.CORS.Origins(),
		RequestsPerMinute: cfg.Limits.APIRequestsPerMinute,
		TracingService:    tracingService,
		Outbound: platformnet.OutboundPolicy{
			Enabled:    cfg.Outbound.Enabled,
			AllowHosts: cfg.Outbound.AllowHosts,
			AllowCIDRs: cfg.Outbound.AllowCIDRs,
		},
	}, api.Deps{
		Prober:       prober,
		ProbeLimiter: ratelimit.New(limits),
		Admission:    ctrl,
		Transcoder: transcode.NewTranscoder(transcode.Config{
			FFmpegBin: cfg.FFmpeg.Bin,
			ChunkSize: cfg.FFmpeg.ChunkSize,
			KillGrace: cfg.FFmpeg.KillGrace,
		}, logger),
		Registry: registry,
		Health:   hm,
		Logger:   logger,
	})

	mgr, err := NewManager(DefaultServerConfig(cfg.ListenAddr, cfg.MetricsAddr), Deps{
		Logger:         logger,
		APIHandler:     srv.Handler(),
		MetricsHandler: promhttp.Handler(),
		OnAPIShutdown:  []func(){registry.CloseAll},
	})
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	mgr.RegisterShutdownHook("telemetry", tel.Shutdown)
	mgr.RegisterShutdownHook("sessions", func(context.Context) error {
		registry.CloseAll()
		return nil
	})

	logger.Info().
		Str(xglog.FieldEvent, "daemon.bootstrapped").
		Str("ffmpeg", cfg.FFmpeg.Bin).
		Str("ffprobe", cfg.FFmpeg.FFprobeBin).
		Int("per_client_sessions", cfg.Limits.PerClientSessions).
		Bool("outbound_policy", cfg.Outbound.Enabled).
		Bool("tracing", cfg.Telemetry.Enabled).
		Msg("components ready")

	return NewApp(logger, mgr, ctrl), nil
}
