// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ManuGH/vidrelay/internal/config"
	"github.com/ManuGH/vidrelay/internal/daemon"
	"github.com/ManuGH/vidrelay/internal/health"
	xglog "github.com/ManuGH/vidrelay/internal/log"
	"github.com/ManuGH/vidrelay/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading VIDRELAY_* variables")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "vidrelay",
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	if err := loadEnvFile(*envFile); err != nil {
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "config.env_file_failed").Str("path", *envFile).Msg("failed to load env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "vidrelay",
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("config_source", source).
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.ListenAddr).
		Msg("starting vidrelay")

	if err := health.PerformStartupChecks(ctx,
		health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin),
		health.NewBinaryChecker("ffprobe", cfg.FFmpeg.FFprobeBin),
	); err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "startup.check_failed").
			Msg("Startup checks failed. Install ffmpeg or set VIDRELAY_FFMPEG_BIN / VIDRELAY_FFPROBE_BIN.")
	}

	app, err := daemon.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "daemon.bootstrap_failed").Msg("failed to build daemon")
	}
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}

// loadEnvFile loads dotenv variables without overriding the real
// environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
