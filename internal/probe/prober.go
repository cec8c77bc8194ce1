// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe answers video info requests: ffprobe for duration (and size
// of progressive files), the manifest analyzers for HLS and DASH sizes.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vidrelay/internal/dash"
	"github.com/ManuGH/vidrelay/internal/hls"
	"github.com/ManuGH/vidrelay/internal/infra/ffmpeg"
	xglog "github.com/ManuGH/vidrelay/internal/log"
	"github.com/ManuGH/vidrelay/internal/metrics"
	"github.com/ManuGH/vidrelay/internal/telemetry"
)

// ErrProbeFailure means ffprobe exited abnormally or printed unusable output.
// No information can be derived from such a probe.
var ErrProbeFailure = errors.New("probe failed")

const (
	DefaultFFprobeBin = "ffprobe"
	DefaultTimeout    = 30 * time.Second

	stderrTailBytes = 2048
)

// HLSEstimator produces playlist size estimates.
type HLSEstimator interface {
	EstimateURL(ctx context.Context, manifestURL string, headers map[string]string) hls.Estimate
}

// DASHEstimator produces MPD size estimates.
type DASHEstimator interface {
	EstimateURL(ctx context.Context, mpdURL string, headers map[string]string) dash.Estimate
}

// Config configures ffprobe invocation.
type Config struct {
	FFprobeBin string
	Timeout    time.Duration
}

// Result is the normalized answer to an info request. Nil fields are unknown
// and serialize as null.
type Result struct {
	SizeBytes   *int64   `json:"size"`
	DurationSec *float64 `json:"duration_sec"`
}

// Prober runs info probes.
type Prober struct {
	bin     string
	timeout time.Duration
	hls     HLSEstimator
	dash    DASHEstimator
	logger  zerolog.Logger
}

// NewProber returns a Prober. Zero config fields take their defaults.
func NewProber(cfg Config, hlsEst HLSEstimator, dashEst DASHEstimator, logger zerolog.Logger) *Prober {
	if cfg.FFprobeBin == "" {
		cfg.FFprobeBin = DefaultFFprobeBin
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Prober{
		bin:     cfg.FFprobeBin,
		timeout: cfg.Timeout,
		hls:     hlsEst,
		dash:    dashEst,
		logger:  logger.With().Str(xglog.FieldComponent, "probe").Logger(),
	}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// Probe reports the size and duration of the asset at rawURL. ffprobe always
// runs and supplies the duration. For manifests the size comes from the
// matching analyzer, because ffprobe's format.size is the manifest's own
// byte count.
func (p *Prober) Probe(ctx context.Context, rawURL string, headers map[string]string, kind Kind) (Result, error) {
	start := time.Now()
	ctx, span := telemetry.Tracer("vidrelay/probe").Start(ctx, "probe.video_info")
	defer span.End()
	span.SetAttributes(telemetry.AssetAttributes(string(kind), rawURL)...)

	logger := xglog.WithContext(ctx, p.logger).With().
		Str(xglog.FieldAssetType, string(kind)).
		Str(xglog.FieldSourceURL, rawURL).
		Logger()

	out, err := p.runFFprobe(ctx, rawURL, headers, logger)
	if err != nil {
		telemetry.RecordError(span, err, "probe_failure")
		metrics.RecordProbe(string(kind), "failure", time.Since(start).Seconds())
		logger.Warn().Err(err).Str(xglog.FieldEvent, "probe.failed").Msg("ffprobe failed")
		return Result{}, err
	}

	res := Result{DurationSec: parseDuration(out.Format.Duration)}
	switch kind {
	case KindHLS:
		res.SizeBytes = p.hls.EstimateURL(ctx, rawURL, headers).SizeBytes
	case KindDASH:
		res.SizeBytes = p.dash.EstimateURL(ctx, rawURL, headers).SizeBytes
	default:
		res.SizeBytes = parseSize(out.Format.Size)
	}

	span.SetAttributes(telemetry.EstimateAttributes(res.SizeBytes, res.DurationSec)...)
	metrics.RecordProbe(string(kind), "ok", time.Since(start).Seconds())
	logger.Debug().
		Str(xglog.FieldEvent, "probe.done").
		Bool("has_size", res.SizeBytes != nil).
		Bool("has_duration", res.DurationSec != nil).
		Msg("video info probed")
	return res, nil
}

// Args builds the ffprobe argument vector.
func Args(rawURL string, headers map[string]string) []string {
	args := []string{
		"-v", "error",
		"-analyzeduration", "10M",
		"-probesize", "10M",
		"-of", "json",
	}
	args = append(args, ffmpeg.HeaderArgs(headers)...)
	return append(args,
		"-allowed_extensions", "ALL",
		"-show_entries", "format=duration,size,bit_rate",
		rawURL,
	)
}

func (p *Prober) runFFprobe(ctx context.Context, rawURL string, headers map[string]string, logger zerolog.Logger) (ffprobeOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// #nosec G204 - binary comes from config; the URL is a single argv entry
	cmd := exec.CommandContext(ctx, p.bin, Args(rawURL, headers)...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ffprobeOutput{}, fmt.Errorf("%w: stderr pipe: %v", ErrProbeFailure, err)
	}
	if err := cmd.Start(); err != nil {
		return ffprobeOutput{}, fmt.Errorf("%w: start %s: %v", ErrProbeFailure, p.bin, err)
	}

	ring := ffmpeg.NewRingBuffer(20)
	// stdout goes to a buffer, so draining stderr here cannot deadlock.
	ffmpeg.DrainStderr(stderr, ring, logger, metrics.IncFFmpegError)

	if err := cmd.Wait(); err != nil {
		return ffprobeOutput{}, fmt.Errorf("%w: %v (stderr: %s)", ErrProbeFailure, err, ring.Tail(stderrTailBytes))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return ffprobeOutput{}, fmt.Errorf("%w: decode output: %v", ErrProbeFailure, err)
	}
	return out, nil
}

// parseDuration reads ffprobe's format.duration. Empty, "N/A" and negative
// values are unknown.
func parseDuration(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "N/A" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseSize(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "N/A" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}
