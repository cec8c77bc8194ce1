// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hls estimates the size and duration of HLS playlists.
package hls

import (
	"bufio"
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vidrelay/internal/log"
	"github.com/ManuGH/vidrelay/internal/metrics"
	"github.com/ManuGH/vidrelay/internal/platform/httpx"
	"github.com/ManuGH/vidrelay/internal/telemetry"
)

// Estimate is a best-effort playlist estimate. Nil fields are unknown.
type Estimate struct {
	SizeBytes   *int64
	DurationSec *float64
}

// Analyzer turns playlist text into an Estimate.
type Analyzer struct {
	client *http.Client
	logger zerolog.Logger
}

// NewAnalyzer returns an Analyzer whose playlist and segment fetches go
// through client.
func NewAnalyzer(client *http.Client, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		logger: logger.With().Str(xglog.FieldComponent, "hls").Logger(),
	}
}

// EstimateURL fetches the playlist at manifestURL and analyzes it. Anything
// other than a 200 response yields (unknown, unknown).
func (a *Analyzer) EstimateURL(ctx context.Context, manifestURL string, headers map[string]string) Estimate {
	body, err := httpx.GetBody(ctx, a.client, manifestURL, headers)
	if err != nil {
		a.logger.Debug().Err(err).
			Str(xglog.FieldEvent, "hls.fetch_failed").
			Str(xglog.FieldManifestURL, manifestURL).
			Msg("playlist fetch failed")
		metrics.RecordManifestEstimate("hls", "fetch_failed")
		return Estimate{}
	}
	return a.Analyze(ctx, string(body), manifestURL, headers)
}

// Analyze scans playlist text in document order.
//
// The size comes from the first tier that applies:
//   - no accumulated duration: (unknown, unknown)
//   - a stream-level BANDWIDTH (the last one wins): floor(bandwidth*duration/8)
//   - a first segment: its Content-Length from one HEAD request, unknown if 0
//   - otherwise unknown, with the duration still reported
func (a *Analyzer) Analyze(ctx context.Context, body, manifestURL string, headers map[string]string) Estimate {
	ctx, span := telemetry.Tracer("vidrelay/hls").Start(ctx, "hls.analyze")
	defer span.End()
	span.SetAttributes(telemetry.AssetAttributes("HLS", manifestURL)...)

	logger := a.logger.With().Str(xglog.FieldManifestURL, manifestURL).Logger()
	p, err := scan(body, manifestURL)
	if err != nil {
		logger.Debug().Err(err).Str(xglog.FieldEvent, "hls.scan_failed").Msg("playlist could not be read completely")
		metrics.RecordManifestEstimate("hls", "scan_failed")
		telemetry.RecordError(span, err, "scan_failed")
		return Estimate{}
	}
	span.SetAttributes(telemetry.SegmentCountAttribute(p.segments))

	est, outcome := a.estimate(ctx, p, headers, logger)
	metrics.RecordManifestEstimate("hls", outcome)
	span.SetAttributes(telemetry.EstimateAttributes(est.SizeBytes, est.DurationSec)...)
	logger.Debug().
		Str(xglog.FieldEvent, "hls.estimated").
		Str("outcome", outcome).
		Int("segments", p.segments).
		Int64("bandwidth", p.bandwidth).
		Msg("hls estimate")
	return est
}

func (a *Analyzer) estimate(ctx context.Context, p playlist, headers map[string]string, logger zerolog.Logger) (Estimate, string) {
	if p.total.Sign() == 0 {
		return Estimate{}, "unknown"
	}

	dur, _ := p.total.Float64()
	est := Estimate{DurationSec: &dur}

	if p.bandwidth > 0 {
		size, ok := floorBytes(p.bandwidth, p.total)
		if !ok {
			logger.Debug().
				Str(xglog.FieldEvent, "hls.size_overflow").
				Int64("bandwidth", p.bandwidth).
				Msg("bandwidth estimate does not fit in int64")
			return est, "overflow"
		}
		est.SizeBytes = &size
		return est, "bandwidth"
	}

	if p.firstSegment != "" && p.firstDuration > 0 {
		n, err := httpx.ContentLength(ctx, a.client, p.firstSegment, headers)
		if err != nil {
			logger.Debug().Err(err).
				Str(xglog.FieldEvent, "hls.segment_failed").
				Str(xglog.FieldSegmentURL, p.firstSegment).
				Msg("first segment HEAD failed")
			return est, "segment_failed"
		}
		if n > 0 {
			est.SizeBytes = &n
		}
		return est, "segment_head"
	}

	return est, "duration_only"
}

// floorBytes computes floor(bandwidth*duration/8) exactly. It reports false
// when the result does not fit in an int64.
func floorBytes(bandwidth int64, duration *big.Rat) (int64, bool) {
	r := new(big.Rat).Mul(new(big.Rat).SetInt64(bandwidth), duration)
	r.Quo(r, big.NewRat(8, 1))
	q := new(big.Int).Quo(r.Num(), r.Denom())
	if !q.IsInt64() {
		return 0, false
	}
	return q.Int64(), true
}

type playlist struct {
	bandwidth     int64
	total         *big.Rat
	segments      int
	firstSegment  string
	firstDuration float64
}

var bandwidthRe = regexp.MustCompile(`(?:^|[:,])BANDWIDTH=(\d+)`)

// scan accumulates durations as exact rationals so the sum does not depend
// on segment order.
func scan(body, manifestURL string) (playlist, error) {
	p := playlist{total: new(big.Rat)}
	base, baseErr := url.Parse(manifestURL)

	awaitingURI := false
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
			if m := bandwidthRe.FindStringSubmatch(strings.TrimPrefix(line, "#EXT-X-STREAM-INF")); m != nil {
				if b, err := strconv.ParseInt(m[1], 10, 64); err == nil {
					p.bandwidth = b
				}
			}

		case strings.HasPrefix(line, "#EXTINF:"):
			raw, secs, ok := parseExtinf(line)
			if !ok {
				continue
			}
			d, ok := new(big.Rat).SetString(raw)
			if !ok {
				continue
			}
			p.total.Add(p.total, d)
			p.segments++
			if p.segments == 1 {
				p.firstDuration = secs
				awaitingURI = true
			}

		case strings.HasPrefix(line, "#"):
			// other tags

		case awaitingURI:
			awaitingURI = false
			if baseErr != nil {
				continue
			}
			if ref, err := url.Parse(line); err == nil {
				p.firstSegment = base.ResolveReference(ref).String()
			}
		}
	}
	if err := sc.Err(); err != nil {
		return p, fmt.Errorf("scan playlist: %w", err)
	}
	return p, nil
}

// parseExtinf reads the duration from "#EXTINF:<duration>[,<title>]".
func parseExtinf(line string) (string, float64, bool) {
	raw := strings.TrimPrefix(line, "#EXTINF:")
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 || secs != secs || secs > 1e9 {
		return "", 0, false
	}
	return raw, secs, true
}
