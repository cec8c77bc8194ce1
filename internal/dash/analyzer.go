// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package dash estimates the size and duration of DASH presentations from
// their MPD document.
package dash

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"math"
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

// Estimate is a best-effort DASH estimate. DurationSec is always set (0 when
// the MPD declares no duration); a nil SizeBytes means unknown.
type Estimate struct {
	SizeBytes   *int64
	DurationSec *float64
}

func unknownSize(duration float64) Estimate {
	return Estimate{DurationSec: &duration}
}

// Analyzer fetches MPD documents and sums the sizes of their segments.
type Analyzer struct {
	client *http.Client
	logger zerolog.Logger
}

// NewAnalyzer returns an Analyzer that issues all fetches through client.
func NewAnalyzer(client *http.Client, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		logger: logger.With().Str(xglog.FieldComponent, "dash").Logger(),
	}
}

// EstimateURL fetches the MPD at mpdURL and estimates the presentation.
//
// Every Representation contributes its explicit SegmentURL entries plus at
// most one URL generated from its SegmentTemplate, so multi-segment templated
// presentations are undercounted. Segment sizes come from sequential HEAD
// requests; if any of them fails the size is unknown. No segments at all
// yields (0, unknown), as does a failed or malformed MPD.
func (a *Analyzer) EstimateURL(ctx context.Context, mpdURL string, headers map[string]string) Estimate {
	ctx, span := telemetry.Tracer("vidrelay/dash").Start(ctx, "dash.estimate")
	defer span.End()
	span.SetAttributes(telemetry.AssetAttributes("DASH", mpdURL)...)

	logger := a.logger.With().Str(xglog.FieldManifestURL, mpdURL).Logger()

	body, err := httpx.GetBody(ctx, a.client, mpdURL, headers)
	if err != nil {
		logger.Debug().Err(err).Str(xglog.FieldEvent, "dash.fetch_failed").Msg("mpd fetch failed")
		metrics.RecordManifestEstimate("dash", "fetch_failed")
		return unknownSize(0)
	}

	doc, err := parseMPD(body)
	if err != nil {
		logger.Debug().Err(err).Str(xglog.FieldEvent, "dash.parse_failed").Msg("mpd parse failed")
		metrics.RecordManifestEstimate("dash", "parse_failed")
		return unknownSize(0)
	}

	base, err := baseURL(mpdURL)
	if err != nil {
		logger.Debug().Err(err).Str(xglog.FieldEvent, "dash.parse_failed").Msg("invalid mpd url")
		metrics.RecordManifestEstimate("dash", "parse_failed")
		return unknownSize(0)
	}

	segments := doc.segmentURLs(base)
	span.SetAttributes(telemetry.SegmentCountAttribute(len(segments)))
	if len(segments) == 0 {
		logger.Debug().Str(xglog.FieldEvent, "dash.no_segments").Msg("mpd lists no segments, treating as live")
		metrics.RecordManifestEstimate("dash", "unknown")
		return unknownSize(0)
	}

	est := unknownSize(ParseISODuration(doc.MediaPresentationDuration))

	var total int64
	for _, seg := range segments {
		n, err := httpx.ContentLength(ctx, a.client, seg, headers)
		if err != nil {
			logger.Debug().Err(err).
				Str(xglog.FieldEvent, "dash.segment_failed").
				Str(xglog.FieldSegmentURL, seg).
				Msg("segment size unavailable, abandoning sum")
			metrics.RecordManifestEstimate("dash", "segment_failed")
			span.SetAttributes(telemetry.EstimateAttributes(est.SizeBytes, est.DurationSec)...)
			return est
		}
		if n > math.MaxInt64-total {
			logger.Debug().
				Str(xglog.FieldEvent, "dash.size_overflow").
				Str(xglog.FieldSegmentURL, seg).
				Msg("segment sum does not fit in int64, abandoning sum")
			metrics.RecordManifestEstimate("dash", "overflow")
			span.SetAttributes(telemetry.EstimateAttributes(est.SizeBytes, est.DurationSec)...)
			return est
		}
		total += n
	}

	est.SizeBytes = &total
	metrics.RecordManifestEstimate("dash", "segment_sum")
	span.SetAttributes(telemetry.EstimateAttributes(est.SizeBytes, est.DurationSec)...)
	logger.Debug().
		Str(xglog.FieldEvent, "dash.estimated").
		Int("segments", len(segments)).
		Int64("size_bytes", total).
		Float64("duration_sec", *est.DurationSec).
		Msg("dash estimate")
	return est
}

// baseURL cuts the MPD URL at its last slash, keeping the slash.
func baseURL(mpdURL string) (*url.URL, error) {
	i := strings.LastIndex(mpdURL, "/")
	if i < 0 {
		return nil, fmt.Errorf("mpd url %q has no path", mpdURL)
	}
	u, err := url.Parse(mpdURL[:i+1])
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("mpd url %q is not absolute", mpdURL)
	}
	return u, nil
}

func resolve(base *url.URL, ref string) (string, bool) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(r).String(), true
}

// The element types match on local names only, so both namespaced and
// bare MPDs decode.
type mpd struct {
	XMLName                   xml.Name `xml:"MPD"`
	MediaPresentationDuration string   `xml:"mediaPresentationDuration,attr"`
	Periods                   []period `xml:"Period"`
}

type period struct {
	AdaptationSets []adaptationSet `xml:"AdaptationSet"`
}

type adaptationSet struct {
	SegmentTemplate *segmentTemplate `xml:"SegmentTemplate"`
	Representations []representation `xml:"Representation"`
}

type representation struct {
	ID              string           `xml:"id,attr"`
	Bandwidth       string           `xml:"bandwidth,attr"`
	SegmentTemplate *segmentTemplate `xml:"SegmentTemplate"`
	SegmentList     *segmentList     `xml:"SegmentList"`
}

type segmentList struct {
	SegmentURLs []segmentURL `xml:"SegmentURL"`
}

type segmentURL struct {
	Media string `xml:"media,attr"`
}

type segmentTemplate struct {
	Media       string `xml:"media,attr"`
	Duration    string `xml:"duration,attr"`
	StartNumber string `xml:"startNumber,attr"`
}

func parseMPD(body []byte) (*mpd, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = true
	var doc mpd
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode mpd: %w", err)
	}
	return &doc, nil
}

// segmentURLs enumerates segment URLs in document order.
func (d *mpd) segmentURLs(base *url.URL) []string {
	var out []string
	for _, p := range d.Periods {
		for _, as := range p.AdaptationSets {
			for _, rep := range as.Representations {
				if rep.SegmentList != nil {
					for _, s := range rep.SegmentList.SegmentURLs {
						if s.Media == "" {
							continue
						}
						if u, ok := resolve(base, s.Media); ok {
							out = append(out, u)
						}
					}
				}

				tmpl := rep.SegmentTemplate
				if tmpl == nil {
					tmpl = as.SegmentTemplate
				}
				if media, ok := tmpl.representative(rep); ok {
					if u, ok := resolve(base, media); ok {
						out = append(out, u)
					}
				}
			}
		}
	}
	return out
}

var numberRe = regexp.MustCompile(`\$Number(%0(\d+)d)?\$`)

// representative expands the template for its first segment. Only templates
// with a positive duration and a $Number$ placeholder qualify.
func (t *segmentTemplate) representative(rep representation) (string, bool) {
	if t == nil || t.Media == "" {
		return "", false
	}
	dur, err := strconv.ParseInt(strings.TrimSpace(t.Duration), 10, 64)
	if err != nil || dur <= 0 {
		return "", false
	}
	if !numberRe.MatchString(t.Media) {
		return "", false
	}

	start := int64(1)
	if t.StartNumber != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(t.StartNumber), 10, 64)
		if err != nil {
			return "", false
		}
		start = n
	}

	media := numberRe.ReplaceAllStringFunc(t.Media, func(tok string) string {
		m := numberRe.FindStringSubmatch(tok)
		if m[2] != "" {
			width, _ := strconv.Atoi(m[2])
			return fmt.Sprintf("%0*d", width, start)
		}
		return strconv.FormatInt(start, 10)
	})
	media = strings.ReplaceAll(media, "$RepresentationID$", rep.ID)
	media = strings.ReplaceAll(media, "$Bandwidth$", rep.Bandwidth)
	media = strings.ReplaceAll(media, "$$", "$")
	return media, true
}
