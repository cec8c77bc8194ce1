// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidrelay/internal/platform/httpx"
)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func newAnalyzer() *Analyzer {
	return NewAnalyzer(httpx.NewClient(2*time.Second), zerolog.Nop())
}

func TestAnalyze_BandwidthTier(t *testing.T) {
	body := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=1280x720
#EXTINF:10.0,
seg0.ts
#EXTINF:10.0,
seg1.ts
#EXTINF:5.5,
seg2.ts
#EXT-X-ENDLIST`

	got := newAnalyzer().Analyze(context.Background(), body, "http://127.0.0.1:1/live/index.m3u8", nil)

	want := Estimate{SizeBytes: i64(3_187_500), DurationSec: f64(25.5)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("estimate mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_LastBandwidthWins(t *testing.T) {
	body := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000
low.m3u8
#EXT-X-STREAM-INF:AVERAGE-BANDWIDTH=1500000,BANDWIDTH=2400000
high.m3u8
#EXTINF:4,
a.ts
#EXTINF:6,
b.ts`

	got := newAnalyzer().Analyze(context.Background(), body, "http://127.0.0.1:1/index.m3u8", nil)

	require.NotNil(t, got.SizeBytes)
	assert.EqualValues(t, 2_400_000*10/8, *got.SizeBytes)
	assert.InDelta(t, 10.0, *got.DurationSec, 1e-9)
}

func TestAnalyze_SegmentOrderDoesNotMatter(t *testing.T) {
	durations := []string{"0.1", "0.2", "0.3", "9.009", "4.004", "6.006"}
	build := func(ds []string) string {
		var b strings.Builder
		b.WriteString("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=7999999\n")
		for i, d := range ds {
			b.WriteString("#EXTINF:" + d + ",\n")
			b.WriteString("seg" + string(rune('a'+i)) + ".ts\n")
		}
		return b.String()
	}
	reversed := make([]string, len(durations))
	for i, d := range durations {
		reversed[len(durations)-1-i] = d
	}

	a := newAnalyzer()
	fwd := a.Analyze(context.Background(), build(durations), "http://127.0.0.1:1/x.m3u8", nil)
	rev := a.Analyze(context.Background(), build(reversed), "http://127.0.0.1:1/x.m3u8", nil)

	require.NotNil(t, fwd.SizeBytes)
	assert.Equal(t, *fwd.SizeBytes, *rev.SizeBytes)
	// floor(7999999 * 19.619 / 8)
	assert.EqualValues(t, 19_618_997, *fwd.SizeBytes)
}

func TestAnalyze_NoDurationIsUnknown(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"master only":    "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=500000\nlow.m3u8\n",
		"zero durations": "#EXTM3U\n#EXTINF:0,\na.ts\n#EXTINF:0.0,\nb.ts\n",
		"only malformed": "#EXTM3U\n#EXTINF:abc,\na.ts\n#EXTINF:,\nb.ts\n",
		"not a playlist": "<html>nope</html>",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			got := newAnalyzer().Analyze(context.Background(), body, "http://127.0.0.1:1/x.m3u8", nil)
			assert.Equal(t, Estimate{}, got)
		})
	}
}

func TestAnalyze_MalformedDurationSkipped(t *testing.T) {
	body := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=80
#EXTINF:bogus,
bad.ts
#EXTINF:-3,
neg.ts
#EXTINF:2.5,Title with, commas
ok.ts`

	got := newAnalyzer().Analyze(context.Background(), body, "http://127.0.0.1:1/x.m3u8", nil)

	want := Estimate{SizeBytes: i64(25), DurationSec: f64(2.5)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("estimate mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_FirstSegmentHeadTier(t *testing.T) {
	var (
		mu      sync.Mutex
		heads   int
		gotPath string
		gotAuth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			mu.Lock()
			heads++
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			mu.Unlock()
			w.Header().Set("Content-Length", "524288")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	body := "#EXTM3U\n#EXTINF:6.0,\nchunks/first.ts\n#EXTINF:6.0,\nchunks/second.ts\n"
	got := newAnalyzer().Analyze(context.Background(), body, srv.URL+"/vod/index.m3u8", map[string]string{"Authorization": "Bearer z"})

	want := Estimate{SizeBytes: i64(524288), DurationSec: f64(12)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("estimate mismatch (-want +got):\n%s", diff)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, heads)
	assert.Equal(t, "/vod/chunks/first.ts", gotPath)
	assert.Equal(t, "Bearer z", gotAuth)
}

func TestAnalyze_FirstSegmentWithoutLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	body := "#EXTM3U\n#EXTINF:6.0,\na.ts\n"
	got := newAnalyzer().Analyze(context.Background(), body, srv.URL+"/index.m3u8", nil)

	assert.Nil(t, got.SizeBytes)
	require.NotNil(t, got.DurationSec)
	assert.InDelta(t, 6.0, *got.DurationSec, 1e-9)
}

func TestAnalyze_FirstSegmentHeadFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	body := "#EXTM3U\n#EXTINF:3,\na.ts\n#EXTINF:3,\nb.ts\n"
	got := newAnalyzer().Analyze(context.Background(), body, srv.URL+"/index.m3u8", nil)

	assert.Nil(t, got.SizeBytes)
	assert.InDelta(t, 6.0, *got.DurationSec, 1e-9)
}

func TestAnalyze_DurationOnly(t *testing.T) {
	// A trailing duration tag with no URI line leaves nothing to HEAD.
	body := "#EXTM3U\n#EXTINF:7.5,\n"
	got := newAnalyzer().Analyze(context.Background(), body, "http://127.0.0.1:1/x.m3u8", nil)

	want := Estimate{DurationSec: f64(7.5)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("estimate mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_BandwidthOverflowIsUnknown(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=9223372036854775807\n#EXTINF:10,\na.ts\n"

	got := newAnalyzer().Analyze(context.Background(), body, "http://127.0.0.1:1/index.m3u8", nil)

	want := Estimate{DurationSec: f64(10)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("estimate mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_OversizedLineIsUnknown(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1000\n#EXTINF:10,\na.ts\n#" + strings.Repeat("x", 2<<20) + "\n#EXTINF:10,\nb.ts\n"

	got := newAnalyzer().Analyze(context.Background(), body, "http://127.0.0.1:1/index.m3u8", nil)

	assert.Equal(t, Estimate{}, got)
}

func TestScan_FirstSegmentResolution(t *testing.T) {
	p, err := scan("#EXTM3U\n#EXTINF:2,\n#EXT-X-BYTERANGE:100@0\n../media/a.ts?x=1\n#EXTINF:2,\nb.ts\n",
		"https://cdn.example/path/to/index.m3u8")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/path/media/a.ts?x=1", p.firstSegment)
	assert.Equal(t, 2, p.segments)
	assert.InDelta(t, 2.0, p.firstDuration, 1e-9)
}

func TestEstimateURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.m3u8":
			_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=16\n#EXTINF:4,\na.ts\n"))
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	a := newAnalyzer()

	got := a.EstimateURL(context.Background(), srv.URL+"/ok.m3u8", nil)
	want := Estimate{SizeBytes: i64(8), DurationSec: f64(4)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("estimate mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Estimate{}, a.EstimateURL(context.Background(), srv.URL+"/denied.m3u8", nil))
}
