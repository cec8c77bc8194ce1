// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	out := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestHTTPAttributes(t *testing.T) {
	m := attrMap(HTTPAttributes("POST", "/video_info", 200))
	require.Len(t, m, 3)
	assert.Equal(t, "POST", m[HTTPMethodKey].AsString())
	assert.Equal(t, "/video_info", m[HTTPRouteKey].AsString())
	assert.EqualValues(t, 200, m[HTTPStatusCodeKey].AsInt64())
}

func TestAssetAttributes(t *testing.T) {
	m := attrMap(AssetAttributes("", "https://cdn.example/a.mp4"))
	assert.Len(t, m, 1)
	assert.Equal(t, "https://cdn.example/a.mp4", m[AssetURLKey].AsString())

	m = attrMap(AssetAttributes("HLS", "https://cdn.example/index.m3u8"))
	assert.Equal(t, "HLS", m[AssetTypeKey].AsString())
}

func TestEstimateAttributes(t *testing.T) {
	m := attrMap(EstimateAttributes(nil, nil))
	assert.Len(t, m, 1)
	assert.False(t, m[EstimateHasSize].AsBool())

	size := int64(1250)
	dur := 12.5
	m = attrMap(EstimateAttributes(&size, &dur))
	assert.True(t, m[EstimateHasSize].AsBool())
	assert.EqualValues(t, 1250, m[EstimateSizeKey].AsInt64())
	assert.InDelta(t, 12.5, m[EstimateDurKey].AsFloat64(), 1e-9)
}

func TestSessionAttributes(t *testing.T) {
	m := attrMap(SessionAttributes("task-1", "10.0.0.1", 4242))
	assert.Equal(t, "task-1", m[SessionTaskIDKey].AsString())
	assert.Equal(t, "10.0.0.1", m[SessionClientKey].AsString())
	assert.EqualValues(t, 4242, m[SessionPIDKey].AsInt64())
}

func TestErrorAttributes(t *testing.T) {
	m := attrMap(ErrorAttributes("probe_failure"))
	assert.True(t, m[ErrorKey].AsBool())
	assert.Equal(t, "probe_failure", m[ErrorTypeKey].AsString())
}
