// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans across packages.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	AssetTypeKey    = "asset.type"
	AssetURLKey     = "asset.url"
	EstimateSizeKey = "estimate.size_bytes"
	EstimateDurKey  = "estimate.duration_sec"
	EstimateHasSize = "estimate.has_size"
	SegmentCountKey = "manifest.segments"

	SessionTaskIDKey = "session.task_id"
	SessionClientKey = "session.client"
	SessionPIDKey    = "session.pid"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// AssetAttributes describes the remote asset being probed or analyzed.
// An empty asset type is omitted.
func AssetAttributes(assetType, url string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if assetType != "" {
		attrs = append(attrs, attribute.String(AssetTypeKey, assetType))
	}
	return append(attrs, attribute.String(AssetURLKey, url))
}

// EstimateAttributes records an analyzer outcome. Unknown fields are marked
// through EstimateHasSize rather than a zero value.
func EstimateAttributes(size *int64, duration *float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(EstimateHasSize, size != nil)}
	if size != nil {
		attrs = append(attrs, attribute.Int64(EstimateSizeKey, *size))
	}
	if duration != nil {
		attrs = append(attrs, attribute.Float64(EstimateDurKey, *duration))
	}
	return attrs
}

// SegmentCountAttribute records how many segments a manifest scan produced.
func SegmentCountAttribute(n int) attribute.KeyValue {
	return attribute.Int(SegmentCountKey, n)
}

// SessionAttributes describes a transcode session.
func SessionAttributes(taskID, client string, pid int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionTaskIDKey, taskID),
		attribute.String(SessionClientKey, client),
		attribute.Int(SessionPIDKey, pid),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// RecordError marks span as failed with a classified error.
func RecordError(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(ErrorAttributes(errorType)...)
}
