// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTaskID    = "task_id"
	FieldClientID  = "client_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Media fields
	FieldAssetType   = "asset_type"
	FieldSourceURL   = "source_url"
	FieldManifestURL = "manifest_url"
	FieldSegmentURL  = "segment_url"
)
