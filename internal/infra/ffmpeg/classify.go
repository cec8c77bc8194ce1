// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import "strings"

// Error classes used as metric labels.
const (
	ClassConnectReset = "stream_connect_reset"
	ClassIOError      = "io_error"
	ClassHTTPDenied   = "http_denied"
	ClassNotFound     = "not_found"
	ClassInvalidInput = "invalid_input"
	ClassTimeout      = "timeout"
)

// ClassifyStderr maps one ffmpeg or ffprobe stderr line to an error class, or
// "" when the line carries no recognizable failure. Connection resets take
// precedence over generic I/O errors when both appear.
func ClassifyStderr(line string) string {
	s := strings.ToLower(line)

	switch {
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "broken pipe"):
		return ClassConnectReset
	case strings.Contains(s, "401 unauthorized"),
		strings.Contains(s, "403 forbidden"):
		return ClassHTTPDenied
	case strings.Contains(s, "404 not found"),
		strings.Contains(s, "no such file or directory"):
		return ClassNotFound
	case strings.Contains(s, "invalid data found when processing input"):
		return ClassInvalidInput
	case strings.Contains(s, "connection timed out"),
		strings.Contains(s, "operation timed out"):
		return ClassTimeout
	case strings.Contains(s, "input/output error"):
		return ClassIOError
	}
	return ""
}
