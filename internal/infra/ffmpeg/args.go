// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg holds the pieces shared by every ffmpeg and ffprobe
// invocation: header forwarding, stderr capture and error classification.
package ffmpeg

import (
	"sort"
	"strings"
)

// HeaderArgs renders caller-supplied HTTP headers as an ffmpeg -headers
// option. Each header is terminated by CRLF. Keys are sorted so the argument
// vector is deterministic. Nil or empty input yields no arguments.
func HeaderArgs(headers map[string]string) []string {
	if len(headers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
		b.WriteString("\r\n")
	}
	return []string{"-headers", b.String()}
}

// ValidHeader reports whether a header pair can be forwarded. CR and LF would
// let a caller inject extra header lines, and keys must be non-empty tokens.
func ValidHeader(key, value string) bool {
	if strings.TrimSpace(key) == "" {
		return false
	}
	if strings.ContainsAny(key, "\r\n: ") || strings.ContainsAny(value, "\r\n") {
		return false
	}
	return true
}
