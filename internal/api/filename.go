// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	defaultFilename = "video"
	maxFilenameRune = 60
)

// sanitizeFilename turns a client-supplied title into a download name:
// NFC-normalized, without control or path characters, spaces as hyphens,
// lower-cased, at most 60 runes, with a .mp4 extension.
func sanitizeFilename(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))

	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == maxFilenameRune {
			break
		}
		switch {
		case unicode.IsControl(r), strings.ContainsRune(`\/:*?"<>|`, r):
			continue
		case r == ' ':
			r = '-'
		}
		b.WriteRune(unicode.ToLower(r))
		n++
	}

	out := strings.Trim(b.String(), ".-")
	if out == "" {
		out = defaultFilename
	}
	return out + ".mp4"
}

// contentDisposition renders an attachment header with an RFC 5987
// filename* parameter.
func contentDisposition(filename string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(filename), "+", "%20")
	return "attachment; filename*=UTF-8''" + escaped
}
