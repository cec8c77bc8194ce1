// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import "strings"

// Kind selects which path produces the size of an asset.
type Kind string

const (
	KindProgressive Kind = "progressive"
	KindHLS         Kind = "hls"
	KindDASH        Kind = "dash"
)

// ParseKind maps a request type hint to a Kind. Matching is
// case-insensitive; anything that is not HLS or DASH (including "" and
// container hints such as "MP4") is progressive.
func ParseKind(hint string) Kind {
	switch strings.ToUpper(strings.TrimSpace(hint)) {
	case "HLS":
		return KindHLS
	case "DASH":
		return KindDASH
	default:
		return KindProgressive
	}
}

// Manifest reports whether the kind is a streaming manifest.
func (k Kind) Manifest() bool {
	return k == KindHLS || k == KindDASH
}
