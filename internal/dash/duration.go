// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dash

import (
	"regexp"
	"strconv"
)

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?`)

// ParseISODuration converts an ISO-8601 time duration of the form PT#H#M#S
// into seconds. Every component is optional and seconds may be fractional.
// A string that does not match yields 0, which callers treat as
// "no usable duration".
func ParseISODuration(s string) float64 {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	var total float64
	if m[1] != "" {
		h, _ := strconv.ParseFloat(m[1], 64)
		total += h * 3600
	}
	if m[2] != "" {
		mins, _ := strconv.ParseFloat(m[2], 64)
		total += mins * 60
	}
	if m[3] != "" {
		sec, _ := strconv.ParseFloat(m[3], 64)
		total += sec
	}
	return total
}
