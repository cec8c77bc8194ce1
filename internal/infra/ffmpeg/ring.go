// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"strings"
	"sync"
)

// RingBuffer keeps the last N stderr lines for diagnostics.
type RingBuffer struct {
	mu    sync.Mutex
	lines []string
	pos   int
	full  bool
}

// NewRingBuffer returns a buffer holding up to size lines.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{lines: make([]string, size)}
}

// Add appends a line, evicting the oldest when full.
func (r *RingBuffer) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % len(r.lines)
	if r.pos == 0 {
		r.full = true
	}
}

// Lines returns the buffered lines, oldest first.
func (r *RingBuffer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]string, r.pos)
		copy(out, r.lines[:r.pos])
		return out
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.pos:]...)
	return append(out, r.lines[:r.pos]...)
}

// Tail joins the buffered lines, truncated to at most max bytes from the end.
func (r *RingBuffer) Tail(max int) string {
	s := strings.Join(r.Lines(), "\n")
	if max > 0 && len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
