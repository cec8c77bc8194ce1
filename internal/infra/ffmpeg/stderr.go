// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bufio"
	"io"

	"github.com/rs/zerolog"
)

// DrainStderr reads r line by line until EOF, keeping each line in ring and
// forwarding it to the debug log. onClass is called once per classified line
// and may be nil. Callers run it on its own goroutine and must wait for it to
// return before calling cmd.Wait.
func DrainStderr(r io.Reader, ring *RingBuffer, logger zerolog.Logger, onClass func(class string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 256*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if ring != nil {
			ring.Add(line)
		}
		logger.Debug().Str("stderr", line).Msg("ffmpeg")
		if onClass != nil {
			if class := ClassifyStderr(line); class != "" {
				onClass(class)
			}
		}
	}
	// Keep the pipe drained if the scanner stopped on an oversized line.
	_, _ = io.Copy(io.Discard, r)
}
