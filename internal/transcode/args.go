// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import "github.com/ManuGH/vidrelay/internal/infra/ffmpeg"

// Args builds the ffmpeg argument vector for one session: video is copied,
// audio is re-encoded to AAC, and the result is MPEG-TS on stdout.
func Args(sourceURL string, headers map[string]string) []string {
	args := []string{"-y", "-hide_banner"}
	args = append(args, ffmpeg.HeaderArgs(headers)...)
	return append(args,
		"-i", sourceURL,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
		"-f", "mpegts",
		"pipe:1",
	)
}
