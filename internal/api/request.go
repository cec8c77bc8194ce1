// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/ManuGH/vidrelay/internal/infra/ffmpeg"
)

const maxRequestBody = 1 << 20

var errInvalidRequest = errors.New("invalid request")

// DownloadRequest is the body of /video_info and /download. Size and
// DurationSec are accepted for clients that echo a previous info result; the
// server does not use them.
type DownloadRequest struct {
	URL         string            `json:"url"`
	Filename    *string           `json:"filename,omitempty"`
	Size        *int64            `json:"size,omitempty"`
	Type        *string           `json:"type,omitempty"`
	DurationSec *float64          `json:"duration_sec,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// ProgressRequest asks for several sessions at once.
type ProgressRequest struct {
	TaskIDs []string `json:"task_ids"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errInvalidRequest)
		}
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

// validate checks fields that reach ffmpeg argv.
func (req *DownloadRequest) validate() error {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return fmt.Errorf("%w: url is required", errInvalidRequest)
	}
	for k, v := range req.Headers {
		if !ffmpeg.ValidHeader(k, v) {
			return fmt.Errorf("%w: header %q is not forwardable", errInvalidRequest, k)
		}
	}
	return nil
}

func (req *DownloadRequest) typeHint() string {
	if req.Type == nil {
		return ""
	}
	return *req.Type
}

// clientID derives the admission identity from the connecting address.
// IPv4-mapped IPv6 addresses collapse onto their IPv4 form.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return strings.TrimPrefix(host, "::ffff:")
}
