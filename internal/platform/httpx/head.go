// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// ErrUnexpectedStatus is returned when a fetch completes with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected http status")

// ErrBodyTooLarge is returned by GetBody when a document exceeds the size limit.
var ErrBodyTooLarge = errors.New("response body too large")

// maxBodyBytes bounds manifest bodies; real playlists and MPDs are far smaller.
const maxBodyBytes = 16 << 20

// ApplyHeaders copies caller-supplied request headers onto req.
func ApplyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// ContentLength issues a metadata-only HEAD request and returns the declared
// Content-Length. A missing header yields 0 with a nil error.
func ContentLength(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build HEAD request: %w", err)
	}
	ApplyHeaders(req, headers)

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("HEAD %s: %w: %d", rawURL, ErrUnexpectedStatus, resp.StatusCode)
	}

	raw := strings.TrimSpace(resp.Header.Get("Content-Length"))
	if raw == "" {
		if resp.ContentLength > 0 {
			return resp.ContentLength, nil
		}
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("HEAD %s: invalid Content-Length %q", rawURL, raw)
	}
	return n, nil
}

// GetBody fetches rawURL and returns its body. Only 200 OK is accepted, matching
// what manifest endpoints return for a complete document.
func GetBody(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET request: %w", err)
	}
	ApplyHeaders(req, headers)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GET %s: %w: %d", rawURL, ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("read body %s: %w: over %d bytes", rawURL, ErrBodyTooLarge, maxBodyBytes)
	}
	return body, nil
}
