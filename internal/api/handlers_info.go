// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/vidrelay/internal/api/problem"
	xglog "github.com/ManuGH/vidrelay/internal/log"
	"github.com/ManuGH/vidrelay/internal/metrics"
	platformnet "github.com/ManuGH/vidrelay/internal/platform/net"
	"github.com/ManuGH/vidrelay/internal/probe"
)

// readDownloadRequest decodes and validates a DownloadRequest, writing the
// problem response itself on failure.
func (s *Server) readDownloadRequest(w http.ResponseWriter, r *http.Request) (*DownloadRequest, bool) {
	var req DownloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "request/invalid", "Bad Request", problem.CodeInvalidRequest, err.Error(), nil)
		return nil, false
	}
	if err := req.validate(); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "request/invalid", "Bad Request", problem.CodeInvalidRequest, err.Error(), nil)
		return nil, false
	}

	normalized, err := platformnet.ValidateOutboundURL(r.Context(), req.URL, s.cfg.Outbound)
	switch {
	case err == nil:
		req.URL = normalized
		return &req, true
	case errors.Is(err, platformnet.ErrOutboundNotAllowed):
		logger := s.loggerFor(r)
		logger.Warn().
			Str(xglog.FieldEvent, "api.url_rejected").
			Str(xglog.FieldSourceURL, platformnet.SanitizeURL(req.URL)).
			Msg("outbound url rejected by policy")
		problem.Write(w, r, http.StatusBadRequest, "request/url_not_allowed", "URL Not Allowed", problem.CodeURLNotAllowed, "url target is not allowed", nil)
	default:
		problem.Write(w, r, http.StatusBadRequest, "request/invalid", "Bad Request", problem.CodeInvalidRequest, "url must be an absolute http or https url", nil)
	}
	return nil, false
}

func (s *Server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readDownloadRequest(w, r)
	if !ok {
		return
	}
	kind := probe.ParseKind(req.typeHint())
	client := clientID(r)

	if s.probeLimiter != nil && !s.probeLimiter.Allow(client, string(kind)) {
		metrics.ProbeTotal.WithLabelValues(string(kind), "rate_limited").Inc()
		w.Header().Set("Retry-After", "1")
		problem.Write(w, r, http.StatusTooManyRequests, "probe/rate_limited", "Too Many Requests", problem.CodeRateLimited, "too many info requests", nil)
		return
	}

	res, err := s.prober.Probe(r.Context(), req.URL, req.Headers, kind)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, "probe/unavailable", "Bad Request", problem.CodeVideoInfoUnavailable, "could not determine video information", nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
