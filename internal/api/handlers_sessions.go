// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/vidrelay/internal/api/problem"
	xglog "github.com/ManuGH/vidrelay/internal/log"
	platformnet "github.com/ManuGH/vidrelay/internal/platform/net"
	"github.com/ManuGH/vidrelay/internal/transcode"
)

const maxProgressIDs = 100

func redact(snap transcode.Snapshot) transcode.Snapshot {
	snap.SourceURL = platformnet.SanitizeURL(snap.SourceURL)
	return snap
}

// handleProgress reports the caller's live sessions by task id. Unknown,
// finished or foreign ids map to null.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "request/invalid", "Bad Request", problem.CodeInvalidRequest, err.Error(), nil)
		return
	}
	if len(req.TaskIDs) > maxProgressIDs {
		problem.Write(w, r, http.StatusBadRequest, "request/invalid", "Bad Request", problem.CodeInvalidRequest, "too many task ids", nil)
		return
	}

	client := clientID(r)
	out := make(map[string]*transcode.Snapshot, len(req.TaskIDs))
	for _, id := range req.TaskIDs {
		sess := s.registry.Owned(id, client)
		if sess == nil {
			out[id] = nil
			continue
		}
		snap := redact(sess.Snapshot())
		out[id] = &snap
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	list := s.registry.List(clientID(r))
	for i := range list {
		list[i] = redact(list[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"downloads": list})
}

func (s *Server) handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if !s.registry.Cancel(id, clientID(r)) {
		problem.Write(w, r, http.StatusNotFound, "session/not_found", "Not Found", problem.CodeSessionNotFound, "no live download with this task id", nil)
		return
	}
	logger := s.loggerFor(r)
	logger.Info().
		Str(xglog.FieldEvent, "api.download_canceled").
		Str(xglog.FieldTaskID, id).
		Msg("download canceled")
	w.WriteHeader(http.StatusNoContent)
}
