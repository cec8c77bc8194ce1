// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ManuGH/vidrelay/internal/api/problem"
	xglog "github.com/ManuGH/vidrelay/internal/log"
	"github.com/ManuGH/vidrelay/internal/transcode"
)

const headerTaskID = "X-Task-Id"

// handleDownload streams a transcoded MP4 of the requested source.
//
// The request waits for a per-client admission permit before anything is
// spawned. The response status is committed only after ffmpeg produced its
// first chunk or exited cleanly, so early failures still surface as a 502.
// Once streaming, a client disconnect ends the session without a response.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readDownloadRequest(w, r)
	if !ok {
		return
	}

	client := clientID(r)
	taskID := uuid.NewString()
	ctx := xglog.ContextWithTaskID(r.Context(), taskID)
	logger := xglog.WithContext(ctx, s.logger).With().Str(xglog.FieldClientID, client).Logger()

	if err := s.admission.Acquire(ctx, client); err != nil {
		logger.Debug().Err(err).Str(xglog.FieldEvent, "api.admission_abandoned").Msg("client left while queued")
		return
	}

	sess, err := s.transcoder.Start(ctx, transcode.Spec{
		TaskID:   taskID,
		ClientID: client,
		URL:      req.URL,
		Headers:  req.Headers,
		OnClose: func() {
			s.registry.Unregister(taskID)
			s.admission.Release(client)
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug().Err(err).Str(xglog.FieldEvent, "api.admission_abandoned").Msg("client left before ffmpeg was spawned")
			return
		}
		problem.Write(w, r, http.StatusBadGateway, "transcode/start_failed", "Bad Gateway", problem.CodeTranscodeStartFailed, "could not start transcoder", nil)
		return
	}
	s.registry.Register(sess)

	if err := sess.Peek(ctx); err != nil {
		_ = sess.Close()
		if errors.Is(err, transcode.ErrProcessExit) {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "api.transcode_failed").Msg("ffmpeg exited before producing output")
			problem.Write(w, r, http.StatusBadGateway, "transcode/start_failed", "Bad Gateway", problem.CodeTranscodeStartFailed, "transcoder exited before producing output", nil)
		}
		return
	}

	filename := defaultFilename
	if req.Filename != nil {
		filename = *req.Filename
	}
	h := w.Header()
	h.Set("Content-Disposition", contentDisposition(sanitizeFilename(filename)))
	h.Set("Content-Type", "video/mp4")
	h.Set("Cache-Control", "no-cache")
	h.Set(headerTaskID, taskID)
	w.WriteHeader(http.StatusOK)

	n := sess.Stream(ctx, w)
	logger.Debug().Str(xglog.FieldEvent, "api.download_done").Int64("bytes", n).Msg("download finished")
}
