package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"encmirror/internal/api"
	"encmirror/internal/logging"
	"encmirror/internal/preview"
)

const maxJSONBody = 1 << 20

func (s *apiServer) handlePreviewCreate(w http.ResponseWriter, r *http.Request) {
	var req api.PreviewSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QueueItemID <= 0 {
		s.writeError(w, http.StatusBadRequest, "queueItemId is required")
		return
	}
	info, err := s.daemon.previews.Create(r.Context(), req.QueueItemID, req.ServiceID)
	if err != nil {
		s.writePreviewError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toPreviewSession(info))
}

func (s *apiServer) handlePreviewInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := s.daemon.previews.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, preview.ErrSessionNotFound.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toPreviewSession(info))
}

func (s *apiServer) handlePreviewFrame(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("pos"))
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "pos is required")
		return
	}
	pos, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid pos")
		return
	}
	id := r.PathValue("id")
	frame, err := s.daemon.previews.Frame(r.Context(), id, pos)
	if err != nil {
		s.writePreviewError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(frame); err != nil {
		s.logger.Debug("frame write failed",
			logging.String(logging.FieldSessionID, id),
			logging.Error(err),
		)
	}
}

func (s *apiServer) handlePreviewRemove(w http.ResponseWriter, r *http.Request) {
	removed := s.daemon.previews.Remove(r.PathValue("id"))
	s.writeJSON(w, http.StatusOK, api.PreviewRemoveResponse{Removed: removed})
}

func (s *apiServer) writePreviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, preview.ErrJobNotFound), errors.Is(err, preview.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, preview.ErrNoSourcePath),
		errors.Is(err, preview.ErrSourceMissing),
		errors.Is(err, preview.ErrNoServiceID),
		errors.Is(err, preview.ErrInvalidPosition):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Warn("preview request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func toPreviewSession(info preview.Info) api.PreviewSession {
	return api.PreviewSession{
		SessionID:  info.ID,
		JobID:      info.JobID,
		ServiceID:  info.ServiceID,
		Path:       info.Path,
		Created:    info.Created,
		LastAccess: info.LastAccess,
	}
}
