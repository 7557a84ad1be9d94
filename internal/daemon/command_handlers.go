package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"encmirror/internal/api"
	"encmirror/internal/event"
	"encmirror/internal/ingest"
	"encmirror/internal/logging"
)

// handleCommand forwards the request body to the encode server unchanged. The
// request id comes from the X-Request-ID header or a top-level "requestId"
// body field; one is generated when neither is present.
func (s *apiServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	verb, err := event.ParseVerb(r.PathValue("verb"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}

	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = bodyRequestID(body)
	}
	if requestID == "" {
		requestID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	cmd, err := event.NewCommand(verb, requestID, body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger := logging.WithContext(logging.WithRequestID(r.Context(), requestID), s.logger)
	if err := s.daemon.Forward(cmd); err != nil {
		if errors.Is(err, ingest.ErrNoCollaborator) {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logger.Warn("command forward failed", logging.String("verb", string(verb)), logging.Error(err))
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	logger.Info("command forwarded", logging.String("verb", string(verb)))
	s.writeJSON(w, http.StatusAccepted, api.CommandResponse{Verb: string(verb), RequestID: requestID})
}

func bodyRequestID(body []byte) string {
	var probe struct {
		RequestID string `json:"requestId"`
	}
	if len(body) == 0 || json.Unmarshal(body, &probe) != nil {
		return ""
	}
	return strings.TrimSpace(probe.RequestID)
}
