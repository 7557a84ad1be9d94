package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"encmirror/internal/api"
	"encmirror/internal/config"
	"encmirror/internal/logging"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("GET /api/snapshot", srv.handleSnapshot)
	mux.HandleFunc("GET /api/system", srv.handleSystem)
	mux.HandleFunc("GET /api/queue", srv.handleQueue)
	mux.HandleFunc("GET /api/queue/changes", srv.handleQueueChanges)
	mux.HandleFunc("GET /api/queue/{id}", srv.handleQueueItem)
	mux.HandleFunc("GET /api/messages/changes", srv.handleMessageChanges)
	mux.HandleFunc("GET /api/messages/latest", srv.handleMessageLatest)
	mux.HandleFunc("GET /api/console", srv.handleConsole)
	mux.HandleFunc("GET /api/console/{slot}", srv.handleConsoleSlot)
	mux.HandleFunc("GET /api/logs/encode", srv.handleEncodeLog)
	mux.HandleFunc("GET /api/logs/encode/page", srv.handleEncodeLogPage)
	mux.HandleFunc("GET /api/logs/check", srv.handleCheckLog)
	mux.HandleFunc("GET /api/logs/check/page", srv.handleCheckLogPage)
	mux.HandleFunc("GET /api/profiles", srv.handleProfiles)
	mux.HandleFunc("GET /api/autoselect", srv.handleAutoSelect)
	mux.HandleFunc("GET /api/services", srv.handleServices)
	mux.HandleFunc("GET /api/drcs", srv.handleDrcs)
	mux.HandleFunc("GET /api/settings", srv.handleSettings)
	mux.HandleFunc("GET /api/info/disks", srv.handleDisks)
	mux.HandleFunc("POST /api/preview/sessions", srv.handlePreviewCreate)
	mux.HandleFunc("GET /api/preview/sessions/{id}", srv.handlePreviewInfo)
	mux.HandleFunc("GET /api/preview/sessions/{id}/frame", srv.handlePreviewFrame)
	mux.HandleFunc("DELETE /api/preview/sessions/{id}", srv.handlePreviewRemove)
	mux.HandleFunc("POST /api/commands/{verb}", srv.handleCommand)
	mux.HandleFunc("/api/", srv.handleNotFound)

	srv.handler = authMiddleware(cfg.Paths.APIToken, gzhttp.GzipHandler(mux))
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Message long-polls hold the response open for up to
		// messageWaitLimit.
		WriteTimeout: messageWaitLimit + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server, listener := s.server, s.listener
	s.server, s.listener = nil, nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

// address reports the bound listener address, or the configured bind when
// not listening.
func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "no such endpoint: "+r.Method+" "+r.URL.Path)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
