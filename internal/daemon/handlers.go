package daemon

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"encmirror/internal/api"
	"encmirror/internal/deps"
	"encmirror/internal/logging"
	"encmirror/internal/messages"
	"encmirror/internal/model"
	"encmirror/internal/platform"
	"encmirror/internal/view"
)

// messageWaitLimit caps how long a message long-poll blocks.
const messageWaitLimit = 25 * time.Second

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	statuses := deps.CheckPreviewTools(s.daemon.cfg)
	out := make([]api.DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Purpose,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Path:        dep.Path,
			Detail:      dep.Detail,
		}
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		OK:           true,
		Connected:    s.daemon.Connected(),
		Version:      s.daemon.mirror.Version(),
		Dependencies: out,
	})
}

func (s *apiServer) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.mirror.Snapshot())
}

func (s *apiServer) handleSystem(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.SystemResponse{
		State:          snap.State,
		ServerInfo:     snap.ServerInfo,
		Disks:          snap.Disks,
		CPU:            snap.CPU,
		Finish:         snap.Finish,
		CurrentLogPath: snap.CurrentLogPath,
		LastOperation:  snap.LastOperation,
		Counters:       model.CountJobs(view.Visible(snap.Jobs)),
	})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	filter, err := api.ParseQueueFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, view.BuildQueueView(s.daemon.mirror.QueueState(), filter))
}

func (s *apiServer) handleQueueChanges(w http.ResponseWriter, r *http.Request) {
	since, err := api.ParseSince(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.mirror.QueryChanges(since))
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}
	job, ok := s.daemon.mirror.Job(id)
	if !ok || strings.TrimSpace(job.SrcPath) == "" {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, view.Item(job))
}

func (s *apiServer) handleMessageChanges(w http.ResponseWriter, r *http.Request) {
	query, err := api.ParseMessageQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hub := s.daemon.hub

	if archive := s.daemon.archive; archive != nil && query.Since+1 < hub.FirstID() && query.Since < hub.LastID() {
		items, err := archive.Since(r.Context(), query.Since, query.Filter, query.Max)
		if err != nil {
			s.logger.Warn("message archive read failed", logging.Error(err))
		} else {
			changes := messages.Changes{
				FromID:    query.Since,
				ToID:      hub.LastID(),
				Truncated: len(items) == query.Max,
				Items:     items,
			}
			if changes.Truncated {
				changes.ToID = items[len(items)-1].ID
			}
			s.writeJSON(w, http.StatusOK, changes)
			return
		}
	}

	wait := false
	if raw := strings.TrimSpace(r.URL.Query().Get("wait")); raw != "" {
		wait, _ = strconv.ParseBool(raw)
	}
	ctx := r.Context()
	if wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, messageWaitLimit)
		defer cancel()
	}
	changes, err := hub.Fetch(ctx, query.Since, query.Filter, query.Max, wait)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, changes)
}

func (s *apiServer) handleMessageLatest(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(r.URL.Query().Get("requestId"))
	if requestID == "" {
		s.writeError(w, http.StatusBadRequest, "requestId is required")
		return
	}
	msg, ok := s.daemon.hub.Latest(requestID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no message for request")
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *apiServer) handleConsole(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, view.BuildConsoleView(s.daemon.mirror.Consoles()))
}

func (s *apiServer) handleConsoleSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid console slot")
		return
	}
	state, ok := s.daemon.mirror.Console(slot)
	if !ok {
		s.writeError(w, http.StatusNotFound, "console slot not found")
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *apiServer) handleEncodeLog(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.EncodeLogResponse{Items: nonNil(snap.EncodeLog)})
}

func (s *apiServer) handleCheckLog(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.CheckLogResponse{Items: nonNil(snap.CheckLog)})
}

func (s *apiServer) handleEncodeLogPage(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := api.ParsePage(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.Paginate(snap.EncodeLog, offset, limit))
}

func (s *apiServer) handleCheckLogPage(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := api.ParsePage(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.Paginate(snap.CheckLog, offset, limit))
}

func (s *apiServer) handleProfiles(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.ProfilesResponse{Items: sortedValues(snap.Profiles)})
}

func (s *apiServer) handleAutoSelect(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.AutoSelectResponse{Items: sortedValues(snap.AutoSelects)})
}

func (s *apiServer) handleServices(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.ServicesResponse{Items: sortedValues(snap.Services)})
}

func (s *apiServer) handleDrcs(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.DrcsResponse{Items: sortedValues(snap.Drcs)})
}

func (s *apiServer) handleSettings(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.mirror.Snapshot()
	s.writeJSON(w, http.StatusOK, api.SettingsResponse{Setting: snap.Setting, Finish: snap.Finish})
}

// handleDisks reports local volumes through the platform probe, falling back
// to the figures the encode server pushed when the probe is unsupported.
func (s *apiServer) handleDisks(w http.ResponseWriter, _ *http.Request) {
	items, err := s.daemon.probe.Disks(s.daemon.cfg.Paths.DiskPaths)
	if errors.Is(err, platform.ErrUnsupported) {
		items, err = s.daemon.mirror.Snapshot().Disks, nil
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.DisksResponse{Items: nonNil(items)})
}

func sortedValues[K cmp.Ordered, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, key := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[key])
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
