package api

import (
	"time"

	"encmirror/internal/event"
	"encmirror/internal/model"
)

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	OK           bool               `json:"ok"`
	Connected    bool               `json:"connected"`
	Version      uint64             `json:"version"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// SystemResponse summarizes the encode server's status.
type SystemResponse struct {
	State          model.State            `json:"state"`
	ServerInfo     model.ServerInfo       `json:"serverInfo"`
	Disks          []model.DiskItem       `json:"disks"`
	CPU            model.CPUTopology      `json:"cpu"`
	Finish         *model.FinishSetting   `json:"finish,omitempty"`
	CurrentLogPath string                 `json:"currentLogPath,omitempty"`
	LastOperation  *event.OperationResult `json:"lastOperation,omitempty"`
	Counters       model.Counters         `json:"counters"`
}

// SettingsResponse carries the global encode settings.
type SettingsResponse struct {
	Setting model.Setting        `json:"setting"`
	Finish  *model.FinishSetting `json:"finish,omitempty"`
}

// EncodeLogResponse lists encode history, newest first.
type EncodeLogResponse struct {
	Items []model.LogItem `json:"items"`
}

// CheckLogResponse lists check history, newest first.
type CheckLogResponse struct {
	Items []model.CheckLogItem `json:"items"`
}

// Page is one window of a history list. Total counts the whole list.
type Page[T any] struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Items  []T `json:"items"`
}

// Paginate cuts items[offset:offset+limit]. An offset past the end yields an
// empty page positioned at the end.
func Paginate[T any](items []T, offset, limit int) Page[T] {
	offset = min(max(offset, 0), len(items))
	end := min(offset+max(limit, 0), len(items))
	return Page[T]{
		Total:  len(items),
		Offset: offset,
		Limit:  limit,
		Items:  append(make([]T, 0, end-offset), items[offset:end]...),
	}
}

// ProfilesResponse lists encode profiles sorted by name.
type ProfilesResponse struct {
	Items []model.Profile `json:"items"`
}

// AutoSelectResponse lists profile auto-selection rules sorted by name.
type AutoSelectResponse struct {
	Items []model.AutoSelect `json:"items"`
}

// ServicesResponse lists per-service settings sorted by service id.
type ServicesResponse struct {
	Items []model.ServiceSetting `json:"items"`
}

// DrcsResponse lists DRCS glyph mappings sorted by MD5.
type DrcsResponse struct {
	Items []model.DrcsImage `json:"items"`
}

// DisksResponse lists local volume capacity.
type DisksResponse struct {
	Items []model.DiskItem `json:"items"`
}

// PreviewSessionRequest opens a frame preview session for a queue job.
type PreviewSessionRequest struct {
	QueueItemID int64 `json:"queueItemId"`
	ServiceID   int   `json:"serviceId,omitempty"`
}

// PreviewSession describes an open preview session.
type PreviewSession struct {
	SessionID  string    `json:"sessionId"`
	JobID      int64     `json:"jobId"`
	ServiceID  int       `json:"serviceId"`
	Path       string    `json:"path"`
	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"lastAccess"`
}

// CommandResponse acknowledges a forwarded command.
type CommandResponse struct {
	Verb      string `json:"verb"`
	RequestID string `json:"requestId"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PreviewRemoveResponse reports whether a session was closed.
type PreviewRemoveResponse struct {
	Removed bool `json:"removed"`
}
