package event

import (
	"time"

	"encmirror/internal/model"
)

// Kind names one push event type on the wire.
type Kind string

const (
	KindStateUpdate          Kind = "state_update"
	KindQueueSnapshot        Kind = "queue_snapshot"
	KindQueueDelta           Kind = "queue_delta"
	KindLogSnapshot          Kind = "log_snapshot"
	KindLogAppend            Kind = "log_append"
	KindCheckLogSnapshot     Kind = "check_log_snapshot"
	KindCheckLogAppend       Kind = "check_log_append"
	KindConsoleSnapshot      Kind = "console_snapshot"
	KindConsoleAppend        Kind = "console_append"
	KindEncodeProgressUpdate Kind = "encode_progress_update"
	KindProfileDelta         Kind = "profile_delta"
	KindAutoSelectDelta      Kind = "autoselect_delta"
	KindServiceSettingDelta  Kind = "service_setting_delta"
	KindDrcsDelta            Kind = "drcs_delta"
	KindOperationResult      Kind = "operation_result"
	KindCurrentLogFilePath   Kind = "current_log_file_path"
	KindSleepCancelNotice    Kind = "sleep_cancel_notice"
	KindServerInfoUpdate     Kind = "server_info_update"
	KindDiskInfoUpdate       Kind = "disk_info_update"
	KindCPUTopologyUpdate    Kind = "cpu_topology_update"
	KindSettingUpdate        Kind = "setting_update"
)

// Event is one push notification from the encode server. The set of
// implementations is closed; consumers switch on the concrete type.
type Event interface {
	Kind() Kind
	isEvent()
}

// UpdateType is the operation a delta applies to its collection.
type UpdateType string

const (
	UpdateAdd        UpdateType = "add"
	UpdateUpdate     UpdateType = "update"
	UpdateRemove     UpdateType = "remove"
	UpdateMove       UpdateType = "move"
	UpdateClear      UpdateType = "clear"
	UpdateRemoveLogo UpdateType = "remove_logo"
)

// StateUpdate replaces the scheduler status.
type StateUpdate struct {
	State model.State `json:"state"`
}

// QueueSnapshot replaces the whole queue.
type QueueSnapshot struct {
	Jobs []model.Job `json:"jobs"`
}

// QueueDelta changes one job. Add and Update carry Job; Remove and Move
// address the job by ID. Move relocates it to Position.
type QueueDelta struct {
	Type     UpdateType `json:"type"`
	ID       int64      `json:"id,omitempty"`
	Position int        `json:"position,omitempty"`
	Job      *model.Job `json:"job,omitempty"`
}

// TargetID returns the job id the delta addresses.
func (d QueueDelta) TargetID() int64 {
	if d.Job != nil && d.Job.ID != 0 {
		return d.Job.ID
	}
	return d.ID
}

// LogSnapshot replaces the encode history, oldest first.
type LogSnapshot struct {
	Items []model.LogItem `json:"items"`
}

// LogAppend adds one finished encode to the history.
type LogAppend struct {
	Item model.LogItem `json:"item"`
}

// CheckLogSnapshot replaces the check history, oldest first.
type CheckLogSnapshot struct {
	Items []model.CheckLogItem `json:"items"`
}

// CheckLogAppend adds one finished check.
type CheckLogAppend struct {
	Item model.CheckLogItem `json:"item"`
}

// ConsoleSnapshot replaces the text of one console slot.
type ConsoleSnapshot struct {
	Slot  int      `json:"slot"`
	Lines []string `json:"lines"`
}

// ConsoleAppend carries raw console output bytes for one slot, encoded in the
// server's code page. Lines end with "\n"; "\r" redraws the current line.
type ConsoleAppend struct {
	Slot int    `json:"slot"`
	Data []byte `json:"data"`
}

// EncodeProgressUpdate reports the live phase of one slot.
type EncodeProgressUpdate struct {
	Slot  int               `json:"slot"`
	State model.EncodeState `json:"state"`
}

// ProfileDelta changes the profile map. Update with a NewName renames.
type ProfileDelta struct {
	Type    UpdateType     `json:"type"`
	Profile *model.Profile `json:"profile,omitempty"`
	NewName string         `json:"newName,omitempty"`
}

// AutoSelectDelta changes the auto-select map. Update with a NewName renames.
type AutoSelectDelta struct {
	Type       UpdateType        `json:"type"`
	AutoSelect *model.AutoSelect `json:"autoSelect,omitempty"`
	NewName    string            `json:"newName,omitempty"`
}

// ServiceSettingDelta changes the service map. RemoveLogo drops the logo at
// LogoIndex from the addressed service.
type ServiceSettingDelta struct {
	Type      UpdateType            `json:"type"`
	ServiceID int                   `json:"serviceId,omitempty"`
	Data      *model.ServiceSetting `json:"data,omitempty"`
	LogoIndex int                   `json:"logoIndex,omitempty"`
}

// DrcsDelta changes the DRCS map. Either Image or Images is set.
type DrcsDelta struct {
	Type   UpdateType        `json:"type"`
	Image  *model.DrcsImage  `json:"image,omitempty"`
	Images []model.DrcsImage `json:"images,omitempty"`
}

// OperationResult reports the outcome of a command the server executed.
type OperationResult struct {
	Result model.OperationResult `json:"result"`
	Time   time.Time             `json:"time"`
}

// CurrentLogFilePath names the log file of the encode in progress.
type CurrentLogFilePath struct {
	Path string `json:"path"`
}

// SleepCancelNotice announces a pending post-queue power action the user may
// still cancel.
type SleepCancelNotice struct {
	Finish model.FinishSetting `json:"finish"`
}

// ServerInfoUpdate replaces host information.
type ServerInfoUpdate struct {
	Info model.ServerInfo `json:"info"`
}

// DiskInfoUpdate replaces the server's volume list.
type DiskInfoUpdate struct {
	Disks []model.DiskItem `json:"disks"`
}

// CPUTopologyUpdate replaces the processor layout.
type CPUTopologyUpdate struct {
	Topology model.CPUTopology `json:"topology"`
}

// SettingUpdate replaces the global configuration.
type SettingUpdate struct {
	Setting model.Setting `json:"setting"`
}

func (StateUpdate) Kind() Kind          { return KindStateUpdate }
func (QueueSnapshot) Kind() Kind        { return KindQueueSnapshot }
func (QueueDelta) Kind() Kind           { return KindQueueDelta }
func (LogSnapshot) Kind() Kind          { return KindLogSnapshot }
func (LogAppend) Kind() Kind            { return KindLogAppend }
func (CheckLogSnapshot) Kind() Kind     { return KindCheckLogSnapshot }
func (CheckLogAppend) Kind() Kind       { return KindCheckLogAppend }
func (ConsoleSnapshot) Kind() Kind      { return KindConsoleSnapshot }
func (ConsoleAppend) Kind() Kind        { return KindConsoleAppend }
func (EncodeProgressUpdate) Kind() Kind { return KindEncodeProgressUpdate }
func (ProfileDelta) Kind() Kind         { return KindProfileDelta }
func (AutoSelectDelta) Kind() Kind      { return KindAutoSelectDelta }
func (ServiceSettingDelta) Kind() Kind  { return KindServiceSettingDelta }
func (DrcsDelta) Kind() Kind            { return KindDrcsDelta }
func (OperationResult) Kind() Kind      { return KindOperationResult }
func (CurrentLogFilePath) Kind() Kind   { return KindCurrentLogFilePath }
func (SleepCancelNotice) Kind() Kind    { return KindSleepCancelNotice }
func (ServerInfoUpdate) Kind() Kind     { return KindServerInfoUpdate }
func (DiskInfoUpdate) Kind() Kind       { return KindDiskInfoUpdate }
func (CPUTopologyUpdate) Kind() Kind    { return KindCPUTopologyUpdate }
func (SettingUpdate) Kind() Kind        { return KindSettingUpdate }

func (StateUpdate) isEvent()          {}
func (QueueSnapshot) isEvent()        {}
func (QueueDelta) isEvent()           {}
func (LogSnapshot) isEvent()          {}
func (LogAppend) isEvent()            {}
func (CheckLogSnapshot) isEvent()     {}
func (CheckLogAppend) isEvent()       {}
func (ConsoleSnapshot) isEvent()      {}
func (ConsoleAppend) isEvent()        {}
func (EncodeProgressUpdate) isEvent() {}
func (ProfileDelta) isEvent()         {}
func (AutoSelectDelta) isEvent()      {}
func (ServiceSettingDelta) isEvent()  {}
func (DrcsDelta) isEvent()            {}
func (OperationResult) isEvent()      {}
func (CurrentLogFilePath) isEvent()   {}
func (SleepCancelNotice) isEvent()    {}
func (ServerInfoUpdate) isEvent()     {}
func (DiskInfoUpdate) isEvent()       {}
func (CPUTopologyUpdate) isEvent()    {}
func (SettingUpdate) isEvent()        {}

// All returns every image the delta carries, single image first.
func (d DrcsDelta) All() []model.DrcsImage {
	out := make([]model.DrcsImage, 0, len(d.Images)+1)
	if d.Image != nil {
		out = append(out, *d.Image)
	}
	return append(out, d.Images...)
}
