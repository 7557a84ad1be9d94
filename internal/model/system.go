package model

import (
	"slices"
	"time"
)

// State is the encode server's scheduler status.
type State struct {
	Running          bool    `json:"running"`
	Suspend          bool    `json:"suspend"`
	ScheduledSuspend bool    `json:"scheduledSuspend"`
	ScheduledPause   bool    `json:"scheduledPause"`
	Progress         float64 `json:"progress"`
	EncoderSuspended []bool  `json:"encoderSuspended,omitempty"`
}

func (s State) Clone() State {
	s.EncoderSuspended = slices.Clone(s.EncoderSuspended)
	return s
}

// RunningLabel summarizes State for status displays.
func (s State) RunningLabel() string {
	switch {
	case !s.Running:
		return "Stopped"
	case s.Suspend || s.ScheduledSuspend:
		return "Paused"
	default:
		return "Encoding"
	}
}

// ServerInfo describes the encode server host.
type ServerInfo struct {
	HostName string `json:"hostName"`
	Version  string `json:"version,omitempty"`
	// CharSet is the Windows code page the server writes console output in.
	CharSet    int    `json:"charSet,omitempty"`
	MacAddress []byte `json:"macAddress,omitempty"`
}

func (s ServerInfo) Clone() ServerInfo {
	s.MacAddress = slices.Clone(s.MacAddress)
	return s
}

// DiskItem is free space on one of the server's volumes.
type DiskItem struct {
	Path     string `json:"path"`
	Capacity int64  `json:"capacity"`
	Free     int64  `json:"free"`
}

// CPUTopology describes the processor layout the scheduler assigns work to.
type CPUTopology struct {
	Sockets   int   `json:"sockets"`
	Cores     int   `json:"cores"`
	Threads   int   `json:"threads"`
	NUMANodes int   `json:"numaNodes"`
	Groups    []int `json:"groups,omitempty"`
}

func (c CPUTopology) Clone() CPUTopology {
	c.Groups = slices.Clone(c.Groups)
	return c
}

// OperationResult reports the outcome of a command the server executed.
type OperationResult struct {
	IsFailed   bool   `json:"isFailed"`
	Message    string `json:"message"`
	StackTrace string `json:"stackTrace,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	Source     string `json:"source,omitempty"`
	Page       string `json:"page,omitempty"`
	Action     string `json:"action,omitempty"`
}

// Resource is the CPU/HDD/GPU load a console slot is currently charging.
type Resource struct {
	CPU int `json:"cpu"`
	HDD int `json:"hdd"`
	GPU int `json:"gpu"`
}

// EncodeState is the live phase of one worker slot.
type EncodeState struct {
	ConsoleID int      `json:"consoleId"`
	Phase     string   `json:"phase"`
	Resource  Resource `json:"resource"`
}

// LogItem is one finished encode in the server's history.
type LogItem struct {
	SrcPath      string    `json:"srcPath"`
	OutPath      []string  `json:"outPath,omitempty"`
	Success      bool      `json:"success"`
	Reason       string    `json:"reason,omitempty"`
	ServiceName  string    `json:"serviceName,omitempty"`
	ProfileName  string    `json:"profileName,omitempty"`
	EncodeStart  time.Time `json:"encodeStart"`
	EncodeFinish time.Time `json:"encodeFinish"`
	SrcFileSize  int64     `json:"srcFileSize,omitempty"`
	OutFileSize  int64     `json:"outFileSize,omitempty"`
}

func (l LogItem) Clone() LogItem {
	l.OutPath = slices.Clone(l.OutPath)
	return l
}

// CheckLogItem is one finished CM or DRCS check.
type CheckLogItem struct {
	Type        ProcMode  `json:"type"`
	SrcPath     string    `json:"srcPath"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason,omitempty"`
	ServiceName string    `json:"serviceName,omitempty"`
	CheckStart  time.Time `json:"checkStart"`
	CheckFinish time.Time `json:"checkFinish"`
}

// CloneLogs deep-copies an encode log list.
func CloneLogs(in []LogItem) []LogItem {
	if in == nil {
		return nil
	}
	out := make([]LogItem, len(in))
	for i, item := range in {
		out[i] = item.Clone()
	}
	return out
}

// ConsoleState is a copy of one console slot.
type ConsoleState struct {
	Slot      int      `json:"slot"`
	Lines     []string `json:"lines"`
	Phase     string   `json:"phase,omitempty"`
	Resource  Resource `json:"resource"`
	Suspended bool     `json:"suspended"`
}
