package model

import (
	"slices"
	"strings"
	"time"
)

// JobState is the processing state of a queue job.
type JobState string

const (
	StateQueued      JobState = "Queued"
	StateEncoding    JobState = "Encoding"
	StateLogoPending JobState = "LogoPending"
	StateComplete    JobState = "Complete"
	StateFailed      JobState = "Failed"
	StatePreFailed   JobState = "PreFailed"
	StateCanceled    JobState = "Canceled"
)

var allStates = []JobState{
	StateQueued,
	StateEncoding,
	StateLogoPending,
	StateComplete,
	StateFailed,
	StatePreFailed,
	StateCanceled,
}

// AllStates returns every known job state in display order.
func AllStates() []JobState {
	return slices.Clone(allStates)
}

// ParseState resolves a state name case-insensitively. "Queue" is accepted as
// an alias of Queued.
func ParseState(value string) (JobState, bool) {
	trimmed := strings.TrimSpace(value)
	if strings.EqualFold(trimmed, "queue") {
		return StateQueued, true
	}
	for _, s := range allStates {
		if strings.EqualFold(trimmed, string(s)) {
			return s, true
		}
	}
	return "", false
}

// ProcMode is the kind of processing a job performs.
type ProcMode string

const (
	ModeBatch     ProcMode = "Batch"
	ModeAutoBatch ProcMode = "AutoBatch"
	ModeTest      ProcMode = "Test"
	ModeDrcsCheck ProcMode = "DrcsCheck"
	ModeCMCheck   ProcMode = "CMCheck"
)

// Genre is one EPG genre classification attached to a recording.
type Genre struct {
	Space  int `json:"space"`
	Level1 int `json:"level1"`
	Level2 int `json:"level2"`
}

// Job is one queue item as reported by the encode server. The zero time
// means "unset" for every timestamp field.
type Job struct {
	ID           int64     `json:"id"`
	Mode         ProcMode  `json:"mode,omitempty"`
	State        JobState  `json:"state"`
	Priority     int       `json:"priority"`
	SrcPath      string    `json:"srcPath"`
	DirName      string    `json:"dirName,omitempty"`
	FileName     string    `json:"fileName,omitempty"`
	DstPath      string    `json:"dstPath,omitempty"`
	ServiceID    int       `json:"serviceId,omitempty"`
	ServiceName  string    `json:"serviceName,omitempty"`
	ProfileName  string    `json:"profileName,omitempty"`
	Profile      *Profile  `json:"profile,omitempty"`
	EncodeStart  time.Time `json:"encodeStart"`
	EncodeFinish time.Time `json:"encodeFinish"`
	TsTime       time.Time `json:"tsTime"`
	EITStartTime time.Time `json:"eitStartTime"`
	ConsoleID    int       `json:"consoleId"`
	IsBatch      bool      `json:"isBatch"`
	FailReason   string    `json:"failReason,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Genres       []Genre   `json:"genres,omitempty"`
	ImageWidth   int       `json:"imageWidth,omitempty"`
	ImageHeight  int       `json:"imageHeight,omitempty"`
}

// Clone returns a deep copy of the job.
func (j Job) Clone() Job {
	out := j
	out.Tags = slices.Clone(j.Tags)
	out.Genres = slices.Clone(j.Genres)
	if j.Profile != nil {
		p := j.Profile.Clone()
		out.Profile = &p
	}
	return out
}

// IsActive reports whether the job still has work ahead of it.
func (j Job) IsActive() bool {
	switch j.State {
	case StateQueued, StateEncoding, StateLogoPending:
		return true
	default:
		return false
	}
}

// DisplayProfileName prefers the embedded profile's name over the recorded one.
func (j Job) DisplayProfileName() string {
	if j.Profile != nil && j.Profile.Name != "" {
		return j.Profile.Name
	}
	return j.ProfileName
}

// tooSmallMarkers are fail-reason fragments the encoder emits when it rejects
// a one-segment (low resolution) broadcast before processing.
var tooSmallMarkers = []string{
	"映像が小さすぎます",
	"video is too small",
}

// IsTooSmall reports whether the job was rejected as a trivially small
// recording. The encode server has no flag for this; the fail reason text is
// the only signal.
func (j Job) IsTooSmall() bool {
	if j.State != StatePreFailed || j.FailReason == "" {
		return false
	}
	lower := strings.ToLower(j.FailReason)
	for _, marker := range tooSmallMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// Counters aggregates job totals by state bucket.
type Counters struct {
	Active   int `json:"active"`
	Encoding int `json:"encoding"`
	Complete int `json:"complete"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
	Canceled int `json:"canceled"`
}

// CountJobs computes counters over jobs.
func CountJobs(jobs []Job) Counters {
	var c Counters
	for _, job := range jobs {
		if job.IsActive() {
			c.Active++
		}
		switch job.State {
		case StateEncoding:
			c.Encoding++
		case StateComplete:
			c.Complete++
		case StateLogoPending:
			c.Pending++
		case StateFailed, StatePreFailed:
			c.Failed++
		case StateCanceled:
			c.Canceled++
		}
	}
	return c
}

// CloneJobs deep-copies a job list.
func CloneJobs(jobs []Job) []Job {
	if jobs == nil {
		return nil
	}
	out := make([]Job, len(jobs))
	for i, job := range jobs {
		out[i] = job.Clone()
	}
	return out
}

// QueueState is a point-in-time copy of the queue as needed by view builders.
type QueueState struct {
	Version    uint64
	Jobs       []Job
	HideOneSeg bool
}
