package view

import (
	"strconv"
	"time"

	"encmirror/internal/model"
)

// ItemView is a queue job as presented to clients.
type ItemView struct {
	ID                   int64          `json:"id"`
	Mode                 model.ProcMode `json:"mode,omitempty"`
	SrcPath              string         `json:"srcPath"`
	DirName              string         `json:"dirName,omitempty"`
	FileName             string         `json:"fileName,omitempty"`
	ServiceName          string         `json:"serviceName,omitempty"`
	ProfileName          string         `json:"profileName,omitempty"`
	State                model.JobState `json:"state"`
	StateLabel           string         `json:"stateLabel"`
	Priority             int            `json:"priority"`
	IsBatch              bool           `json:"isBatch"`
	EncodeStart          *time.Time     `json:"encodeStart"`
	EncodeFinish         *time.Time     `json:"encodeFinish"`
	TsTime               *time.Time     `json:"tsTime"`
	EITStartTime         *time.Time     `json:"eitStartTime"`
	DisplayBroadcastTime string         `json:"displayBroadcastTime,omitempty"`
	ConsoleID            int            `json:"consoleId"`
	IsTooSmall           bool           `json:"isTooSmall"`
	FailReason           string         `json:"failReason,omitempty"`
	Tags                 []string       `json:"tags,omitempty"`
	OutDir               string         `json:"outDir,omitempty"`
	ImageWidth           int            `json:"imageWidth,omitempty"`
	ImageHeight          int            `json:"imageHeight,omitempty"`
	Genres               []model.Genre  `json:"genres,omitempty"`
}

const broadcastDateLayout = "2006/01/02"

// Item converts a job into its presentation form.
func Item(job model.Job) ItemView {
	item := ItemView{
		ID:           job.ID,
		Mode:         job.Mode,
		SrcPath:      job.SrcPath,
		DirName:      job.DirName,
		FileName:     job.FileName,
		ServiceName:  job.ServiceName,
		ProfileName:  job.DisplayProfileName(),
		State:        job.State,
		StateLabel:   StateLabel(job),
		Priority:     job.Priority,
		IsBatch:      job.IsBatch,
		EncodeStart:  optionalTime(job.EncodeStart),
		EncodeFinish: optionalTime(job.EncodeFinish),
		TsTime:       optionalTime(job.TsTime),
		EITStartTime: optionalTime(job.EITStartTime),
		ConsoleID:    job.ConsoleID,
		IsTooSmall:   job.IsTooSmall(),
		FailReason:   job.FailReason,
		Tags:         append([]string(nil), job.Tags...),
		OutDir:       job.DstPath,
		ImageWidth:   job.ImageWidth,
		ImageHeight:  job.ImageHeight,
		Genres:       append([]model.Genre(nil), job.Genres...),
	}
	switch {
	case !job.EITStartTime.IsZero():
		item.DisplayBroadcastTime = job.EITStartTime.Format(broadcastDateLayout)
	case !job.TsTime.IsZero():
		item.DisplayBroadcastTime = job.TsTime.Format(broadcastDateLayout)
	}
	return item
}

// Items converts a job list, preserving order.
func Items(jobs []model.Job) []ItemView {
	out := make([]ItemView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, Item(job))
	}
	return out
}

// StateLabel is the human-readable status of a job. Encoding jobs name the
// one-based console slot they run on.
func StateLabel(job model.Job) string {
	switch job.State {
	case model.StateQueued:
		return "Queued"
	case model.StateEncoding:
		slot := strconv.Itoa(job.ConsoleID + 1)
		switch job.Mode {
		case model.ModeCMCheck:
			return "CM analysis → " + slot
		case model.ModeDrcsCheck:
			return "DRCS check → " + slot
		default:
			return "Encoding → " + slot
		}
	case model.StateFailed, model.StatePreFailed:
		return "Failed"
	case model.StateLogoPending:
		return "Pending"
	case model.StateCanceled:
		return "Canceled"
	case model.StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
