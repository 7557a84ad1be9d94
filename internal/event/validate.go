package event

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks an event the mirror must drop without applying.
var ErrMalformed = errors.New("malformed event")

func malformed(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, kind, fmt.Sprintf(format, args...))
}

// Validate checks that an event carries the fields its kind requires.
func Validate(evt Event) error {
	if evt == nil {
		return fmt.Errorf("%w: nil event", ErrMalformed)
	}
	switch e := evt.(type) {
	case QueueSnapshot, LogSnapshot, CheckLogSnapshot, StateUpdate, SettingUpdate,
		LogAppend, CheckLogAppend, OperationResult, CurrentLogFilePath, SleepCancelNotice,
		ServerInfoUpdate, DiskInfoUpdate, CPUTopologyUpdate:
		return nil
	case QueueDelta:
		return validateQueueDelta(e)
	case ConsoleSnapshot:
		return validateSlot(e.Kind(), e.Slot)
	case ConsoleAppend:
		return validateSlot(e.Kind(), e.Slot)
	case EncodeProgressUpdate:
		return validateSlot(e.Kind(), e.Slot)
	case ProfileDelta:
		var name string
		if e.Profile != nil {
			name = e.Profile.Name
		}
		return validateNamedDelta(e.Kind(), e.Type, e.Profile != nil, name)
	case AutoSelectDelta:
		var name string
		if e.AutoSelect != nil {
			name = e.AutoSelect.Name
		}
		return validateNamedDelta(e.Kind(), e.Type, e.AutoSelect != nil, name)
	case ServiceSettingDelta:
		return validateServiceDelta(e)
	case DrcsDelta:
		return validateDrcsDelta(e)
	default:
		return malformed(evt.Kind(), "unsupported event type %T", evt)
	}
}

func validateQueueDelta(d QueueDelta) error {
	switch d.Type {
	case UpdateAdd, UpdateUpdate:
		if d.Job == nil {
			return malformed(d.Kind(), "%s without job", d.Type)
		}
		if d.Job.ID <= 0 {
			return malformed(d.Kind(), "%s without job id", d.Type)
		}
		if strings.TrimSpace(d.Job.SrcPath) == "" {
			return malformed(d.Kind(), "%s of job %d without source path", d.Type, d.Job.ID)
		}
	case UpdateRemove:
		if d.TargetID() <= 0 {
			return malformed(d.Kind(), "remove without job id")
		}
	case UpdateMove:
		if d.TargetID() <= 0 {
			return malformed(d.Kind(), "move without job id")
		}
		if d.Position < 0 {
			return malformed(d.Kind(), "move to negative position %d", d.Position)
		}
	case UpdateClear:
	default:
		return malformed(d.Kind(), "unknown update type %q", d.Type)
	}
	return nil
}

func validateSlot(kind Kind, slot int) error {
	if slot < -1 {
		return malformed(kind, "invalid console slot %d", slot)
	}
	return nil
}

func validateNamedDelta(kind Kind, typ UpdateType, present bool, name string) error {
	switch typ {
	case UpdateAdd, UpdateUpdate, UpdateRemove:
		if !present || strings.TrimSpace(name) == "" {
			return malformed(kind, "%s without name", typ)
		}
	case UpdateClear:
	default:
		return malformed(kind, "unknown update type %q", typ)
	}
	return nil
}

func validateServiceDelta(d ServiceSettingDelta) error {
	switch d.Type {
	case UpdateAdd, UpdateUpdate:
		if d.Data == nil {
			return malformed(d.Kind(), "%s without data", d.Type)
		}
		if d.TargetID() <= 0 {
			return malformed(d.Kind(), "%s without service id", d.Type)
		}
	case UpdateRemove:
		if d.TargetID() <= 0 {
			return malformed(d.Kind(), "remove without service id")
		}
	case UpdateRemoveLogo:
		if d.TargetID() <= 0 {
			return malformed(d.Kind(), "remove_logo without service id")
		}
		if d.LogoIndex < 0 {
			return malformed(d.Kind(), "remove_logo with negative index %d", d.LogoIndex)
		}
	case UpdateClear:
	default:
		return malformed(d.Kind(), "unknown update type %q", d.Type)
	}
	return nil
}

// TargetID returns the service id the delta addresses.
func (d ServiceSettingDelta) TargetID() int {
	if d.ServiceID != 0 {
		return d.ServiceID
	}
	if d.Data != nil {
		return d.Data.ServiceID
	}
	return 0
}

func validateDrcsDelta(d DrcsDelta) error {
	switch d.Type {
	case UpdateAdd, UpdateUpdate, UpdateRemove:
	default:
		return malformed(d.Kind(), "unknown update type %q", d.Type)
	}
	if d.Image == nil && len(d.Images) == 0 {
		return malformed(d.Kind(), "%s without image", d.Type)
	}
	for _, img := range d.All() {
		if strings.TrimSpace(img.MD5) == "" {
			return malformed(d.Kind(), "%s of image without md5", d.Type)
		}
	}
	return nil
}
