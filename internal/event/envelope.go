package event

import (
	"errors"
	"fmt"

	"encmirror/internal/codec"
)

// KindCommand tags envelopes that carry a Command rather than an Event.
const KindCommand Kind = "command"

// Envelope is the framing used on the ingest socket: a kind tag plus the
// CBOR-encoded payload.
type Envelope struct {
	Kind Kind             `json:"kind"`
	Body codec.RawMessage `json:"body"`
}

// ErrUnknownKind is returned when an envelope names a kind this build does not know.
var ErrUnknownKind = errors.New("unknown event kind")

// Wrap encodes evt into an envelope.
func Wrap(evt Event) (Envelope, error) {
	if evt == nil {
		return Envelope{}, errors.New("wrap: nil event")
	}
	body, err := codec.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", evt.Kind(), err)
	}
	return Envelope{Kind: evt.Kind(), Body: body}, nil
}

// Unwrap decodes the event carried by env.
func Unwrap(env Envelope) (Event, error) {
	switch env.Kind {
	case KindStateUpdate:
		return decodeAs[StateUpdate](env)
	case KindQueueSnapshot:
		return decodeAs[QueueSnapshot](env)
	case KindQueueDelta:
		return decodeAs[QueueDelta](env)
	case KindLogSnapshot:
		return decodeAs[LogSnapshot](env)
	case KindLogAppend:
		return decodeAs[LogAppend](env)
	case KindCheckLogSnapshot:
		return decodeAs[CheckLogSnapshot](env)
	case KindCheckLogAppend:
		return decodeAs[CheckLogAppend](env)
	case KindConsoleSnapshot:
		return decodeAs[ConsoleSnapshot](env)
	case KindConsoleAppend:
		return decodeAs[ConsoleAppend](env)
	case KindEncodeProgressUpdate:
		return decodeAs[EncodeProgressUpdate](env)
	case KindProfileDelta:
		return decodeAs[ProfileDelta](env)
	case KindAutoSelectDelta:
		return decodeAs[AutoSelectDelta](env)
	case KindServiceSettingDelta:
		return decodeAs[ServiceSettingDelta](env)
	case KindDrcsDelta:
		return decodeAs[DrcsDelta](env)
	case KindOperationResult:
		return decodeAs[OperationResult](env)
	case KindCurrentLogFilePath:
		return decodeAs[CurrentLogFilePath](env)
	case KindSleepCancelNotice:
		return decodeAs[SleepCancelNotice](env)
	case KindServerInfoUpdate:
		return decodeAs[ServerInfoUpdate](env)
	case KindDiskInfoUpdate:
		return decodeAs[DiskInfoUpdate](env)
	case KindCPUTopologyUpdate:
		return decodeAs[CPUTopologyUpdate](env)
	case KindSettingUpdate:
		return decodeAs[SettingUpdate](env)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, env.Kind)
	}
}

func decodeAs[T Event](env Envelope) (Event, error) {
	var out T
	if len(env.Body) == 0 {
		return nil, fmt.Errorf("%w: %s: empty body", ErrMalformed, env.Kind)
	}
	if err := codec.Unmarshal(env.Body, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return out, nil
}
