package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"encmirror/internal/codec"
)

// Verb names a command forwarded to the encode server.
type Verb string

const (
	VerbPause       Verb = "pause"
	VerbCancelAdd   Verb = "cancel-add"
	VerbAddQueue    Verb = "add-queue"
	VerbChangeItem  Verb = "change-item"
	VerbProfile     Verb = "profile"
	VerbAutoSelect  Verb = "autoselect"
	VerbService     Verb = "service"
	VerbDrcs        Verb = "drcs"
	VerbEndServer   Verb = "end-server"
	VerbCancelSleep Verb = "cancel-sleep"
)

var knownVerbs = []Verb{
	VerbPause, VerbCancelAdd, VerbAddQueue, VerbChangeItem, VerbProfile,
	VerbAutoSelect, VerbService, VerbDrcs, VerbEndServer, VerbCancelSleep,
}

// ErrUnknownVerb is returned for verbs the encode server does not accept.
var ErrUnknownVerb = errors.New("unknown command verb")

// Verbs lists every accepted verb.
func Verbs() []Verb {
	return append([]Verb(nil), knownVerbs...)
}

// ParseVerb resolves a verb name case-insensitively.
func ParseVerb(value string) (Verb, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	for _, v := range knownVerbs {
		if string(v) == trimmed {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownVerb, value)
}

// Command is a pass-through request for the encode server. Body is the JSON
// payload exactly as the client supplied it.
type Command struct {
	Verb      Verb   `json:"verb"`
	RequestID string `json:"requestId"`
	Body      []byte `json:"body,omitempty"`
}

// NewCommand validates verb and body and builds a Command.
func NewCommand(verb Verb, requestID string, body []byte) (Command, error) {
	if _, err := ParseVerb(string(verb)); err != nil {
		return Command{}, err
	}
	if len(body) > 0 && !json.Valid(body) {
		return Command{}, fmt.Errorf("%s: body is not valid JSON", verb)
	}
	return Command{Verb: verb, RequestID: requestID, Body: append([]byte(nil), body...)}, nil
}

// WrapCommand encodes cmd into an envelope.
func WrapCommand(cmd Command) (Envelope, error) {
	body, err := codec.Marshal(cmd)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode command %s: %w", cmd.Verb, err)
	}
	return Envelope{Kind: KindCommand, Body: body}, nil
}

// UnwrapCommand decodes the command carried by env.
func UnwrapCommand(env Envelope) (Command, error) {
	if env.Kind != KindCommand {
		return Command{}, fmt.Errorf("%w %q", ErrUnknownKind, env.Kind)
	}
	var cmd Command
	if err := codec.Unmarshal(env.Body, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	return cmd, nil
}
