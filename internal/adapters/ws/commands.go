package ws

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Inbound control strings. Free text that is neither of these nor a
// button payload is a vote for the song with that external ID.
const (
	textStartSession   = "start_party_session"
	textStartCountdown = "Timer"
)

var errMalformed = errors.New("malformed message")

// Command is an inbound message decoded once at the transport boundary.
type Command interface{ isCommand() }

// StartCommand asks the coordinator to start the session (host only).
type StartCommand struct{}

// TimerCommand begins the voting countdown.
type TimerCommand struct{}

// VoteCommand casts a vote for a song by its external ID.
type VoteCommand struct {
	SongID string
}

// IncrementCommand is a raw button increment. Payload keeps the decoded
// object so the coordinator can echo it back with the bumped counter.
type IncrementCommand struct {
	Button  string
	Value   int
	Payload map[string]any
}

func (StartCommand) isCommand()     {}
func (TimerCommand) isCommand()     {}
func (VoteCommand) isCommand()      {}
func (IncrementCommand) isCommand() {}

// ParseCommand classifies one inbound text message.
func ParseCommand(data []byte) (Command, error) {
	text := string(data)
	switch text {
	case textStartCountdown:
		return TimerCommand{}, nil
	case textStartSession:
		return StartCommand{}, nil
	}

	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, errMalformed
		}
		if _, ok := payload["button"]; ok {
			return parseIncrement(payload)
		}
		return nil, errMalformed
	}

	if text == "" {
		return nil, errMalformed
	}
	return VoteCommand{SongID: text}, nil
}

func parseIncrement(payload map[string]any) (Command, error) {
	button, ok := payload["button"].(string)
	if !ok || button == "" {
		return nil, errMalformed
	}
	value, err := numericField(payload["button_val"])
	if err != nil {
		return nil, errMalformed
	}
	return IncrementCommand{Button: button, Value: value, Payload: payload}, nil
}

// numericField accepts the counter both as a JSON number and as a string.
func numericField(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, errMalformed
	}
}
