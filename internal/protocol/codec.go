package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/CodeRoom/internal/core"
)

var (
	ErrUnknownType = errors.New("unknown event type")
	ErrMalformed   = errors.New("malformed event")
)

type envelope struct {
	Type Kind `json:"type"`
}

// Decode parses one inbound frame. Missing required fields yield
// ErrMalformed; document and input contents may be empty strings but must be
// present.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case KindJoinRoom:
		var ev JoinRoom
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.RoomID == "" || ev.UserID == "" {
			return nil, fmt.Errorf("%w: join-room requires roomId and userId", ErrMalformed)
		}
		return ev, nil

	case KindLeaveRoom:
		return LeaveRoom{}, nil

	case KindPing:
		return Ping{}, nil

	case KindCodeChange:
		var raw struct {
			RoomID string  `json:"roomId"`
			Code   *string `json:"code"`
			UserID string  `json:"userId"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if raw.RoomID == "" || raw.Code == nil {
			return nil, fmt.Errorf("%w: code-change requires roomId and code", ErrMalformed)
		}
		return CodeChange{RoomID: raw.RoomID, Code: *raw.Code, UserID: raw.UserID}, nil

	case KindInputChange:
		var raw struct {
			RoomID string  `json:"roomId"`
			Input  *string `json:"input"`
			UserID string  `json:"userId"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if raw.RoomID == "" || raw.Input == nil {
			return nil, fmt.Errorf("%w: input-change requires roomId and input", ErrMalformed)
		}
		return InputChange{RoomID: raw.RoomID, Input: *raw.Input, UserID: raw.UserID}, nil

	case KindCursorMove:
		var ev CursorMove
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.RoomID == "" || len(ev.CursorPosition) == 0 || bytes.Equal(ev.CursorPosition, []byte("null")) {
			return nil, fmt.Errorf("%w: cursor-move requires roomId and cursorPosition", ErrMalformed)
		}
		return ev, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Encode renders an outbound event as a flat JSON object with its type.
func Encode(ev Outbound) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Kind(), err)
	}
	head, err := json.Marshal(envelope{Type: ev.Kind()})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Kind(), err)
	}
	if bytes.Equal(body, []byte("{}")) {
		return head, nil
	}
	// {"type":"x"} + {"a":1} -> {"type":"x","a":1}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// Frame encodes ev and tags it with its loss class.
func Frame(ev Outbound) (core.Frame, error) {
	data, err := Encode(ev)
	if err != nil {
		return core.Frame{}, err
	}
	return core.Frame{Data: data, Lossy: ev.Lossy()}, nil
}
