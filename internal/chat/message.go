package chat

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ActionType tags every message sent over the room data channel.
type ActionType int

const (
	NoticeName ActionType = iota
	MessageAction
)

func (t ActionType) String() string {
	switch t {
	case NoticeName:
		return "NOTICE_NAME"
	case MessageAction:
		return "MESSAGE"
	default:
		return fmt.Sprintf("ActionType(%d)", int(t))
	}
}

var ErrUnknownAction = errors.New("unknown action type")

// Payload is the data channel message: {type: 0, name} or {type: 1, message}.
type Payload struct {
	Type    ActionType `msgpack:"type"`
	Name    string     `msgpack:"name,omitempty"`
	Message string     `msgpack:"message,omitempty"`
}

// NewNameNotice announces the local display name.
func NewNameNotice(name string) Payload {
	return Payload{Type: NoticeName, Name: name}
}

// NewChatMessage carries one line of chat text.
func NewChatMessage(text string) Payload {
	return Payload{Type: MessageAction, Message: text}
}

// Encode marshals p for the data channel.
func Encode(p Payload) ([]byte, error) {
	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Type, err)
	}
	return b, nil
}

// Decode parses a data channel message and rejects unknown tags.
func Decode(data []byte) (Payload, error) {
	var p Payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	switch p.Type {
	case NoticeName, MessageAction:
		return p, nil
	default:
		return Payload{}, fmt.Errorf("%w: %d", ErrUnknownAction, int(p.Type))
	}
}
