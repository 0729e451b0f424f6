package signaling

import "encoding/json"

// Message represents all WebSocket messages between the client and the
// signalling service.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Room    string          `json:"room,omitempty"`
	PeerID  string          `json:"peer_id,omitempty"`
	Src     string          `json:"src,omitempty"`
	Dst     string          `json:"dst,omitempty"`
}

// Message type constants.
const (
	MessageTypeJoinRoom  = "join_room"
	MessageTypeLeaveRoom = "leave_room"
	MessageTypeSignal    = "signal"

	MessageTypeOpen       = "open"
	MessageTypeRoomOpened = "room_opened"
	MessageTypePeerJoined = "peer_joined"
	MessageTypePeerLeft   = "peer_left"
	MessageTypeError      = "error"
)

// ModeMesh asks the service for a full-mesh room.
const ModeMesh = "mesh"

// JoinPayload accompanies join_room.
type JoinPayload struct {
	Mode string `json:"mode"`
}

// RoomOpenedPayload lists the members already in the room.
type RoomOpenedPayload struct {
	Peers []string `json:"peers"`
}

// SignalPayload represents the WebRTC signaling data (SDP offer/answer or ICE candidate).
type SignalPayload struct {
	Type         string          `json:"type,omitempty"`
	SDP          string          `json:"sdp,omitempty"`
	ICECandidate json.RawMessage `json:"ice_candidate,omitempty"`
}

// ErrorPayload represents error messages from server.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage builds a message with payload marshalled to JSON.
func NewMessage(msgType string, payload any) (*Message, error) {
	msg := &Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg.Payload = raw
	return msg, nil
}

// Signal is a routed WebRTC signal from a remote peer.
type Signal struct {
	From    string
	Payload SignalPayload
}

// RoomOpened is the server's answer to join_room.
type RoomOpened struct {
	Room  string
	Peers []string
}
