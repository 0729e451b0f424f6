package chat

// Event is something that happened in the room. The set is closed.
type Event interface {
	isEvent()
}

// RoomOpened fires once the local peer has joined the room.
type RoomOpened struct{}

// PeerJoined fires when another peer enters the room.
type PeerJoined struct {
	PeerID string
}

// PeerLeft fires when a peer leaves the room.
type PeerLeft struct {
	PeerID string
}

// StreamReceived carries a live stream from PeerID.
type StreamReceived struct {
	PeerID string
	Stream Stream
}

// DataReceived carries a decoded data channel message from Src.
type DataReceived struct {
	Src     string
	Payload Payload
}

// MessageSent records a chat line the local peer sent.
type MessageSent struct {
	Sender string
	Text   string
}

func (RoomOpened) isEvent()     {}
func (PeerJoined) isEvent()     {}
func (PeerLeft) isEvent()       {}
func (StreamReceived) isEvent() {}
func (DataReceived) isEvent()   {}
func (MessageSent) isEvent()    {}
