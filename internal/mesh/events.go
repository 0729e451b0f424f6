package mesh

// Event is emitted by a Room, in the order it happened.
type Event interface {
	isMeshEvent()
}

// Opened fires once the local peer is in the room.
type Opened struct {
	Room  string
	Peers []string
}

// PeerJoined fires when a remote peer enters the room.
type PeerJoined struct {
	PeerID string
}

// PeerLeft fires when a remote peer leaves the room.
type PeerLeft struct {
	PeerID string
}

// StreamAdded carries a remote audio stream.
type StreamAdded struct {
	Stream *RemoteStream
}

// Data is a message received on the room data channel.
type Data struct {
	Src  string
	Data []byte
}

// Failed reports an error from the signalling service.
type Failed struct {
	Err error
}

func (Opened) isMeshEvent()      {}
func (PeerJoined) isMeshEvent()  {}
func (PeerLeft) isMeshEvent()    {}
func (StreamAdded) isMeshEvent() {}
func (Data) isMeshEvent()        {}
func (Failed) isMeshEvent()      {}
