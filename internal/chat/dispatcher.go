package chat

import (
	"fmt"
	"log/slog"
)

// Broadcaster delivers data to every member of the room.
type Broadcaster interface {
	Send(data []byte) error
}

// Dispatcher owns the room state and performs the side effects of events:
// name announcements on join and local echo of sent chat lines.
// It is not safe for concurrent use; feed it from one goroutine.
type Dispatcher struct {
	name  string
	room  Broadcaster
	state State
}

// NewDispatcher creates a dispatcher for the local peer self announcing name.
func NewDispatcher(self, name string, room Broadcaster) *Dispatcher {
	return &Dispatcher{
		name:  name,
		room:  room,
		state: NewState(self),
	}
}

// State returns a copy of the current state.
func (d *Dispatcher) State() State {
	return d.state.Clone()
}

// Handle applies ev and runs its effects.
func (d *Dispatcher) Handle(ev Event) State {
	switch ev := ev.(type) {
	case RoomOpened:
		d.announce()
	case PeerJoined:
		slog.Debug("peer joined", "peer", ev.PeerID)
		d.announce()
	case PeerLeft:
		slog.Debug("peer left", "peer", ev.PeerID)
	}
	d.state = Reduce(d.state, ev)
	return d.state
}

// SendChatMessage broadcasts text and appends it to the local history
// immediately, without waiting for the room to echo it. The line is kept
// locally even when the broadcast fails.
func (d *Dispatcher) SendChatMessage(text string) error {
	data, err := Encode(NewChatMessage(text))
	if err != nil {
		return err
	}
	sendErr := d.room.Send(data)
	d.state = Reduce(d.state, MessageSent{Sender: d.state.Self, Text: text})
	if sendErr != nil {
		return fmt.Errorf("send chat message: %w", sendErr)
	}
	return nil
}

// announce re-broadcasts the local name so late joiners learn it.
func (d *Dispatcher) announce() {
	if d.name == "" {
		return
	}
	data, err := Encode(NewNameNotice(d.name))
	if err != nil {
		slog.Warn("encode name notice", "error", err)
		return
	}
	if err := d.room.Send(data); err != nil {
		slog.Warn("send name notice", "error", err)
	}
}
