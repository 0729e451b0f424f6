package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRoom struct {
	sent []Payload
	err  error
}

func (r *recordingRoom) Send(data []byte) error {
	p, err := Decode(data)
	if err != nil {
		return err
	}
	r.sent = append(r.sent, p)
	return r.err
}

func TestDispatcherAnnouncesNameOnOpenAndEveryJoin(t *testing.T) {
	room := &recordingRoom{}
	d := NewDispatcher("me1", "Carol", room)

	d.Handle(RoomOpened{})
	d.Handle(PeerJoined{PeerID: "P1"})
	d.Handle(PeerJoined{PeerID: "P2"})

	require.Len(t, room.sent, 3)
	for _, p := range room.sent {
		assert.Equal(t, NewNameNotice("Carol"), p)
	}
}

func TestDispatcherSkipsAnnouncementWithoutName(t *testing.T) {
	room := &recordingRoom{}
	d := NewDispatcher("me1", "", room)

	d.Handle(RoomOpened{})
	d.Handle(PeerJoined{PeerID: "P1"})

	assert.Empty(t, room.sent)
}

func TestDispatcherSendChatMessageAppendsLocally(t *testing.T) {
	room := &recordingRoom{}
	d := NewDispatcher("me1", "", room)

	require.NoError(t, d.SendChatMessage("hello"))

	assert.Equal(t, []Payload{NewChatMessage("hello")}, room.sent)
	assert.Equal(t, []Message{{Sender: "me1", Text: "hello"}}, d.State().Messages)
}

func TestDispatcherKeepsLineWhenSendFails(t *testing.T) {
	room := &recordingRoom{err: errors.New("channel closed")}
	d := NewDispatcher("me1", "", room)

	err := d.SendChatMessage("hello")

	require.Error(t, err)
	assert.Equal(t, []Message{{Sender: "me1", Text: "hello"}}, d.State().Messages)
}

func TestDispatcherStateIsACopy(t *testing.T) {
	d := NewDispatcher("me1", "", &recordingRoom{})
	d.Handle(StreamReceived{PeerID: "P1", Stream: fakeStream("s")})

	s := d.State()
	s.Users[0].Name = "mutated"

	assert.Empty(t, d.State().Users[0].Name)
}
