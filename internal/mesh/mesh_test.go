package mesh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/chat"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/config"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/signaling"
	"github.com/gorilla/websocket"
	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService plays the signalling service for one client connection.
type fakeService struct {
	toClient   chan signaling.Message
	fromClient chan signaling.Message
	url        string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{
		toClient:   make(chan signaling.Message, 16),
		fromClient: make(chan signaling.Message, 64),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			http.Error(w, "bad key", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for {
				var msg signaling.Message
				if err := conn.ReadJSON(&msg); err != nil {
					close(f.fromClient)
					return
				}
				f.fromClient <- msg
			}
		}()

		for msg := range f.toClient {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(func() {
		close(f.toClient)
		srv.Close()
	})

	f.url = strings.TrimPrefix(srv.URL, "http://")
	return f
}

// expect returns the next client message of the given type.
func (f *fakeService) expect(t *testing.T, msgType string) signaling.Message {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg, ok := <-f.fromClient:
			require.True(t, ok, "client hung up while waiting for %s", msgType)
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func testConfig(domain, key string) *config.Config {
	return &config.Config{
		APIKey:     key,
		Domain:     domain,
		STUNServer: "stun:127.0.0.1:3478",
	}
}

func nextEvent(t *testing.T, room *Room) Event {
	t.Helper()
	select {
	case ev, ok := <-room.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func connectPeer(t *testing.T, f *fakeService) *Peer {
	t.Helper()
	f.toClient <- signaling.Message{Type: signaling.MessageTypeOpen, PeerID: "me"}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	peer, err := Connect(ctx, testConfig(f.url, "test-key"))
	require.NoError(t, err)
	t.Cleanup(func() { peer.Destroy() })
	return peer
}

// relay is a signalling service shared by several clients. Peer ids are
// handed out in connect order and signals are forwarded to their dst.
type relay struct {
	ids []string
	url string

	mu      sync.Mutex
	conns   map[string]*websocket.Conn
	members []string
}

func newRelay(t *testing.T, ids ...string) *relay {
	t.Helper()
	rl := &relay{ids: ids, conns: make(map[string]*websocket.Conn)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		rl.mu.Lock()
		id := rl.ids[len(rl.conns)]
		rl.conns[id] = conn
		err = conn.WriteJSON(signaling.Message{Type: signaling.MessageTypeOpen, PeerID: id})
		rl.mu.Unlock()
		if err != nil {
			return
		}

		for {
			var msg signaling.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			rl.route(id, msg)
		}
	}))
	t.Cleanup(srv.Close)

	rl.url = strings.TrimPrefix(srv.URL, "http://")
	return rl
}

func (rl *relay) route(src string, msg signaling.Message) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	switch msg.Type {
	case signaling.MessageTypeJoinRoom:
		for _, id := range rl.members {
			rl.conns[id].WriteJSON(signaling.Message{Type: signaling.MessageTypePeerJoined, Room: msg.Room, PeerID: src})
		}
		rl.members = append(rl.members, src)
		peers, _ := json.Marshal(signaling.RoomOpenedPayload{Peers: rl.members})
		rl.conns[src].WriteJSON(signaling.Message{Type: signaling.MessageTypeRoomOpened, Room: msg.Room, Payload: peers})

	case signaling.MessageTypeSignal:
		if dst, ok := rl.conns[msg.Dst]; ok {
			msg.Src, msg.Dst = src, ""
			dst.WriteJSON(msg)
		}
	}
}

func (rl *relay) join(t *testing.T, room string) *Room {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	peer, err := Connect(ctx, testConfig(rl.url, "test-key"))
	require.NoError(t, err)
	t.Cleanup(func() { peer.Destroy() })

	r, err := peer.JoinRoom(ctx, room, RoomOptions{})
	require.NoError(t, err)
	return r
}

// chatter introduces itself and says hello whenever it meets someone, the
// way the chat dispatcher does, and hands back what it receives.
func chatter(room *Room, name string) (<-chan Data, <-chan error) {
	received := make(chan Data, 16)
	failures := make(chan error, 16)
	greeting := []chat.Payload{chat.NewNameNotice(name), chat.NewChatMessage("hello from " + name)}

	go func() {
		for ev := range room.Events() {
			switch ev := ev.(type) {
			case Opened, PeerJoined:
				for _, p := range greeting {
					data, err := chat.Encode(p)
					if err == nil {
						err = room.Send(data)
					}
					if err != nil {
						failures <- err
					}
				}
			case Data:
				received <- ev
			}
		}
	}()
	return received, failures
}

// expectGreeting waits for src's name notice and hello message.
func expectGreeting(t *testing.T, received <-chan Data, src, name string) {
	t.Helper()
	var sawName, sawMessage bool
	deadline := time.After(15 * time.Second)

	for !sawName || !sawMessage {
		select {
		case d := <-received:
			require.Equal(t, src, d.Src)
			p, err := chat.Decode(d.Data)
			require.NoError(t, err)
			switch p.Type {
			case chat.NoticeName:
				assert.False(t, sawMessage, "message overtook the name notice")
				assert.Equal(t, name, p.Name)
				sawName = true
			case chat.MessageAction:
				assert.Equal(t, "hello from "+name, p.Message)
				sawMessage = true
			}
		case <-deadline:
			t.Fatalf("from %s: name=%v message=%v", src, sawName, sawMessage)
		}
	}
}

func TestRoomMembersExchangeNamesAndMessages(t *testing.T) {
	rl := newRelay(t, "A", "B")

	roomA := rl.join(t, "lobby")
	receivedA, failuresA := chatter(roomA, "alice")

	roomB := rl.join(t, "lobby")
	receivedB, failuresB := chatter(roomB, "bob")

	expectGreeting(t, receivedA, "B", "bob")
	expectGreeting(t, receivedB, "A", "alice")
	assert.Empty(t, failuresA)
	assert.Empty(t, failuresB)
}

func TestSendHoldsDataUntilChannelOpens(t *testing.T) {
	room := newRoom(&Peer{id: "me", cfg: testConfig("", "")}, "lobby", nil)
	c, err := newConn(room, "alice")
	require.NoError(t, err)

	for range outboxLimit {
		require.NoError(t, c.send([]byte("early")))
	}
	assert.ErrorIs(t, c.send([]byte("one too many")), ErrOutboxFull)

	c.close()
	assert.ErrorIs(t, c.send([]byte("late")), ErrChannelClosed)
}

func TestConnectAssignsPeerID(t *testing.T) {
	f := newFakeService(t)

	peer := connectPeer(t, f)

	assert.Equal(t, "me", peer.ID())
}

func TestConnectRejectedKey(t *testing.T) {
	f := newFakeService(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := Connect(ctx, testConfig(f.url, "wrong"))

	require.Error(t, err)
}

func TestConnectServerError(t *testing.T) {
	f := newFakeService(t)
	f.toClient <- signaling.Message{Type: signaling.MessageTypeError, Payload: json.RawMessage(`{"error":"quota exceeded"}`)}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := Connect(ctx, testConfig(f.url, "test-key"))

	require.ErrorIs(t, err, ErrSignaling)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestJoinRoomOffersToExistingMembers(t *testing.T) {
	f := newFakeService(t)
	peer := connectPeer(t, f)

	peers, _ := json.Marshal(signaling.RoomOpenedPayload{Peers: []string{"me", "alice"}})
	f.toClient <- signaling.Message{Type: signaling.MessageTypeRoomOpened, Room: "lobby", Payload: peers}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	room, err := peer.JoinRoom(ctx, "lobby", RoomOptions{})
	require.NoError(t, err)

	join := f.expect(t, signaling.MessageTypeJoinRoom)
	assert.Equal(t, "lobby", join.Room)
	assert.JSONEq(t, `{"mode":"mesh"}`, string(join.Payload))

	assert.Equal(t, Opened{Room: "lobby", Peers: []string{"me", "alice"}}, nextEvent(t, room))

	offer := f.expect(t, signaling.MessageTypeSignal)
	assert.Equal(t, "alice", offer.Dst)
	var payload signaling.SignalPayload
	require.NoError(t, json.Unmarshal(offer.Payload, &payload))
	assert.Equal(t, "offer", payload.Type)
	assert.Contains(t, payload.SDP, "m=audio")
	assert.Contains(t, payload.SDP, "m=application")
	assert.ElementsMatch(t, []string{"alice"}, room.Peers())
}

func TestRoomReportsMembershipChanges(t *testing.T) {
	f := newFakeService(t)
	peer := connectPeer(t, f)
	f.toClient <- signaling.Message{Type: signaling.MessageTypeRoomOpened, Room: "lobby"}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	room, err := peer.JoinRoom(ctx, "lobby", RoomOptions{Mode: signaling.ModeMesh})
	require.NoError(t, err)
	require.IsType(t, Opened{}, nextEvent(t, room))

	f.toClient <- signaling.Message{Type: signaling.MessageTypePeerJoined, PeerID: "bob"}
	assert.Equal(t, PeerJoined{PeerID: "bob"}, nextEvent(t, room))
	assert.ElementsMatch(t, []string{"bob"}, room.Peers())

	f.toClient <- signaling.Message{Type: signaling.MessageTypePeerLeft, PeerID: "bob"}
	assert.Equal(t, PeerLeft{PeerID: "bob"}, nextEvent(t, room))
	assert.Empty(t, room.Peers())

	f.toClient <- signaling.Message{Type: signaling.MessageTypePeerLeft, PeerID: "ghost"}
	assert.Equal(t, PeerLeft{PeerID: "ghost"}, nextEvent(t, room))

	require.NoError(t, room.Send([]byte("nobody listening")))
}

func TestJoinRoomTwiceFails(t *testing.T) {
	f := newFakeService(t)
	peer := connectPeer(t, f)
	f.toClient <- signaling.Message{Type: signaling.MessageTypeRoomOpened, Room: "lobby"}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := peer.JoinRoom(ctx, "lobby", RoomOptions{})
	require.NoError(t, err)

	_, err = peer.JoinRoom(ctx, "other", RoomOptions{})
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

func TestDestroyLeavesRoomAndClosesEvents(t *testing.T) {
	f := newFakeService(t)
	peer := connectPeer(t, f)
	f.toClient <- signaling.Message{Type: signaling.MessageTypeRoomOpened, Room: "lobby"}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	room, err := peer.JoinRoom(ctx, "lobby", RoomOptions{})
	require.NoError(t, err)

	require.NoError(t, peer.Destroy())
	require.NoError(t, peer.Destroy())

	leave := f.expect(t, signaling.MessageTypeLeaveRoom)
	assert.Equal(t, "lobby", leave.Room)

	for range room.Events() {
	}
	assert.ErrorIs(t, room.Send([]byte("x")), ErrClosed)

	_, err = peer.JoinRoom(ctx, "lobby", RoomOptions{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestJoinRoomRejectsOtherModes(t *testing.T) {
	f := newFakeService(t)
	peer := connectPeer(t, f)

	_, err := peer.JoinRoom(context.Background(), "lobby", RoomOptions{Mode: "sfu"})
	assert.ErrorIs(t, err, ErrSignaling)
}

func TestICEConfiguration(t *testing.T) {
	cfg := &config.Config{STUNServer: "stun:stun.example.com:3478"}
	never := func() bool { return false }

	got := ICEConfiguration(cfg, never)
	assert.Equal(t, []pion.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}}, got.ICEServers)
	assert.Equal(t, pion.ICETransportPolicyAll, got.ICETransportPolicy)

	// Without TURN the relay hint cannot force relay.
	got = ICEConfiguration(cfg, func() bool { return true })
	assert.Equal(t, pion.ICETransportPolicyAll, got.ICETransportPolicy)

	cfg.TURNServer = "turn:relay.example.com"
	cfg.TURNUser, cfg.TURNPass = "u", "p"
	got = ICEConfiguration(cfg, func() bool { return true })
	require.Len(t, got.ICEServers, 2)
	assert.Equal(t, "u", got.ICEServers[1].Username)
	assert.Equal(t, pion.ICETransportPolicyRelay, got.ICETransportPolicy)

	cfg.ForceRelay = true
	assert.Equal(t, pion.ICETransportPolicyRelay, ICEConfiguration(cfg, never).ICETransportPolicy)
}

func TestRemoteStreamActivity(t *testing.T) {
	s := newRemoteStream("alice", "stream-1")
	assert.False(t, s.Active())

	s.mark(120)
	assert.True(t, s.Active())
	assert.Equal(t, int64(120), s.Bytes())
	assert.Equal(t, "alice", s.PeerID())
	assert.Equal(t, "stream-1", s.ID())
}

func TestRecordingPath(t *testing.T) {
	s := newRemoteStream("alice", "stream-1")
	assert.Equal(t, filepath.Join("rec", "alice-stream-1.ogg"), s.recordingPath("rec"))
}

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "send alice: mesh closed", NewPeerError("send", "alice", ErrClosed).Error())
	assert.Equal(t, "open: signaling server error (denied)", WrapError("open", ErrSignaling, "denied").Error())
	assert.ErrorIs(t, NewError("join", ErrTimeout), ErrTimeout)
}
