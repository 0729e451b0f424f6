package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/config"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/session"
	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(room string) *config.Config {
	return &config.Config{Domain: "chat.example.com", TLS: true, Room: room}
}

func TestResolveRoomFromArgument(t *testing.T) {
	target, err := ResolveRoom(testConfig(""), "lobby")
	require.NoError(t, err)

	assert.Equal(t, RoomTarget{Room: "lobby", Link: "https://chat.example.com/chat?room=lobby", Replaced: true}, target)
}

func TestResolveRoomFromLink(t *testing.T) {
	link := "https://other.example.com/chat?room=den&x=1"
	target, err := ResolveRoom(testConfig(""), link)
	require.NoError(t, err)

	assert.Equal(t, RoomTarget{Room: "den", Link: link}, target)
}

func TestResolveRoomStoredRoomWins(t *testing.T) {
	target, err := ResolveRoom(testConfig("stored"), "https://chat.example.com/chat?room=den")
	require.NoError(t, err)
	assert.Equal(t, "stored", target.Room)
	assert.False(t, target.Replaced)

	target, err = ResolveRoom(testConfig("stored"), "")
	require.NoError(t, err)
	assert.Equal(t, "stored", target.Room)
	assert.True(t, target.Replaced)
	assert.Equal(t, "https://chat.example.com/chat?room=stored", target.Link)
}

func TestResolveRoomStoredRoomBeatsArgument(t *testing.T) {
	target, err := ResolveRoom(testConfig("stored"), "lobby")
	require.NoError(t, err)

	assert.Equal(t, RoomTarget{Room: "stored", Link: "https://chat.example.com/chat?room=stored", Replaced: true}, target)
}

func TestResolveRoomLinkWithoutRoomParam(t *testing.T) {
	target, err := ResolveRoom(testConfig("stored"), "https://chat.example.com/chat?x=1")
	require.NoError(t, err)

	assert.Equal(t, RoomTarget{Room: "stored", Link: "https://chat.example.com/chat?room=stored", Replaced: true}, target)
}

func TestResolveRoomMissing(t *testing.T) {
	_, err := ResolveRoom(testConfig(""), "")
	require.ErrorIs(t, err, session.ErrNoRoom)
	assert.Contains(t, err.Error(), "https://chat.example.com")
	assert.True(t, isNoRoom(err))

	_, err = ResolveRoom(testConfig(""), "https://chat.example.com/chat?other=1")
	require.ErrorIs(t, err, session.ErrNoRoom)
}

func TestResolveRoomQueryOnly(t *testing.T) {
	target, err := ResolveRoom(testConfig(""), "?room=den")
	require.NoError(t, err)

	assert.Equal(t, RoomTarget{Room: "den", Link: "https://chat.example.com/chat?room=den"}, target)
}

func TestLinkCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"VOICECHAT_DOMAIN", "VOICECHAT_TLS", "VOICECHAT_ROOM", "VOICECHAT_STUN_SERVER"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"link", "lobby", "--domain", "chat.example.com"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		flagLinkDomain = ""
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "http://chat.example.com/chat?room=lobby\n", out.String())
}

// fakeSession stands in for a running session in RunSession.
type fakeSession struct {
	snap     session.Snapshot
	updates  chan session.Snapshot
	startErr error
	closeErr error
	closed   bool
}

func (f *fakeSession) Snapshot() session.Snapshot        { return f.snap }
func (f *fakeSession) Updates() <-chan session.Snapshot  { return f.updates }
func (f *fakeSession) SendChatMessage(text string) error { return nil }
func (f *fakeSession) Retry() error                      { return nil }
func (f *fakeSession) Start(ctx context.Context) error   { return f.startErr }
func (f *fakeSession) Summary() session.Summary          { return session.Summary{Room: f.snap.Room} }

func (f *fakeSession) Close() error {
	if !f.closed {
		f.closed = true
		close(f.updates)
	}
	return f.closeErr
}

func TestRunSessionReportsFailure(t *testing.T) {
	failure := session.WrapError("connect to server", session.ErrSignaling, "refused")
	s := &fakeSession{
		snap:    session.Snapshot{Status: session.StatusFailed, Room: "lobby", Err: failure},
		updates: make(chan session.Snapshot),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunSession(ctx, s, RoomTarget{Room: "lobby"}, true)

	assert.ErrorIs(t, err, session.ErrSignaling)
	assert.True(t, s.closed)
}

func TestRunSessionStartError(t *testing.T) {
	s := &fakeSession{updates: make(chan session.Snapshot), startErr: errors.New("boom")}

	err := RunSession(context.Background(), s, RoomTarget{Room: "lobby"}, true)

	assert.EqualError(t, err, "boom")
	assert.False(t, s.closed)
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := ui.Output
	ui.Output = &buf
	t.Cleanup(func() { ui.Output = prev })
	return &buf
}

func TestRunSessionReportsLeaving(t *testing.T) {
	out := captureOutput(t)
	s := &fakeSession{
		snap:    session.Snapshot{Status: session.StatusConnected, Room: "lobby"},
		updates: make(chan session.Snapshot),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, RunSession(ctx, s, RoomTarget{Room: "lobby"}, true))
	assert.Contains(t, out.String(), "Left room lobby")
}

func TestRunSessionCloseError(t *testing.T) {
	out := captureOutput(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeSession{
		snap:     session.Snapshot{Status: session.StatusConnected, Room: "lobby"},
		updates:  make(chan session.Snapshot),
		closeErr: errors.New("socket closed"),
	}
	err := RunSession(ctx, s, RoomTarget{Room: "lobby"}, true)
	assert.ErrorContains(t, err, "leave room: socket closed")

	// A failed session keeps its own error; the close error is only shown.
	s = &fakeSession{
		snap:     session.Snapshot{Status: session.StatusFailed, Room: "lobby", Err: session.NewError("join room lobby", session.ErrTimeout)},
		updates:  make(chan session.Snapshot),
		closeErr: errors.New("socket closed"),
	}
	err = RunSession(ctx, s, RoomTarget{Room: "lobby"}, true)
	assert.ErrorIs(t, err, session.ErrTimeout)
	assert.Contains(t, out.String(), "leave room: socket closed")
	assert.NotContains(t, out.String(), "Left room")
}
