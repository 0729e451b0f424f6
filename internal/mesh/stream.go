package mesh

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// activeWindow is how long after the last packet a stream counts as live.
const activeWindow = time.Second

// RemoteStream is an audio stream received from one peer.
type RemoteStream struct {
	id       string
	peerID   string
	lastSeen atomic.Int64
	bytes    atomic.Int64
	done     chan struct{}
}

func newRemoteStream(peerID, id string) *RemoteStream {
	return &RemoteStream{
		id:     id,
		peerID: peerID,
		done:   make(chan struct{}),
	}
}

// ID returns the remote stream id.
func (s *RemoteStream) ID() string { return s.id }

// PeerID returns the peer the stream comes from.
func (s *RemoteStream) PeerID() string { return s.peerID }

// Active reports whether audio arrived recently.
func (s *RemoteStream) Active() bool {
	last := s.lastSeen.Load()
	return last != 0 && time.Since(time.Unix(0, last)) < activeWindow
}

// Bytes is the amount of RTP payload received so far.
func (s *RemoteStream) Bytes() int64 {
	return s.bytes.Load()
}

// Done is closed when the remote track ends.
func (s *RemoteStream) Done() <-chan struct{} {
	return s.done
}

func (s *RemoteStream) mark(n int) {
	s.lastSeen.Store(time.Now().UnixNano())
	s.bytes.Add(int64(n))
}

// recordingPath names the file a stream is recorded to, one per peer and
// stream.
func (s *RemoteStream) recordingPath(dir string) string {
	return filepath.Join(dir, s.peerID+"-"+s.id+".ogg")
}

// drain reads the track until it ends. Reading keeps RTCP flowing; when
// recordDir is set the audio is also written to <recordDir>/<peer>-<stream>.ogg.
func (s *RemoteStream) drain(track *pion.TrackRemote, recordDir string) {
	defer close(s.done)

	var writer *oggwriter.OggWriter
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	if recordDir != "" {
		codec := track.Codec()
		name := s.recordingPath(recordDir)
		w, err := oggwriter.New(name, codec.ClockRate, codec.Channels)
		if err != nil {
			slog.Warn("cannot record stream", "peer", s.peerID, "file", name, "error", err)
		} else {
			writer = w
		}
	}

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote track ended", "peer", s.peerID, "error", err)
			}
			return
		}
		s.mark(len(pkt.Payload))

		if writer != nil {
			if err := writer.WriteRTP(pkt); err != nil {
				slog.Warn("record stream", "peer", s.peerID, "error", err)
				writer.Close()
				writer = nil
			}
		}
	}
}
