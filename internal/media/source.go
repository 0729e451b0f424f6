package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/device"
	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const (
	// ClockRate and Channels describe the Opus track every stream publishes.
	ClockRate = 48000
	Channels  = 2

	frameDuration = 20 * time.Millisecond
)

var (
	ErrUnsupportedSampleSize = errors.New("unsupported sample size")
	ErrDeviceUnavailable     = errors.New("input device unavailable")
)

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// Source hands out local audio streams. The default input is a silent
// microphone; a device id names an Ogg/Opus file that is played in a loop.
type Source struct {
	open func(name string) (io.ReadSeekCloser, error)
}

// NewSource returns a source reading devices from the file system.
func NewSource() *Source {
	return &Source{
		open: func(name string) (io.ReadSeekCloser, error) {
			return os.Open(name)
		},
	}
}

// Acquire opens the input described by c and starts publishing it on a
// new Opus track. The stream runs until Close is called.
func (s *Source) Acquire(ctx context.Context, c device.Audio) (*LocalStream, error) {
	if c.SampleSize != device.DefaultSampleSize {
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedSampleSize, c.SampleSize)
	}

	var input io.ReadSeekCloser
	if c.HasDevice() {
		f, err := s.open(c.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, c.DeviceID, err)
		}
		if _, _, err := oggreader.NewWith(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, c.DeviceID, err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, c.DeviceID, err)
		}
		input = f
	}

	streamID := uuid.NewString()
	track, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: ClockRate, Channels: Channels},
		"audio",
		streamID,
	)
	if err != nil {
		if input != nil {
			input.Close()
		}
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream := &LocalStream{
		id:          streamID,
		track:       track,
		constraints: c,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	go stream.pump(ctx, input)
	return stream, nil
}

// LocalStream is the microphone audio published to the room.
type LocalStream struct {
	id          string
	track       *pion.TrackLocalStaticSample
	constraints device.Audio
	cancel      context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
}

// ID returns the stream id.
func (l *LocalStream) ID() string { return l.id }

// Track is the pion track to attach to peer connections.
func (l *LocalStream) Track() pion.TrackLocal { return l.track }

// Constraints returns the constraints the stream was opened with.
func (l *LocalStream) Constraints() device.Audio { return l.constraints }

// Close stops publishing and releases the input.
func (l *LocalStream) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		<-l.done
	})
	return nil
}

func (l *LocalStream) pump(ctx context.Context, input io.ReadSeekCloser) {
	defer close(l.done)

	if input == nil {
		l.pumpSilence(ctx)
		return
	}
	defer input.Close()

	for ctx.Err() == nil {
		if err := l.pumpOgg(ctx, input); err != nil {
			slog.Warn("audio input stopped", "stream", l.id, "error", err)
			l.pumpSilence(ctx)
			return
		}
		if _, err := input.Seek(0, io.SeekStart); err != nil {
			slog.Warn("audio input rewind failed", "stream", l.id, "error", err)
			l.pumpSilence(ctx)
			return
		}
	}
}

func (l *LocalStream) pumpSilence(ctx context.Context) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.track.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: frameDuration}); err != nil {
				slog.Debug("write silence", "error", err)
			}
		}
	}
}

// pumpOgg plays input once, pacing pages by their granule positions.
func (l *LocalStream) pumpOgg(ctx context.Context, input io.Reader) error {
	ogg, _, err := oggreader.NewWith(input)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var samples uint64
		if header.GranulePosition > lastGranule {
			samples = header.GranulePosition - lastGranule
		}
		lastGranule = header.GranulePosition
		duration := time.Duration(float64(samples)/ClockRate*1000) * time.Millisecond
		if duration <= 0 {
			duration = frameDuration
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := l.track.WriteSample(pionmedia.Sample{Data: page, Duration: duration}); err != nil {
			slog.Debug("write audio sample", "error", err)
		}
	}
}
