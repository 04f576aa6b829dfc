// Package speaker plays clips on the local sound device with ebiten's audio stack.
package speaker

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	ebitenaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/myrjola/orb/internal/audio"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/speech"
)

const (
	// SampleRate is the rate clips are resampled to.
	SampleRate = 44100
	// Decoded streams are 16-bit little endian stereo.
	bytesPerFrame = 4
	pollInterval  = 20 * time.Millisecond
)

// Speaker is an audio.Output backed by the default sound device.
type Speaker struct {
	context      *ebitenaudio.Context
	readyTimeout time.Duration
	logger       *slog.Logger
}

// New returns a Speaker. ebiten allows a single audio context per process, so it is shared between speakers.
func New(logger *slog.Logger) *Speaker {
	c := ebitenaudio.CurrentContext()
	if c == nil {
		c = ebitenaudio.NewContext(SampleRate)
	}
	return &Speaker{
		context:      c,
		readyTimeout: 2 * time.Second, //nolint:mnd // device start up
		logger:       logger.With(slog.String("component", "speaker")),
	}
}

func (s *Speaker) Suspended() bool {
	return !s.context.IsReady()
}

// Resume waits for the device to become ready.
func (s *Speaker) Resume(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.readyTimeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for !s.context.IsReady() {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait for audio device")
		case <-ticker.C:
		}
	}
	return nil
}

type stream interface {
	io.ReadSeeker
	Length() int64
}

func (s *Speaker) Decode(_ context.Context, clip audio.Clip) (audio.Track, error) {
	if clip.Utterance != nil || len(clip.Audio) == 0 {
		return nil, errors.Wrap(audio.ErrUnsupported, "speaker plays encoded audio only")
	}

	var (
		decoded stream
		err     error
	)
	switch clip.Format {
	case speech.FormatMP3:
		decoded, err = mp3.DecodeWithSampleRate(SampleRate, bytes.NewReader(clip.Audio))
	case speech.FormatWAV:
		decoded, err = wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(clip.Audio))
	default:
		return nil, errors.Wrap(audio.ErrUnsupported, "unknown format", slog.String("format", string(clip.Format)))
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode clip", slog.String("format", string(clip.Format)))
	}

	player, err := s.context.NewPlayer(decoded)
	if err != nil {
		return nil, errors.Wrap(err, "new player")
	}

	frames := decoded.Length() / bytesPerFrame
	return &track{
		player:   player,
		duration: time.Duration(frames) * time.Second / SampleRate,
		stopped:  make(chan struct{}),
		once:     sync.Once{},
	}, nil
}

type track struct {
	player   *ebitenaudio.Player
	duration time.Duration
	stopped  chan struct{}
	once     sync.Once
}

func (t *track) Duration() time.Duration {
	return t.duration
}

func (t *track) Play(ctx context.Context) error {
	select {
	case <-t.stopped:
		return audio.ErrStopped
	default:
	}
	t.player.Play()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Wrap(ctx.Err(), "play")
		case <-t.stopped:
			return audio.ErrStopped
		case <-ticker.C:
			if !t.player.IsPlaying() {
				return nil
			}
		}
	}
}

func (t *track) Stop() {
	t.once.Do(func() {
		t.player.Pause()
		close(t.stopped)
	})
}
