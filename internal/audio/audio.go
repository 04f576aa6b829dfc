// Package audio plays synthesized speech.
package audio

import (
	"context"
	"time"

	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/speech"
)

var (
	// ErrUnsupported is returned by outputs that cannot render a clip, e.g., an utterance on a device without
	// its own speech synthesis.
	ErrUnsupported = errors.NewSentinel("unsupported clip")
	// ErrStopped is returned by Track.Play when Track.Stop interrupted playback.
	ErrStopped = errors.NewSentinel("playback stopped")
)

// Clip is something to play: encoded audio or an utterance for the device to speak.
type Clip struct {
	Audio     []byte
	Format    speech.Format
	Utterance *speech.Utterance
}

// ClipOf converts synthesized speech to a clip.
func ClipOf(s speech.Speech) Clip {
	return Clip{Audio: s.Audio, Format: s.Format, Utterance: s.Utterance}
}

// Track is a decoded clip ready to play once.
type Track interface {
	// Duration is the expected playback length, zero when unknown.
	Duration() time.Duration
	// Play blocks until the track ends naturally, Stop is called, or ctx is done.
	Play(ctx context.Context) error
	// Stop halts playback immediately. It is safe to call more than once and before Play.
	Stop()
}

// Output decodes and plays clips on some device.
type Output interface {
	// Suspended reports whether the device needs Resume before it can play, e.g., before a user gesture.
	Suspended() bool
	Resume(ctx context.Context) error
	Decode(ctx context.Context, clip Clip) (Track, error)
}

// Discard is an Output that accepts every clip and finishes playing it at once. It backs text-only sessions.
type Discard struct{}

func (Discard) Suspended() bool                { return false }
func (Discard) Resume(_ context.Context) error { return nil }

func (Discard) Decode(_ context.Context, _ Clip) (Track, error) {
	return instantTrack{}, nil
}

type instantTrack struct{}

func (instantTrack) Duration() time.Duration        { return 0 }
func (instantTrack) Play(ctx context.Context) error { return ctx.Err() }
func (instantTrack) Stop()                          {}
