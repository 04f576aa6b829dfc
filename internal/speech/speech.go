// Package speech turns the Orb's lines into audio through an ordered chain of synthesis strategies.
package speech

import (
	"context"

	"github.com/myrjola/orb/internal/errors"
)

var (
	// ErrEmptyAudio is returned when a provider answers successfully with zero bytes of audio.
	ErrEmptyAudio = errors.NewSentinel("empty audio payload")
	// ErrUnavailable is returned by strategies that cannot run in this environment or for this request.
	ErrUnavailable = errors.NewSentinel("strategy unavailable")
)

// Format identifies the encoding of synthesized audio.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// Request is a line to speak.
type Request struct {
	Text      string
	Emotion   Emotion
	Intensity float64
	// Recording names a pre-recorded rendition of Text, e.g., "level1". Empty when none exists.
	Recording string
}

// Utterance asks the client device to synthesize the text itself.
type Utterance struct {
	Text   string
	Preset Preset
}

// Speech is a successful synthesis. Exactly one of Audio and Utterance is set.
type Speech struct {
	Audio     []byte
	Format    Format
	Utterance *Utterance
	Provider  string
	Voice     string
}

// Result is the outcome of one strategy.
type Result struct {
	Speech *Speech
	Err    error
}

func succeeded(s Speech) Result {
	return Result{Speech: &s, Err: nil}
}

func failed(err error) Result {
	return Result{Speech: nil, Err: err}
}

// OK reports whether the strategy produced speech.
func (r Result) OK() bool {
	return r.Err == nil && r.Speech != nil
}

// Strategy is one way of producing speech. Implementations report failure through Result and never panic.
type Strategy interface {
	Name() string
	Synthesize(ctx context.Context, req Request) Result
}
