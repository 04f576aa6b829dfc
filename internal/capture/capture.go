// Package capture turns one spoken utterance into text.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/myrjola/orb/internal/errors"
)

// ErrNotListening is returned when a result arrives while no capture session is open.
var ErrNotListening = errors.NewSentinel("not listening")

// Utterance is the final transcript of one capture session.
type Utterance struct {
	Text string
	// Confidence in [0,1] as reported by the recognizer. Zero is common for perfectly good speech.
	Confidence float64
	CapturedAt time.Time
}

// Recognizer captures a single utterance. Listen blocks until there is exactly one final result, an error, or ctx is
// done. A cancelled session never delivers a result.
type Recognizer interface {
	Listen(ctx context.Context) (Utterance, error)
	Available() bool
}

// Kind classifies capture failures.
type Kind string

const (
	KindNoSpeech          Kind = "no-speech"
	KindPermissionDenied  Kind = "permission-denied"
	KindDeviceUnavailable Kind = "device-unavailable"
	KindOther             Kind = "other"
)

// ParseKind maps client supplied kinds, including the browser's SpeechRecognition error codes, to a Kind.
func ParseKind(s string) Kind {
	switch s {
	case string(KindNoSpeech):
		return KindNoSpeech
	case string(KindPermissionDenied), "not-allowed", "service-not-allowed":
		return KindPermissionDenied
	case string(KindDeviceUnavailable), "audio-capture":
		return KindDeviceUnavailable
	default:
		return KindOther
	}
}

// Error is a classified capture failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, KindOther when err is not a classified capture error.
func KindOf(err error) Kind {
	var captureErr *Error
	if errors.As(err, &captureErr) {
		return captureErr.Kind
	}
	return KindOther
}

// Message is the user facing hint for a failure of kind.
func Message(kind Kind, err error) string {
	switch kind {
	case KindNoSpeech:
		return "No speech detected - try speaking louder or closer to microphone"
	case KindPermissionDenied:
		return "Microphone permission denied - please allow microphone access"
	case KindDeviceUnavailable:
		return "Microphone access denied or not available"
	case KindOther:
	}
	if err == nil {
		return "Speech recognition error"
	}
	return "Speech recognition error: " + err.Error()
}
