package capture

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/myrjola/orb/internal/errors"
)

type outcome struct {
	utterance Utterance
	err       error
}

// Relay is a Recognizer fed by a remote client, such as a browser running its own speech recognition, that
// submits the final transcript over the network.
type Relay struct {
	mu        sync.Mutex
	pending   chan outcome
	available bool
	now       func() time.Time
}

func NewRelay() *Relay {
	return &Relay{
		mu:        sync.Mutex{},
		pending:   nil,
		available: true,
		now:       time.Now,
	}
}

// SetAvailable records whether the client reported speech recognition support.
func (r *Relay) SetAvailable(available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = available
}

func (r *Relay) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// Listening reports whether a capture session is waiting for the client.
func (r *Relay) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

func (r *Relay) Listen(ctx context.Context) (Utterance, error) {
	ch := make(chan outcome, 1)
	r.mu.Lock()
	// A session cancelled before it registered must not displace a newer one.
	if err := ctx.Err(); err != nil {
		r.mu.Unlock()
		return Utterance{}, errors.Wrap(err, "listen cancelled") //nolint:exhaustruct // zero value
	}
	r.pending = ch
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		r.mu.Lock()
		if r.pending == ch {
			r.pending = nil
		}
		r.mu.Unlock()
		return Utterance{}, errors.Wrap(ctx.Err(), "listen cancelled") //nolint:exhaustruct // zero value
	case o := <-ch:
		return o.utterance, o.err
	}
}

func (r *Relay) deliver(o outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return ErrNotListening
	}
	r.pending <- o
	r.pending = nil
	return nil
}

// Submit delivers the final transcript to the open capture session.
func (r *Relay) Submit(text string, confidence float64) error {
	return r.deliver(outcome{
		utterance: Utterance{Text: strings.TrimSpace(text), Confidence: confidence, CapturedAt: r.now()},
		err:       nil,
	})
}

// Fail ends the open capture session with a classified error.
func (r *Relay) Fail(kind Kind, detail string) error {
	var cause error
	if detail != "" {
		cause = errors.New(detail, slog.String("kind", string(kind)))
	}
	return r.deliver(outcome{
		utterance: Utterance{}, //nolint:exhaustruct // zero value
		err:       &Error{Kind: kind, Err: cause},
	})
}
