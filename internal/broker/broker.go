package broker

import (
	"context"
	"sync"

	"github.com/myrjola/orb/internal/errors"
)

// ErrStopped is returned when the broker no longer runs.
var ErrStopped = errors.NewSentinel("broker stopped")

type publication[TID comparable, TPayload any] struct {
	id      TID
	channel chan TPayload
}

type subscription[TID comparable, TPayload any] struct {
	id    TID
	reply chan chan TPayload
}

// Broker passes a producer's channel to the first consumer asking for its ID. Consumers arriving while the first one
// is still reading wait until the producer unpublishes and then find nothing, so that they can fall back to a stored
// copy of the data.
//
// The web front end uses it to stream a synthesized clip to the browser exactly once. Refetches are served from
// the clip cache.
type Broker[TID comparable, TPayload any] struct {
	stop        chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	publishes   chan publication[TID, TPayload]
	unpublishes chan TID
	subscribes  chan subscription[TID, TPayload]
}

// New creates a Broker. Run must be called before the broker is used.
func New[TID comparable, TPayload any]() *Broker[TID, TPayload] {
	return &Broker[TID, TPayload]{
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		stopOnce:    sync.Once{},
		publishes:   make(chan publication[TID, TPayload]),
		unpublishes: make(chan TID),
		subscribes:  make(chan subscription[TID, TPayload]),
	}
}

// Run handles publications and subscriptions until ctx is done or Stop is called.
func (b *Broker[TID, TPayload]) Run(ctx context.Context) {
	published := map[TID]chan TPayload{}
	taken := map[TID]bool{}
	waiting := map[TID][]chan chan TPayload{}
	release := func(id TID) {
		for _, w := range waiting[id] {
			close(w)
		}
		delete(waiting, id)
	}
	defer func() {
		for id := range waiting {
			release(id)
		}
		close(b.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return

		case s := <-b.subscribes:
			c, ok := published[s.id]
			switch {
			case !ok:
				close(s.reply)
			case !taken[s.id]:
				taken[s.id] = true
				s.reply <- c
			default:
				waiting[s.id] = append(waiting[s.id], s.reply)
			}

		case p := <-b.publishes:
			published[p.id] = p.channel
			delete(taken, p.id)

		case id := <-b.unpublishes:
			delete(published, id)
			delete(taken, id)
			release(id)
		}
	}
}

// Stop ends Run. Pending and later calls return ErrStopped or nothing.
func (b *Broker[TID, TPayload]) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// Publish makes channel available to the first subscriber of id.
func (b *Broker[TID, TPayload]) Publish(ctx context.Context, id TID, channel chan TPayload) error {
	select {
	case b.publishes <- publication[TID, TPayload]{id: id, channel: channel}:
		return nil
	case <-b.stop:
		return ErrStopped
	case <-b.done:
		return ErrStopped
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "publish")
	}
}

// Unpublish removes id and releases the subscribers waiting for it. The producer should close its channel first.
func (b *Broker[TID, TPayload]) Unpublish(id TID) {
	select {
	case b.unpublishes <- id:
	case <-b.stop:
	case <-b.done:
	}
}

// Subscribe returns the producer's channel for id. It reports false when nothing is published under id, or when
// another subscriber got the channel first and the producer has since finished.
func (b *Broker[TID, TPayload]) Subscribe(ctx context.Context, id TID) (chan TPayload, bool) {
	reply := make(chan chan TPayload, 1)
	select {
	case b.subscribes <- subscription[TID, TPayload]{id: id, reply: reply}:
	case <-b.stop:
		return nil, false
	case <-b.done:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
	select {
	case c, ok := <-reply:
		return c, ok
	case <-b.stop:
		return nil, false
	case <-b.done:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}
