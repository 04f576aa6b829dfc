package remote

import (
	"context"
	"log/slog"
	"sync"
)

// Event types sent to the browser.
const (
	EventStatus   = "status"
	EventQuestion = "question"
	EventResponse = "response"
	EventTextOnly = "text"
	EventPlay     = "play"
	EventSpeak    = "speak"
	EventStop     = "stop"
	EventResume   = "resume"
)

// Event is one server-sent event. Data is encoded as JSON.
type Event struct {
	Type string
	Data any
}

type PlayData struct {
	Clip     string  `json:"clip"`
	Format   string  `json:"format"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// SpeakData asks the browser to voice the text with its own speech synthesis.
type SpeakData struct {
	Clip   string  `json:"clip"`
	Text   string  `json:"text"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

type StopData struct {
	Clip string `json:"clip"`
}

const subscriberBuffer = 64

// Hub fans events out to every open event stream of a player, such as several tabs.
type Hub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		mu:     sync.Mutex{},
		next:   0,
		subs:   map[int]chan Event{},
		closed: false,
		logger: logger.With(slog.String("component", "remote.hub")),
	}
}

// Subscribe returns a channel of events and a function that ends the subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish sends e to every subscriber without blocking. Subscribers that fall behind miss events.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.LogAttrs(context.Background(), slog.LevelWarn, "event dropped",
				slog.Int("subscriber", id), slog.String("type", e.Type))
		}
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
