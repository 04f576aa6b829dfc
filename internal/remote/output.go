// Package remote plays the Orb's audio in the player's browser. Clips are announced over a server-sent event stream,
// fetched by the browser and acknowledged when they finish playing.
package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/myrjola/orb/internal/audio"
	"github.com/myrjola/orb/internal/broker"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/speech"
)

var (
	// ErrUnknownClip is returned for clip ids that are not playing or no longer cached.
	ErrUnknownClip = errors.NewSentinel("unknown clip")
	// ErrSuspended is returned by Resume when the browser did not unlock audio in time.
	ErrSuspended = errors.NewSentinel("browser audio suspended")
	// ErrNoAck is returned by Play when the browser never reported the end of playback.
	ErrNoAck = errors.NewSentinel("playback not acknowledged")
)

const (
	// Assumed bitrate of mp3 clips for estimating their length.
	mp3BytesPerSecond = 128_000 / 8
	// Spoken words per second for estimating utterance length.
	wordsPerSecond = 2.5
	chunkSize      = 32 << 10
	clipCacheSize  = 16
)

// Config tunes an Output. Zero values take the defaults.
type Config struct {
	// ResumeTimeout is how long Resume waits for the browser to unlock audio.
	ResumeTimeout time.Duration
	// AckGrace is added to the expected clip length before playback is given up on.
	AckGrace time.Duration
	// OfferTimeout is how long a clip waits for the browser to start fetching it.
	OfferTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ResumeTimeout <= 0 {
		c.ResumeTimeout = 10 * time.Second //nolint:mnd // a user gesture is needed
	}
	if c.AckGrace <= 0 {
		c.AckGrace = 30 * time.Second //nolint:mnd // covers slow networks
	}
	if c.OfferTimeout <= 0 {
		c.OfferTimeout = 30 * time.Second //nolint:mnd // covers slow networks
	}
	return c
}

// Output is an [audio.Output] whose device is a browser tab.
type Output struct {
	cfg    Config
	events *Hub
	broker *broker.Broker[string, []byte]
	clips  *lru.Cache[string, audio.Clip]
	logger *slog.Logger

	mu        sync.Mutex
	active    bool
	activated chan struct{}
	playing   map[string]*track
}

// NewOutput creates an Output announcing clips on events and streaming them through b, which must be running.
func NewOutput(cfg Config, events *Hub, b *broker.Broker[string, []byte], logger *slog.Logger) (*Output, error) {
	clips, err := lru.New[string, audio.Clip](clipCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "new clip cache")
	}
	return &Output{
		cfg:       cfg.withDefaults(),
		events:    events,
		broker:    b,
		clips:     clips,
		logger:    logger.With(slog.String("component", "remote.output")),
		mu:        sync.Mutex{},
		active:    false,
		activated: make(chan struct{}),
		playing:   map[string]*track{},
	}, nil
}

// Suspended reports whether the browser has yet to unlock audio with a user gesture.
func (o *Output) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.active
}

// Activate records that the browser unlocked audio.
func (o *Output) Activate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return
	}
	o.active = true
	close(o.activated)
}

// Resume asks the browser to unlock audio and waits until it has.
func (o *Output) Resume(ctx context.Context) error {
	o.mu.Lock()
	activated := o.activated
	o.mu.Unlock()

	o.events.Publish(Event{Type: EventResume, Data: nil})
	timer := time.NewTimer(o.cfg.ResumeTimeout)
	defer timer.Stop()
	select {
	case <-activated:
		return nil
	case <-timer.C:
		return ErrSuspended
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "resume")
	}
}

// Decode prepares clip for the browser. Nothing is sent before the track plays.
func (o *Output) Decode(_ context.Context, clip audio.Clip) (audio.Track, error) {
	t := &track{
		id:       uuid.NewString(),
		out:      o,
		clip:     clip,
		duration: 0,
		ended:    make(chan struct{}),
		stopped:  make(chan struct{}),
		endOnce:  sync.Once{},
		stopOnce: sync.Once{},
	}
	switch {
	case clip.Utterance != nil:
		t.duration = utteranceLength(clip.Utterance.Text)
	case len(clip.Audio) > 0 && clip.Format == speech.FormatMP3:
		t.duration = time.Duration(float64(len(clip.Audio)) / mp3BytesPerSecond * float64(time.Second))
	case len(clip.Audio) > 0 && clip.Format == speech.FormatWAV:
		// Length unknown, the acknowledgement grace covers it.
	default:
		return nil, errors.Wrap(audio.ErrUnsupported, "decode clip", slog.String("format", string(clip.Format)))
	}
	return t, nil
}

// Ended acknowledges that the browser finished playing clip.
func (o *Output) Ended(clipID string) error {
	o.mu.Lock()
	t, ok := o.playing[clipID]
	o.mu.Unlock()
	if !ok {
		return errors.Wrap(ErrUnknownClip, "ended", slog.String("clip", clipID))
	}
	t.end()
	return nil
}

// Clip returns the encoding of a cached clip.
func (o *Output) Clip(clipID string) (audio.Clip, error) {
	clip, ok := o.clips.Get(clipID)
	if !ok || len(clip.Audio) == 0 {
		return audio.Clip{}, errors.Wrap(ErrUnknownClip, "clip", slog.String("clip", clipID)) //nolint:exhaustruct // zero
	}
	return clip, nil
}

// Stream writes the clip's audio to write. The first fetch streams from the playing track, later fetches are served
// from the cache.
func (o *Output) Stream(ctx context.Context, clipID string, write func([]byte) error) error {
	if chunks, ok := o.broker.Subscribe(ctx, clipID); ok {
		for chunk := range chunks {
			if err := write(chunk); err != nil {
				go drain(chunks)
				return errors.Wrap(err, "write chunk")
			}
		}
		return nil
	}
	clip, err := o.Clip(clipID)
	if err != nil {
		return err
	}
	if err = write(clip.Audio); err != nil {
		return errors.Wrap(err, "write clip")
	}
	return nil
}

// StopAll halts every playing track.
func (o *Output) StopAll() {
	o.mu.Lock()
	tracks := make([]*track, 0, len(o.playing))
	for _, t := range o.playing {
		tracks = append(tracks, t)
	}
	o.mu.Unlock()
	for _, t := range tracks {
		t.Stop()
	}
}

// offer streams the clip to the first fetch of it, or gives up when nobody fetches in time.
func (o *Output) offer(ctx context.Context, t *track) {
	chunks := make(chan []byte)
	if err := o.broker.Publish(ctx, t.id, chunks); err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "could not offer clip", errors.SlogError(err))
		return
	}
	defer o.broker.Unpublish(t.id)
	defer close(chunks)

	timeout := time.NewTimer(o.cfg.OfferTimeout)
	defer timeout.Stop()
	data := t.clip.Audio
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		select {
		case chunks <- data[:n]:
			data = data[n:]
		case <-t.stopped:
			return
		case <-ctx.Done():
			return
		case <-timeout.C:
			o.logger.LogAttrs(ctx, slog.LevelDebug, "clip was not fetched", slog.String("clip", t.id))
			return
		}
	}
}

func (o *Output) register(t *track) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing[t.id] = t
}

func (o *Output) unregister(t *track) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.playing, t.id)
}

func drain(chunks chan []byte) {
	for range chunks { //nolint:revive // discard the rest so that the producer can finish
	}
}

func utteranceLength(text string) time.Duration {
	words := 0
	inWord := false
	for _, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !inWord {
			words++
		}
		inWord = !space
	}
	return time.Duration(float64(words) / wordsPerSecond * float64(time.Second))
}

type track struct {
	id       string
	out      *Output
	clip     audio.Clip
	duration time.Duration
	ended    chan struct{}
	stopped  chan struct{}
	endOnce  sync.Once
	stopOnce sync.Once
}

func (t *track) Duration() time.Duration {
	return t.duration
}

// Play announces the clip to the browser and waits for its acknowledgement.
func (t *track) Play(ctx context.Context) error {
	select {
	case <-t.stopped:
		return audio.ErrStopped
	default:
	}
	o := t.out
	o.register(t)
	defer o.unregister(t)

	if u := t.clip.Utterance; u != nil {
		o.events.Publish(Event{Type: EventSpeak, Data: SpeakData{
			Clip:   t.id,
			Text:   u.Text,
			Rate:   u.Preset.Rate,
			Pitch:  u.Preset.Pitch,
			Volume: u.Preset.Volume,
		}})
	} else {
		o.clips.Add(t.id, t.clip)
		go o.offer(ctx, t)
		o.events.Publish(Event{Type: EventPlay, Data: PlayData{
			Clip:     t.id,
			Format:   string(t.clip.Format),
			URL:      "/api/orb/clips/" + t.id,
			Duration: t.duration.Seconds(),
		}})
	}

	deadline := time.NewTimer(t.duration + o.cfg.AckGrace)
	defer deadline.Stop()
	select {
	case <-t.ended:
		return nil
	case <-t.stopped:
		return audio.ErrStopped
	case <-ctx.Done():
		t.Stop()
		return errors.Wrap(ctx.Err(), "play")
	case <-deadline.C:
		return errors.Wrap(ErrNoAck, "play", slog.String("clip", t.id))
	}
}

// Stop tells the browser to silence the clip.
func (t *track) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopped)
		t.out.events.Publish(Event{Type: EventStop, Data: StopData{Clip: t.id}})
	})
}

func (t *track) end() {
	t.endOnce.Do(func() { close(t.ended) })
}
