package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/myrjola/orb/internal/ai"
	"github.com/myrjola/orb/internal/capture"
	"github.com/myrjola/orb/internal/config"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/logging"
	"github.com/myrjola/orb/internal/pipeline"
	"github.com/myrjola/orb/internal/remote"
	"golang.org/x/time/rate"
)

// player is one detective's live pipeline and the browser-facing ends of it.
type player struct {
	id         string
	controller *pipeline.Controller
	capture    *capture.Relay
	output     *remote.Output
	events     *remote.Hub
	limiter    *rate.Limiter

	mu sync.Mutex
	// asked is the latest question, recorded with its answer once the Orb responds.
	asked       askedQuestion
	unsubscribe []func()
}

type askedQuestion struct {
	caseID   string
	question string
}

func (p *player) setAsked(q askedQuestion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = q
}

func (p *player) lastAsked() askedQuestion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asked
}

func (p *player) close() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()
	for _, fn := range unsubscribe {
		fn()
	}
	p.controller.Close()
	p.output.StopAll()
	p.events.Close()
}

// playerRegistry keeps the live players. Players idle for longer than the TTL, or the least recently seen ones beyond
// the size limit, are closed.
type playerRegistry struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, *player]
	create  func(ctx context.Context, id string) (*player, error)
	baseCtx context.Context //nolint:containedctx // players outlive the request that created them
}

func newPlayerRegistry(
	ctx context.Context,
	cfg config.Config,
	create func(ctx context.Context, id string) (*player, error),
) *playerRegistry {
	onEvict := func(_ string, p *player) {
		p.close()
	}
	return &playerRegistry{
		mu:      sync.Mutex{},
		cache:   expirable.NewLRU[string, *player](cfg.MaxPlayers, onEvict, cfg.PlayerTTL),
		create:  create,
		baseCtx: ctx,
	}
}

// get returns the player with id, creating it when needed, and refreshes its TTL.
func (r *playerRegistry) get(id string) (*player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.cache.Get(id)
	if !ok {
		var err error
		if p, err = r.create(r.baseCtx, id); err != nil {
			return nil, err
		}
	}
	r.cache.Add(id, p)
	return p, nil
}

// purge closes every player.
func (r *playerRegistry) purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
}

func (app *application) newPlayer(ctx context.Context, id string) (*player, error) {
	ctx = logging.WithAttrs(ctx, slog.String("player_id", id))
	logger := app.logger.With(slog.String("player_id", id))

	events := remote.NewHub(logger)
	output, err := remote.NewOutput(remote.Config{}, events, app.clips, logger) //nolint:exhaustruct // defaults
	if err != nil {
		return nil, errors.Wrap(err, "new remote output")
	}
	relay := capture.NewRelay()
	controller := pipeline.New(ctx, pipeline.Config{ //nolint:exhaustruct // defaults
		MaxQuestions: app.cfg.MaxQuestions,
	}, pipeline.Dependencies{
		Capture:  relay,
		Answers:  app.answers,
		Narrator: app.narrator,
		Voice:    app.voice,
		Output:   output,
	}, app.logger)

	limit := rate.Inf
	if app.cfg.PlayerRequestsPerSecond > 0 {
		limit = rate.Limit(app.cfg.PlayerRequestsPerSecond)
	}
	p := &player{ //nolint:exhaustruct // asked is empty until the first question
		id:         id,
		controller: controller,
		capture:    relay,
		output:     output,
		events:     events,
		limiter:    rate.NewLimiter(limit, max(app.cfg.PlayerBurst, 1)),
	}
	p.unsubscribe = []func(){
		controller.OnStateChange(func(s pipeline.Status) {
			events.Publish(remote.Event{Type: remote.EventStatus, Data: s})
		}),
		controller.OnQuestion(func(q pipeline.Question) {
			caseID := ""
			if mc, ok := controller.Case(); ok {
				caseID = mc.ID
			}
			p.setAsked(askedQuestion{caseID: caseID, question: q.Text})
			events.Publish(remote.Event{Type: remote.EventQuestion, Data: q})
		}),
		controller.OnResponse(func(resp ai.Response) {
			events.Publish(remote.Event{Type: remote.EventResponse, Data: newResponseView(resp)})
			app.recordExchange(ctx, p, resp)
		}),
		controller.OnTextOnly(func(text string) {
			events.Publish(remote.Event{Type: remote.EventTextOnly, Data: textOnlyView{Text: text}})
		}),
	}
	app.logger.LogAttrs(ctx, slog.LevelDebug, "player created")
	return p, nil
}

func (app *application) recordExchange(ctx context.Context, p *player, resp ai.Response) {
	asked := p.lastAsked()
	if asked.caseID == "" {
		return
	}
	if err := app.game.RecordExchange(ctx, p.id, asked.caseID, asked.question, resp); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "failed to record exchange", errors.SlogError(err))
	}
}

type responseView struct {
	Text         string  `json:"text"`
	Emotion      string  `json:"emotion"`
	Confidence   float64 `json:"confidence"`
	IsAmbiguous  bool    `json:"isAmbiguous"`
	RevealedClue string  `json:"revealedClue,omitempty"`
	Source       string  `json:"source"`
}

func newResponseView(resp ai.Response) responseView {
	return responseView{
		Text:         resp.Text,
		Emotion:      string(resp.Emotion),
		Confidence:   resp.Confidence,
		IsAmbiguous:  resp.IsAmbiguous,
		RevealedClue: resp.RevealedClue,
		Source:       resp.Source,
	}
}

type textOnlyView struct {
	Text string `json:"text"`
}
