package ai

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/speech"
	"golang.org/x/time/rate"
)

// fallbackLines are spoken when every provider fails.
var fallbackLines = []string{
	"The shadows whisper of mysteries beyond mortal comprehension...",
	"The shadows hold many secrets... but this truth awaits your discovery.",
	"Perhaps consider the timing of events...",
}

const (
	fallbackConfidence = 0.3
	// minClueMatch is the shortest partial clue accepted as a reference to an authored clue.
	minClueMatch = 12
)

// ChainConfig configures a Chain.
type ChainConfig struct {
	// Timeout bounds each provider call.
	Timeout time.Duration
	// RequestsPerSecond limits calls to the providers. Zero or less disables the limit.
	RequestsPerSecond float64
	Burst             int
}

// Chain asks each provider in turn and falls back to an in-character line. Every answer is scrubbed so that it
// never names the culprit.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	limiter   *rate.Limiter
	rotation  atomic.Uint64
	logger    *slog.Logger
}

func NewChain(cfg ChainConfig, logger *slog.Logger, providers ...Provider) *Chain {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second //nolint:mnd // generous for slow models
	}
	return &Chain{
		providers: providers,
		timeout:   timeout,
		limiter:   rate.NewLimiter(limit, burst),
		rotation:  atomic.Uint64{},
		logger:    logger.With(slog.String("component", "ai.chain")),
	}
}

// Answer never fails. Provider errors, timeouts and throttling all end in a fallback line.
func (c *Chain) Answer(ctx context.Context, req Request) Response {
	for _, p := range c.providers {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "answer throttled", errors.SlogError(errors.Wrap(err, "wait")))
			break
		}

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := p.Complete(callCtx, req)
		cancel()
		if err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "answer provider failed",
				slog.String("provider", p.Name()),
				slog.Duration("elapsed", time.Since(start)),
				errors.SlogError(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		resp.Source = p.Name()
		return c.sanitize(ctx, req, resp)
	}

	return c.Fallback()
}

// Fallback returns the next canned line.
func (c *Chain) Fallback() Response {
	n := c.rotation.Add(1) - 1
	return Response{
		Text:         fallbackLines[n%uint64(len(fallbackLines))],
		Emotion:      speech.Mysterious,
		Confidence:   fallbackConfidence,
		IsAmbiguous:  true,
		RevealedClue: "",
		Source:       "fallback",
	}
}

func (c *Chain) sanitize(ctx context.Context, req Request, resp Response) Response {
	text, redacted := guardCulprit(resp.Text, req.Case)
	if redacted {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "answer named the culprit",
			slog.String("provider", resp.Source), slog.String("case_id", req.Case.CaseID))
		resp.IsAmbiguous = true
	}
	resp.Text = text
	resp.Confidence = max(0, min(1, resp.Confidence))
	resp.RevealedClue = knownClue(req, resp.RevealedClue)
	return resp
}

// knownClue keeps a revealed clue only when it matches authored case material.
func knownClue(req Request, clue string) string {
	if clue == "" {
		return ""
	}
	want := strings.ToLower(strings.TrimSpace(clue))
	candidates := append([]string{}, req.Case.KeyFacts...)
	for _, s := range req.Case.Suspects {
		candidates = append(candidates, s.Clues...)
	}
	for _, candidate := range candidates {
		lower := strings.ToLower(candidate)
		if lower == want || (len(want) >= minClueMatch && (strings.Contains(lower, want) || strings.Contains(want, lower))) {
			return candidate
		}
	}
	return ""
}
