package speech

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/orb/internal/errors"
)

// Attempt records how a single strategy fared.
type Attempt struct {
	Strategy string
	Err      error
	Bytes    int
	Elapsed  time.Duration
}

// Outcome is the result of running the whole chain.
type Outcome struct {
	Speech   *Speech
	Attempts []Attempt
}

// Exhausted reports that no strategy produced speech and the line should be shown as text only.
func (o Outcome) Exhausted() bool {
	return o.Speech == nil
}

// Chain tries strategies in order until one succeeds.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		logger:     logger.With(slog.String("component", "speech.chain")),
	}
}

// Strategies returns the names of the configured strategies in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Speak runs the strategies in order and stops at the first success or when ctx is done.
func (c *Chain) Speak(ctx context.Context, req Request) Outcome {
	outcome := Outcome{Speech: nil, Attempts: make([]Attempt, 0, len(c.strategies))}
	for _, strategy := range c.strategies {
		if ctx.Err() != nil {
			outcome.Attempts = append(outcome.Attempts, Attempt{
				Strategy: strategy.Name(), Err: errors.Wrap(ctx.Err(), "chain cancelled"), Bytes: 0, Elapsed: 0,
			})
			break
		}

		start := time.Now()
		result := strategy.Synthesize(ctx, req)
		attempt := Attempt{Strategy: strategy.Name(), Err: result.Err, Bytes: 0, Elapsed: time.Since(start)}
		if result.Speech != nil {
			attempt.Bytes = len(result.Speech.Audio)
		}
		if result.Err == nil && result.Speech == nil {
			attempt.Err = errors.New("strategy returned nothing", slog.String("strategy", strategy.Name()))
		}
		outcome.Attempts = append(outcome.Attempts, attempt)

		if attempt.Err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "speech strategy failed",
				slog.String("strategy", strategy.Name()),
				slog.Duration("elapsed", attempt.Elapsed),
				errors.SlogError(attempt.Err))
			continue
		}

		c.logger.LogAttrs(ctx, slog.LevelDebug, "speech strategy succeeded",
			slog.String("strategy", strategy.Name()),
			slog.Int("bytes", attempt.Bytes),
			slog.Duration("elapsed", attempt.Elapsed))
		outcome.Speech = result.Speech
		return outcome
	}

	c.logger.LogAttrs(ctx, slog.LevelWarn, "speech chain exhausted", slog.Int("attempts", len(outcome.Attempts)))
	return outcome
}
