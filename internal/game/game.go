// Package game holds the rules around an interrogation: which cases a player may open, judging accusations, and
// keeping the transcript.
package game

import (
	"context"
	"log/slog"

	"github.com/myrjola/orb/internal/ai"
	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/models"
	"github.com/myrjola/orb/internal/speech"
)

var (
	ErrUnknownCase    = errors.NewSentinel("unknown case")
	ErrUnknownSuspect = errors.NewSentinel("unknown suspect")
	ErrLevelLocked    = errors.NewSentinel("level locked")
)

// RevealIntensity is how strongly the reveal narration is voiced.
const RevealIntensity = 0.9

type ProgressStore interface {
	Get(ctx context.Context, playerID string) (models.Progress, error)
	Complete(ctx context.Context, playerID string, level int, next int) error
}

type ExchangeStore interface {
	Append(ctx context.Context, playerID string, caseID string, exchange models.Exchange) (int, error)
	List(ctx context.Context, playerID string, caseID string) ([]models.Exchange, error)
}

// Verdict is the outcome of an accusation.
type Verdict struct {
	Correct   bool
	Suspect   string
	Narration string
	Emotion   speech.Emotion
	// NextLevel is the level unlocked by a correct accusation, zero when none was.
	NextLevel int
}

// Speech is the request for voicing the verdict.
func (v Verdict) Speech() speech.Request {
	return speech.Request{Text: v.Narration, Emotion: v.Emotion, Intensity: RevealIntensity, Recording: ""}
}

type Engine struct {
	catalog   *cases.Catalog
	progress  ProgressStore
	exchanges ExchangeStore
	logger    *slog.Logger
}

func NewEngine(catalog *cases.Catalog, progress ProgressStore, exchanges ExchangeStore, logger *slog.Logger) *Engine {
	return &Engine{
		catalog:   catalog,
		progress:  progress,
		exchanges: exchanges,
		logger:    logger.With(slog.String("component", "game")),
	}
}

// Cases returns every case in level order.
func (e *Engine) Cases() []cases.Case {
	return e.catalog.All()
}

func (e *Engine) Progress(ctx context.Context, playerID string) (models.Progress, error) {
	progress, err := e.progress.Get(ctx, playerID)
	if err != nil {
		return progress, errors.Wrap(err, "get progress")
	}
	return progress, nil
}

// Playable reports whether the player has unlocked level.
func (e *Engine) Playable(ctx context.Context, playerID string, level int) (bool, error) {
	progress, err := e.Progress(ctx, playerID)
	if err != nil {
		return false, err
	}
	return progress.IsUnlocked(level), nil
}

// Case returns the case at level if the player may open it.
func (e *Engine) Case(ctx context.Context, playerID string, level int) (cases.Case, error) {
	mc, err := e.catalog.ByLevel(level)
	if err != nil {
		return mc, errors.Wrap(ErrUnknownCase, "case by level", slog.Int("level", level))
	}
	var playable bool
	if playable, err = e.Playable(ctx, playerID, level); err != nil {
		return mc, err
	}
	if !playable {
		return mc, errors.Wrap(ErrLevelLocked, "case by level", slog.Int("level", level))
	}
	return mc, nil
}

// Accuse judges the player's accusation of suspectID in caseID. A correct accusation completes the level and unlocks
// the next one.
func (e *Engine) Accuse(ctx context.Context, playerID string, caseID string, suspectID string) (Verdict, error) {
	var verdict Verdict
	mc, err := e.catalog.ByID(caseID)
	if err != nil {
		return verdict, errors.Wrap(ErrUnknownCase, "accuse", slog.String("case_id", caseID))
	}
	if _, err = e.Case(ctx, playerID, mc.Level); err != nil {
		return verdict, err
	}
	suspect, ok := mc.Suspect(suspectID)
	if !ok {
		return verdict, errors.Wrap(ErrUnknownSuspect, "accuse",
			slog.String("case_id", caseID), slog.String("suspect_id", suspectID))
	}

	verdict.Correct = suspect.ID == mc.Culprit
	verdict.Suspect = suspect.Name
	verdict.Narration, verdict.Emotion = ai.RevealNarration(mc, verdict.Correct)
	if verdict.Correct {
		verdict.NextLevel = e.catalog.NextLevel(mc.Level)
		if err = e.progress.Complete(ctx, playerID, mc.Level, verdict.NextLevel); err != nil {
			return verdict, errors.Wrap(err, "complete level")
		}
	}

	e.logger.LogAttrs(ctx, slog.LevelInfo, "accusation judged",
		slog.String("case_id", caseID),
		slog.String("suspect_id", suspectID),
		slog.Bool("correct", verdict.Correct))
	return verdict, nil
}

// RecordExchange appends an answered question to the player's transcript of the case.
func (e *Engine) RecordExchange(
	ctx context.Context,
	playerID string,
	caseID string,
	question string,
	resp ai.Response,
) error {
	exchange := models.Exchange{ //nolint:exhaustruct // ordinal and created are assigned by the store
		Question: question,
		Answer:   resp.Text,
		Emotion:  string(resp.Emotion),
		Clue:     resp.RevealedClue,
	}
	if _, err := e.exchanges.Append(ctx, playerID, caseID, exchange); err != nil {
		return errors.Wrap(err, "append exchange", slog.String("case_id", caseID))
	}
	return nil
}

// Transcript lists the player's answered questions for the case.
func (e *Engine) Transcript(ctx context.Context, playerID string, caseID string) ([]models.Exchange, error) {
	exchanges, err := e.exchanges.List(ctx, playerID, caseID)
	if err != nil {
		return nil, errors.Wrap(err, "list exchanges", slog.String("case_id", caseID))
	}
	return exchanges, nil
}
