// Package ai answers the detective's questions in the Orb's voice.
package ai

import (
	"context"

	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/speech"
)

var (
	// ErrTruncated is returned when the model stopped at its token limit.
	ErrTruncated = errors.NewSentinel("truncated reply")
	// ErrMalformed is returned when the model reply is not the expected JSON document.
	ErrMalformed = errors.NewSentinel("malformed reply")
)

// GameState is the case-scoped progress the answer may take into account. QuestionsAsked and PreviousQuestions
// include the question being answered.
type GameState struct {
	QuestionsAsked    int
	MaxQuestions      int
	PreviousQuestions []string
	RevealedClues     []string
}

// Remaining returns how many questions the detective may still ask.
func (g GameState) Remaining() int {
	return max(g.MaxQuestions-g.QuestionsAsked, 0)
}

type Request struct {
	Question string
	Case     cases.Context
	Game     GameState
}

type Response struct {
	Text       string
	Emotion    speech.Emotion
	Confidence float64
	// IsAmbiguous marks deliberately vague answers such as the fallback lines.
	IsAmbiguous  bool
	RevealedClue string
	// Source names the provider that produced the answer.
	Source string
}

// Provider is a remote language model. It fails loudly so that callers can fall back.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// Answerer always produces an in-character answer.
type Answerer interface {
	Answer(ctx context.Context, req Request) Response
}
