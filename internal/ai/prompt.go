package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/speech"
)

const maxReplyTokens = 400

var emotionNames = []string{
	string(speech.Mysterious), string(speech.Serious), string(speech.Dramatic), string(speech.Whispering),
	string(speech.Laughing), string(speech.Crying), string(speech.Giggling), string(speech.Sad),
	string(speech.Excited), string(speech.Angry), string(speech.Surprised),
}

func systemPrompt(req Request) string {
	c := req.Case
	var b strings.Builder
	fmt.Fprintf(&b, `You are the Orb, an ancient oracle that witnessed the death of %s at %s (%s).
A detective questions you. You know the whole truth but speak in riddles. Rules:
- Answer truthfully, using only the facts below. Never invent new facts.
- Never name the murderer and never confirm or deny anyone's guilt directly.
- Be cryptic and atmospheric, at most three sentences.

Key facts:
`, c.Victim, c.Location, c.TimeOfDeath)
	for _, fact := range c.KeyFacts {
		fmt.Fprintf(&b, "- %s\n", fact)
	}
	b.WriteString("\nSuspects:\n")
	for _, s := range c.Suspects {
		fmt.Fprintf(&b, "- %s (%s). Alibi: %s Motive: %s\n", s.Name, s.ID, s.Alibi, s.Motive)
		for _, clue := range s.Clues {
			fmt.Fprintf(&b, "  - clue: %s\n", clue)
		}
	}
	fmt.Fprintf(&b, "\nFor your reasoning only, never to be revealed: the murderer is %s.\n", c.CulpritName())
	fmt.Fprintf(&b, `
Reply with a JSON object with the keys:
"text": your answer,
"emotion": one of %s,
"confidence": how clearly the answer points at the truth, from 0 to 1,
"revealedClue": the exact clue text your answer hints at, or "".`, strings.Join(emotionNames, ", "))
	return b.String()
}

func userPrompt(req Request) string {
	var b strings.Builder
	g := req.Game
	fmt.Fprintf(&b, "This is question %d of %d.\n", g.QuestionsAsked, g.MaxQuestions)
	if len(g.PreviousQuestions) > 1 {
		b.WriteString("Earlier questions:\n")
		for _, q := range g.PreviousQuestions[:len(g.PreviousQuestions)-1] {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	if len(g.RevealedClues) > 0 {
		b.WriteString("Clues you already hinted at:\n")
		for _, clue := range g.RevealedClues {
			fmt.Fprintf(&b, "- %s\n", clue)
		}
	}
	fmt.Fprintf(&b, "Question: %s", req.Question)
	return b.String()
}

type reply struct {
	Text         string  `json:"text"`
	Emotion      string  `json:"emotion"`
	Confidence   float64 `json:"confidence"`
	RevealedClue string  `json:"revealedClue"`
}

// parseReply decodes a model reply, tolerating code fences around the JSON document.
func parseReply(raw string) (Response, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var r reply
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &r); err != nil {
		return Response{}, errors.Join( //nolint:exhaustruct // zero value
			ErrMalformed, errors.Wrap(err, "unmarshal reply", slog.Int("length", len(raw))))
	}
	if strings.TrimSpace(r.Text) == "" {
		return Response{}, errors.Wrap(ErrMalformed, "empty text") //nolint:exhaustruct // zero value
	}
	return Response{
		Text:         strings.TrimSpace(r.Text),
		Emotion:      speech.ParseEmotion(r.Emotion),
		Confidence:   r.Confidence,
		IsAmbiguous:  false,
		RevealedClue: strings.TrimSpace(r.RevealedClue),
		Source:       "",
	}, nil
}
