package ai

import (
	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/speech"
)

const wrongAccusation = "The shadows deceive... the truth remains hidden."

// RevealNarration is what the Orb says after an accusation. Only a correct accusation earns the authored reveal,
// which is the one place the culprit is named.
func RevealNarration(c cases.Case, correct bool) (string, speech.Emotion) {
	if correct && c.RevealNarration != "" {
		return c.RevealNarration, speech.Dramatic
	}
	if correct {
		return "Truth has been unveiled. Justice finds its mark.", speech.Dramatic
	}
	return wrongAccusation, speech.Mysterious
}
