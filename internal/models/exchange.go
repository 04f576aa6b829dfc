package models

import "time"

// Exchange is one answered question in an interrogation of the Orb.
type Exchange struct {
	Ordinal  int
	Question string
	Answer   string
	Emotion  string
	Clue     string
	Created  time.Time
}
