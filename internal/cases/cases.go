// Package cases holds the murder cases the Orb can narrate and the facts it answers from.
package cases

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/myrjola/orb/internal/errors"
)

//go:embed cases.json
var catalogJSON []byte

var ErrNotFound = errors.NewSentinel("case not found")

type Victim struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Suspect struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Alibi      string   `json:"alibi"`
	Motive     string   `json:"motive"`
	Clues      []string `json:"clues"`
	Appearance string   `json:"appearance"`
}

// Case is an authored murder case including its answer key.
type Case struct {
	ID              string    `json:"id"`
	Level           int       `json:"level"`
	Title           string    `json:"title"`
	Subtitle        string    `json:"subtitle"`
	Victim          Victim    `json:"victim"`
	Location        string    `json:"location"`
	TimeOfDeath     string    `json:"timeOfDeath"`
	Setting         string    `json:"setting"`
	IntroNarration  string    `json:"introNarration"`
	Suspects        []Suspect `json:"suspects"`
	Culprit         string    `json:"culprit"`
	KeyFacts        []string  `json:"keyFacts"`
	Solution        string    `json:"solution"`
	RevealNarration string    `json:"revealNarration"`
}

// Suspect looks up a suspect by id.
func (c Case) Suspect(id string) (Suspect, bool) {
	i := slices.IndexFunc(c.Suspects, func(s Suspect) bool { return s.ID == id })
	if i < 0 {
		return Suspect{}, false //nolint:exhaustruct // zero value
	}
	return c.Suspects[i], true
}

// Context is the read-only view of a case handed to answer generators.
type Context struct {
	CaseID      string
	Victim      string
	Location    string
	TimeOfDeath string
	Suspects    []Suspect
	Culprit     string
	KeyFacts    []string
}

// Context builds the answer generator's view of the case.
func (c Case) Context() Context {
	suspects := make([]Suspect, len(c.Suspects))
	copy(suspects, c.Suspects)
	return Context{
		CaseID:      c.ID,
		Victim:      c.Victim.Name,
		Location:    c.Location,
		TimeOfDeath: c.TimeOfDeath,
		Suspects:    suspects,
		Culprit:     c.Culprit,
		KeyFacts:    slices.Clone(c.KeyFacts),
	}
}

// CulpritName returns the culprit's display name.
func (c Context) CulpritName() string {
	for _, s := range c.Suspects {
		if s.ID == c.Culprit {
			return s.Name
		}
	}
	return ""
}

// Catalog is an immutable, level-ordered collection of cases.
type Catalog struct {
	cases []Case
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogJSON)
}

// Parse reads a catalog from JSON and validates that every case names a culprit among its suspects.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Cases []Case `json:"cases"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "unmarshal cases")
	}

	seen := map[int]bool{}
	for _, c := range doc.Cases {
		if _, ok := c.Suspect(c.Culprit); !ok {
			return nil, errors.New("culprit is not a suspect",
				slog.String("case_id", c.ID), slog.String("culprit", c.Culprit))
		}
		if seen[c.Level] {
			return nil, errors.New("duplicate level", slog.String("case_id", c.ID), slog.Int("level", c.Level))
		}
		seen[c.Level] = true
	}
	slices.SortFunc(doc.Cases, func(a, b Case) int { return a.Level - b.Level })

	return &Catalog{cases: doc.Cases}, nil
}

// All returns the cases ordered by level.
func (c *Catalog) All() []Case {
	return slices.Clone(c.cases)
}

func (c *Catalog) ByID(id string) (Case, error) {
	for _, mc := range c.cases {
		if mc.ID == id {
			return mc, nil
		}
	}
	return Case{}, errors.Wrap(ErrNotFound, "by id", slog.String("case_id", id)) //nolint:exhaustruct // zero value
}

func (c *Catalog) ByLevel(level int) (Case, error) {
	for _, mc := range c.cases {
		if mc.Level == level {
			return mc, nil
		}
	}
	return Case{}, errors.Wrap(ErrNotFound, "by level", slog.Int("level", level)) //nolint:exhaustruct // zero value
}

// NextLevel returns the level after level, or 0 when level is the last one.
func (c *Catalog) NextLevel(level int) int {
	for _, mc := range c.cases {
		if mc.Level > level {
			return mc.Level
		}
	}
	return 0
}
