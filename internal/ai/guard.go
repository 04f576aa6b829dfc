package ai

import (
	"regexp"
	"strings"

	"github.com/myrjola/orb/internal/cases"
)

const deflection = "That name is yours to speak, detective, not mine."

var (
	sentenceSplit = regexp.MustCompile(`[^.!?…]+[.!?…]*`)
	accusations   = []string{
		"murderer", "murdered", "killer", "killed", "culprit", "guilty", "did it", "poisoned", "struck him",
		"responsible for", "took his life", "is the one",
	}
	honorifics = map[string]bool{
		"lord": true, "lady": true, "count": true, "dr": true, "doctor": true, "professor": true, "sir": true,
		"von": true, "van": true, "the": true, "mr": true, "mrs": true, "miss": true,
	}
)

// culpritNames lists the ways a reply could name the culprit: the full name, the id and the distinctive
// parts of the name.
func culpritNames(c cases.Context) []string {
	var names []string
	full := strings.ToLower(c.CulpritName())
	if full != "" {
		names = append(names, full)
	}
	if c.Culprit != "" {
		names = append(names, strings.ToLower(c.Culprit), strings.ReplaceAll(strings.ToLower(c.Culprit), "-", " "))
	}
	for _, part := range strings.Fields(full) {
		part = strings.Trim(part, ".,'")
		if len(part) >= 4 && !honorifics[part] { //nolint:mnd // skip short particles
			names = append(names, part)
		}
	}
	return names
}

// culpritPattern matches any of the culprit's names as whole words in lower-cased text. It is nil when the case names
// no culprit.
func culpritPattern(c cases.Context) *regexp.Regexp {
	names := culpritNames(c)
	if len(names) == 0 {
		return nil
	}
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = regexp.QuoteMeta(name)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// guardCulprit drops every sentence that both names the culprit and accuses someone. It returns the cleaned text
// and whether anything was removed. When nothing is left the Orb deflects.
func guardCulprit(text string, c cases.Context) (string, bool) {
	culprit := culpritPattern(c)
	if culprit == nil {
		return text, false
	}

	var (
		kept     []string
		redacted bool
	)
	for _, sentence := range sentenceSplit.FindAllString(text, -1) {
		lower := strings.ToLower(sentence)
		named := culprit.MatchString(lower)
		accused := false
		for _, word := range accusations {
			if strings.Contains(lower, word) {
				accused = true
				break
			}
		}
		if named && accused {
			redacted = true
			continue
		}
		kept = append(kept, strings.TrimSpace(sentence))
	}

	if !redacted {
		return text, false
	}
	if len(kept) == 0 {
		return deflection, true
	}
	return strings.Join(kept, " "), true
}
