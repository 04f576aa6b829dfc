package speech

import "strings"

// Emotion colours how the Orb delivers a line.
type Emotion string

const (
	Mysterious Emotion = "mysterious"
	Serious    Emotion = "serious"
	Dramatic   Emotion = "dramatic"
	Whispering Emotion = "whispering"
	Laughing   Emotion = "laughing"
	Crying     Emotion = "crying"
	Giggling   Emotion = "giggling"
	Sad        Emotion = "sad"
	Excited    Emotion = "excited"
	Angry      Emotion = "angry"
	Surprised  Emotion = "surprised"
)

// ParseEmotion maps free-form text to a known emotion. Unknown values become Mysterious.
func ParseEmotion(s string) Emotion {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := baseSettings[e]; ok {
		return e
	}
	return Mysterious
}

// VoiceSettings are the ElevenLabs voice_settings knobs.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
}

const similarityBoost = 0.8

//nolint:mnd // tuned by ear
var baseSettings = map[Emotion]VoiceSettings{
	Mysterious: {Stability: 0.7, SimilarityBoost: similarityBoost, Style: 0.6},
	Serious:    {Stability: 0.8, SimilarityBoost: similarityBoost, Style: 0.4},
	Dramatic:   {Stability: 0.5, SimilarityBoost: similarityBoost, Style: 0.8},
	Whispering: {Stability: 0.8, SimilarityBoost: similarityBoost, Style: 0.3},
	Laughing:   {Stability: 0.4, SimilarityBoost: similarityBoost, Style: 0.8},
	Crying:     {Stability: 0.45, SimilarityBoost: similarityBoost, Style: 0.7},
	Giggling:   {Stability: 0.4, SimilarityBoost: similarityBoost, Style: 0.75},
	Sad:        {Stability: 0.6, SimilarityBoost: similarityBoost, Style: 0.5},
	Excited:    {Stability: 0.4, SimilarityBoost: similarityBoost, Style: 0.8},
	Angry:      {Stability: 0.45, SimilarityBoost: similarityBoost, Style: 0.8},
	Surprised:  {Stability: 0.5, SimilarityBoost: similarityBoost, Style: 0.7},
}

// VoiceSettingsFor derives voice settings for emotion at intensity in [0,1]. An intensity above 0.5 makes the
// delivery more expressive and less stable, below 0.5 the opposite.
func VoiceSettingsFor(emotion Emotion, intensity float64) VoiceSettings {
	base, ok := baseSettings[emotion]
	if !ok {
		base = baseSettings[Mysterious]
	}
	shift := 0.4 * (clamp(intensity, 0, 1) - 0.5) //nolint:mnd // at most ±0.2
	return VoiceSettings{
		Stability:       clamp(base.Stability-shift, 0.15, 1), //nolint:mnd // lower values get erratic
		SimilarityBoost: base.SimilarityBoost,
		Style:           clamp(base.Style+shift, 0, 1),
	}
}

// Preset parameterises local synthesis. Rate and pitch are relative to 1.0, volume is in [0,1].
type Preset struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

//nolint:mnd // tuned by ear
var (
	defaultPreset = Preset{Rate: 0.8, Pitch: 0.9, Volume: 0.8}
	presets       = map[Emotion]Preset{
		Mysterious: {Rate: 0.7, Pitch: 0.8, Volume: 0.7},
		Serious:    {Rate: 0.8, Pitch: 0.9, Volume: 0.8},
		Dramatic:   {Rate: 0.6, Pitch: 0.7, Volume: 0.9},
		Whispering: {Rate: 0.6, Pitch: 0.8, Volume: 0.5},
		Laughing:   {Rate: 1.1, Pitch: 1.2, Volume: 0.8},
		Crying:     {Rate: 0.7, Pitch: 0.7, Volume: 0.6},
		Giggling:   {Rate: 1.2, Pitch: 1.3, Volume: 0.7},
		Sad:        {Rate: 0.7, Pitch: 0.7, Volume: 0.6},
		Excited:    {Rate: 1.1, Pitch: 1.1, Volume: 0.9},
		Angry:      {Rate: 0.9, Pitch: 0.8, Volume: 0.9},
		Surprised:  {Rate: 1.0, Pitch: 1.2, Volume: 0.8},
	}
)

// PresetFor returns the local synthesis preset for emotion.
func PresetFor(emotion Emotion) Preset {
	if p, ok := presets[emotion]; ok {
		return p
	}
	return defaultPreset
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
