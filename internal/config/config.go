// Package config reads the Orb's settings from the environment.
package config

import (
	"time"

	"github.com/myrjola/orb/internal/envstruct"
	"github.com/myrjola/orb/internal/errors"
)

type Config struct {
	// Addr is the address the web server listens on.
	Addr string `env:"ORB_ADDR" envDefault:"localhost:4000"`
	// SqliteURL is the URL to the SQLite database. Use ":memory:" for an ephemeral database.
	SqliteURL string `env:"ORB_SQLITE_URL" envDefault:"./orb.sqlite"`
	// PprofPort is the localhost port of the profiling server. Empty disables it.
	PprofPort string `env:"ORB_PPROF_PORT" envDefault:":6060"`

	OpenAIAPIKey    string   `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL   string   `env:"ORB_OPENAI_URL" envDefault:""`
	OpenAIModel     string   `env:"ORB_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	GeminiAPIKey    string   `env:"GEMINI_API_KEY" envDefault:""`
	GeminiBaseURL   string   `env:"ORB_GEMINI_URL" envDefault:""`
	GeminiModel     string   `env:"ORB_GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	AnswerProviders []string `env:"ORB_ANSWER_PROVIDERS" envDefault:"openai,gemini"`
	// AnswerTimeout bounds a single provider call.
	AnswerTimeout time.Duration `env:"ORB_ANSWER_TIMEOUT" envDefault:"15s"`
	// LLMRequestsPerSecond throttles calls to the language models across all players.
	LLMRequestsPerSecond float64 `env:"ORB_LLM_RPS" envDefault:"2"`
	LLMBurst             int     `env:"ORB_LLM_BURST" envDefault:"4"`

	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY" envDefault:""`
	ElevenLabsURL    string `env:"ORB_ELEVENLABS_URL" envDefault:"https://api.elevenlabs.io"`
	ElevenLabsModel  string `env:"ORB_ELEVENLABS_MODEL" envDefault:"eleven_multilingual_v2"`
	// ElevenLabsVoices are tried in order.
	ElevenLabsVoices []string `env:"ORB_ELEVENLABS_VOICES" envDefault:"pNInz6obpgDQGcFmaJgB,EXAVITQu4vr4xnSDxMaL,21m00Tcm4TlvDq8ikWAM"`
	// OpenAITTSVoice enables OpenAI speech after the ElevenLabs voices. Empty disables it.
	OpenAITTSVoice string `env:"ORB_OPENAI_TTS_VOICE" envDefault:"onyx"`
	// RecordingsDir holds pre-recorded narrations named level<N>.mp3. Empty disables them.
	RecordingsDir string `env:"ORB_RECORDINGS_DIR" envDefault:"./recordings"`
	EspeakBin     string `env:"ORB_ESPEAK_BIN" envDefault:"espeak-ng"`
	EspeakVoice   string `env:"ORB_ESPEAK_VOICE" envDefault:"en-gb"`
	// SpeechCacheSize is how many synthesized lines are kept in memory per voice.
	SpeechCacheSize int `env:"ORB_SPEECH_CACHE_SIZE" envDefault:"64"`

	// RecorderCommand records one utterance to stdout as WAV for the terminal client.
	RecorderCommand []string `env:"ORB_RECORDER_CMD" envDefault:"arecord,-q,-f,S16_LE,-r,16000,-c,1,-d,8,-t,wav,-"`
	WhisperLanguage string   `env:"ORB_WHISPER_LANGUAGE" envDefault:"en"`

	// MaxQuestions is the question budget per case.
	MaxQuestions int `env:"ORB_MAX_QUESTIONS" envDefault:"3"`
	// MaxPlayers bounds how many players' pipelines are kept alive.
	MaxPlayers int           `env:"ORB_MAX_PLAYERS" envDefault:"256"`
	PlayerTTL  time.Duration `env:"ORB_PLAYER_TTL" envDefault:"1h"`
	// PlayerRequestsPerSecond throttles each player's state changing requests.
	PlayerRequestsPerSecond float64 `env:"ORB_PLAYER_RPS" envDefault:"5"`
	PlayerBurst             int     `env:"ORB_PLAYER_BURST" envDefault:"10"`
}

// Load populates a Config with lookupEnv, which has the signature of [os.LookupEnv].
func Load(lookupEnv func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return cfg, errors.Wrap(err, "populate config")
	}
	if cfg.MaxQuestions <= 0 {
		return cfg, errors.Wrap(envstruct.ErrInvalidValue, "ORB_MAX_QUESTIONS must be positive")
	}
	return cfg, nil
}
