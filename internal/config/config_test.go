package config_test

import (
	"testing"
	"time"

	"github.com/myrjola/orb/internal/config"
	"github.com/myrjola/orb/internal/envstruct"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Load(lookup(nil))
		require.NoError(t, err)
		require.Equal(t, "localhost:4000", cfg.Addr)
		require.Equal(t, []string{"openai", "gemini"}, cfg.AnswerProviders)
		require.Len(t, cfg.ElevenLabsVoices, 3)
		require.Equal(t, 3, cfg.MaxQuestions)
		require.Equal(t, time.Hour, cfg.PlayerTTL)
		require.InDelta(t, 2.0, cfg.LLMRequestsPerSecond, 1e-9)
		require.Equal(t, "arecord", cfg.RecorderCommand[0])
		require.Empty(t, cfg.OpenAIAPIKey)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := config.Load(lookup(map[string]string{
			"ORB_ADDR":              "localhost:0",
			"ORB_ANSWER_PROVIDERS":  "gemini",
			"ORB_ELEVENLABS_VOICES": "a, b,,",
			"ORB_OPENAI_TTS_VOICE":  "",
			"ORB_PLAYER_TTL":        "5m",
		}))
		require.NoError(t, err)
		require.Equal(t, "localhost:0", cfg.Addr)
		require.Equal(t, []string{"gemini"}, cfg.AnswerProviders)
		require.Equal(t, []string{"a", "b"}, cfg.ElevenLabsVoices)
		require.Empty(t, cfg.OpenAITTSVoice)
		require.Equal(t, 5*time.Minute, cfg.PlayerTTL)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := config.Load(lookup(map[string]string{"ORB_MAX_QUESTIONS": "three"}))
		require.ErrorIs(t, err, envstruct.ErrInvalidValue)
		_, err = config.Load(lookup(map[string]string{"ORB_MAX_QUESTIONS": "0"}))
		require.ErrorIs(t, err, envstruct.ErrInvalidValue)
	})
}
