// Package providers builds the answer and voice chains from the configured credentials.
package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/orb/internal/ai"
	"github.com/myrjola/orb/internal/config"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/speech"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient returns nil when no API key is configured.
func OpenAIClient(cfg config.Config) *openai.Client {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// Answerer builds the answer chain in the configured provider order. Providers without credentials are skipped,
// leaving the fallback lines when none remain.
func Answerer(ctx context.Context, cfg config.Config, client *openai.Client, logger *slog.Logger) (*ai.Chain, error) {
	var providers []ai.Provider
	for _, name := range cfg.AnswerProviders {
		switch name {
		case "openai":
			if client != nil {
				providers = append(providers, ai.NewOpenAI(client, cfg.OpenAIModel, logger))
			}
		case "gemini":
			if cfg.GeminiAPIKey == "" {
				continue
			}
			gemini, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, logger)
			if err != nil {
				return nil, errors.Wrap(err, "new gemini")
			}
			providers = append(providers, gemini)
		default:
			logger.LogAttrs(ctx, slog.LevelWarn, "unknown answer provider", slog.String("provider", name))
		}
	}
	if len(providers) == 0 {
		logger.LogAttrs(ctx, slog.LevelWarn, "no answer providers configured, the Orb will only speak in riddles")
	}
	return ai.NewChain(ai.ChainConfig{
		Timeout:           cfg.AnswerTimeout,
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		Burst:             cfg.LLMBurst,
	}, logger, providers...), nil
}

// RemoteVoices are the strategies that synthesize through a remote API, each behind its own cache.
func RemoteVoices(cfg config.Config, client *openai.Client, logger *slog.Logger) ([]speech.Strategy, error) {
	var strategies []speech.Strategy
	if cfg.ElevenLabsAPIKey != "" {
		strategies = append(strategies, speech.NewElevenLabsVoices(speech.ElevenLabsConfig{
			APIKey:     cfg.ElevenLabsAPIKey,
			BaseURL:    cfg.ElevenLabsURL,
			Model:      cfg.ElevenLabsModel,
			MaxRetries: 1,
			RetryDelay: 500 * time.Millisecond, //nolint:mnd // rate limits clear quickly
			Client:     nil,
		}, cfg.ElevenLabsVoices, logger)...)
	}
	if client != nil && cfg.OpenAITTSVoice != "" {
		strategies = append(strategies, speech.NewOpenAI(client, cfg.OpenAITTSVoice, logger))
	}
	cached, err := speech.CacheVoices(strategies, cfg.SpeechCacheSize, logger)
	if err != nil {
		return nil, errors.Wrap(err, "cache voices")
	}
	return cached, nil
}

// Voices returns the narrator chain, which prefers pre-recorded narration, and the answer voice chain. The remote
// voices come first, then espeak when installed. When device is set, both chains end with the client device's own
// speech synthesis.
func Voices(cfg config.Config, client *openai.Client, device bool, logger *slog.Logger) (*speech.Chain, *speech.Chain, error) {
	strategies, err := RemoteVoices(cfg, client, logger)
	if err != nil {
		return nil, nil, err
	}
	if espeak := speech.NewEspeak(cfg.EspeakBin, cfg.EspeakVoice, logger); espeak.Available() {
		strategies = append(strategies, espeak)
	}
	if device {
		strategies = append(strategies, speech.Device{})
	}

	narration := make([]speech.Strategy, 0, len(strategies)+1)
	if cfg.RecordingsDir != "" {
		narration = append(narration, speech.NewRecording(cfg.RecordingsDir))
	}
	narration = append(narration, strategies...)
	return speech.NewChain(logger, narration...), speech.NewChain(logger, strategies...), nil
}
