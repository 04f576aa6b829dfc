package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myrjola/orb/internal/errors"
)

const (
	ElevenLabsURL          = "https://api.elevenlabs.io"
	ElevenLabsDefaultModel = "eleven_multilingual_v2"
)

// APIError is a non-200 answer from a speech API.
type APIError struct {
	StatusCode int
	Message    string
	Provider   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports rate limiting and server side failures.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// ElevenLabsConfig configures the ElevenLabs strategies.
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxRetries is the number of extra attempts for retryable errors.
	MaxRetries int
	RetryDelay time.Duration
	Client     *http.Client
}

// ElevenLabs synthesizes through one ElevenLabs voice.
type ElevenLabs struct {
	config ElevenLabsConfig
	voice  string
	logger *slog.Logger
}

// NewElevenLabsVoices builds one strategy per voice id, preserving order, so that a chain falls through the voices.
func NewElevenLabsVoices(config ElevenLabsConfig, voices []string, logger *slog.Logger) []Strategy {
	if config.BaseURL == "" {
		config.BaseURL = ElevenLabsURL
	}
	if config.Model == "" {
		config.Model = ElevenLabsDefaultModel
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 30 * time.Second} //nolint:exhaustruct,mnd // long lines take a while
	}
	strategies := make([]Strategy, 0, len(voices))
	for _, voice := range voices {
		strategies = append(strategies, &ElevenLabs{
			config: config,
			voice:  voice,
			logger: logger.With(slog.String("component", "speech.elevenlabs"), slog.String("voice", voice)),
		})
	}
	return strategies
}

func (e *ElevenLabs) Name() string {
	return "elevenlabs:" + e.voice
}

type elevenLabsPayload struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) Result {
	if e.config.APIKey == "" {
		return failed(errors.Wrap(ErrUnavailable, "no api key"))
	}

	body, err := json.Marshal(elevenLabsPayload{
		Text:          req.Text,
		ModelID:       e.config.Model,
		VoiceSettings: VoiceSettingsFor(req.Emotion, req.Intensity),
	})
	if err != nil {
		return failed(errors.Wrap(err, "marshal payload"))
	}

	var audio []byte
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return failed(errors.Wrap(ctx.Err(), "wait for retry"))
			case <-time.After(e.config.RetryDelay * time.Duration(attempt)):
			}
		}
		audio, err = e.post(ctx, body)
		var apiErr *APIError
		if err == nil || !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			break
		}
		e.logger.LogAttrs(ctx, slog.LevelDebug, "retrying elevenlabs request",
			slog.Int("attempt", attempt+1), slog.Int("status", apiErr.StatusCode))
	}
	if err != nil {
		return failed(err)
	}
	if len(audio) == 0 {
		return failed(errors.Wrap(ErrEmptyAudio, "elevenlabs", slog.String("voice", e.voice)))
	}

	return succeeded(Speech{
		Audio:     audio,
		Format:    FormatMP3,
		Utterance: nil,
		Provider:  "elevenlabs",
		Voice:     e.voice,
	})
}

func (e *ElevenLabs) post(ctx context.Context, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", strings.TrimRight(e.config.BaseURL, "/"), e.voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.config.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "post text-to-speech")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, parseElevenLabsError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read audio")
	}
	return audio, nil
}

func parseElevenLabsError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:mnd // enough for an error document
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw)), Provider: "elevenlabs"}

	var doc struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	if json.Unmarshal(raw, &doc) == nil && doc.Detail.Message != "" {
		apiErr.Message = doc.Detail.Message
	}
	return apiErr
}
