package speech

import (
	"context"
	"io"
	"log/slog"

	"github.com/myrjola/orb/internal/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAI synthesizes with the OpenAI speech endpoint.
type OpenAI struct {
	client *openai.Client
	voice  openai.SpeechVoice
	logger *slog.Logger
}

func NewOpenAI(client *openai.Client, voice string, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		client: client,
		voice:  openai.SpeechVoice(voice),
		logger: logger.With(slog.String("component", "speech.openai")),
	}
}

func (o *OpenAI) Name() string {
	return "openai:" + string(o.voice)
}

func (o *OpenAI) Synthesize(ctx context.Context, req Request) Result {
	// The endpoint accepts speeds between 0.25 and 4.0, the presets stay well inside.
	speed := PresetFor(req.Emotion).Rate

	rc, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          req.Text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return failed(errors.Wrap(err, "create speech", slog.String("voice", string(o.voice))))
	}
	defer func() {
		_ = rc.Close()
	}()

	audio, err := io.ReadAll(rc)
	if err != nil {
		return failed(errors.Wrap(err, "read speech"))
	}
	if len(audio) == 0 {
		return failed(errors.Wrap(ErrEmptyAudio, "openai", slog.String("voice", string(o.voice))))
	}

	return succeeded(Speech{
		Audio:     audio,
		Format:    FormatMP3,
		Utterance: nil,
		Provider:  "openai",
		Voice:     string(o.voice),
	})
}
