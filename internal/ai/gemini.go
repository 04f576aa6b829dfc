package ai

import (
	"context"
	"log/slog"

	"github.com/myrjola/orb/internal/errors"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGemini connects to the Gemini API. baseURL overrides the endpoint and is empty in production.
func NewGemini(ctx context.Context, apiKey string, model string, baseURL string, logger *slog.Logger) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{ //nolint:exhaustruct // optional fields
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL}, //nolint:exhaustruct // optional fields
	})
	if err != nil {
		return nil, errors.Wrap(err, "new genai client")
	}
	return &Gemini{
		client: client,
		model:  model,
		logger: logger.With(slog.String("component", "ai.gemini")),
	}, nil
}

func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userPrompt(req)),
		&genai.GenerateContentConfig{ //nolint:exhaustruct // optional fields
			SystemInstruction: genai.NewContentFromText(systemPrompt(req), genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0.8), //nolint:mnd // some flair
			MaxOutputTokens:   maxReplyTokens,
		})
	if err != nil {
		return Response{}, errors.Wrap(err, "generate content", slog.String("model", g.model)) //nolint:exhaustruct // zero value
	}
	if len(resp.Candidates) == 0 {
		return Response{}, errors.Wrap(ErrMalformed, "no candidates") //nolint:exhaustruct // zero value
	}
	finish := resp.Candidates[0].FinishReason
	g.logger.LogAttrs(ctx, slog.LevelDebug, "generated content",
		slog.String("model", g.model), slog.String("finish_reason", string(finish)))
	if finish == genai.FinishReasonMaxTokens {
		return Response{}, errors.Wrap(ErrTruncated, "gemini") //nolint:exhaustruct // zero value
	}

	return parseReply(resp.Text())
}
