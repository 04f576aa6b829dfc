package ai

import (
	"context"
	"log/slog"

	"github.com/myrjola/orb/internal/errors"
	"github.com/sashabaranov/go-openai"
)

type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewOpenAI(client *openai.Client, model string, logger *slog.Logger) *OpenAI {
	if model == "" {
		model = openai.GPT3Dot5Turbo1106
	}
	return &OpenAI{
		client: client,
		model:  model,
		logger: logger.With(slog.String("component", "ai.openai")),
	}
}

func (o *OpenAI) Name() string {
	return "openai"
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	completion, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     o.model,
			MaxTokens: maxReplyTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req)},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: 0.8, //nolint:mnd // some flair
		},
	)
	if err != nil {
		return Response{}, errors.Wrap(err, "create chat completion") //nolint:exhaustruct // zero value
	}
	if len(completion.Choices) == 0 {
		return Response{}, errors.Wrap(ErrMalformed, "no choices") //nolint:exhaustruct // zero value
	}

	choice := completion.Choices[0]
	o.logger.LogAttrs(ctx, slog.LevelDebug, "chat completion",
		slog.String("model", completion.Model),
		slog.String("finish_reason", string(choice.FinishReason)),
		slog.Int("total_tokens", completion.Usage.TotalTokens))
	if choice.FinishReason == openai.FinishReasonLength {
		return Response{}, errors.Wrap(ErrTruncated, "openai", //nolint:exhaustruct // zero value
			slog.Int("completion_tokens", completion.Usage.CompletionTokens))
	}

	return parseReply(choice.Message.Content)
}
