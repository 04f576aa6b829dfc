package ai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/myrjola/orb/internal/ai"
	"github.com/myrjola/orb/internal/speech"
	"github.com/myrjola/orb/internal/testhelpers"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

const replyJSON = `{"text": "The glass was poured before the dance.", "emotion": "serious", "confidence": 0.6, ` +
	`"revealedClue": "Lord Blackwood drank his last wine at 11:30."}`

func newOpenAIServer(t *testing.T, content string, finishReason string) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestOpenAI_Complete(t *testing.T) {
	logger := testhelpers.NewLogger(io.Discard)
	req := newRequest(t)

	resp, err := ai.NewOpenAI(newOpenAIServer(t, replyJSON, "stop"), "", logger).Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "The glass was poured before the dance.", resp.Text)
	require.Equal(t, speech.Serious, resp.Emotion)
	require.InDelta(t, 0.6, resp.Confidence, 1e-9)

	_, err = ai.NewOpenAI(newOpenAIServer(t, `{"text": "The glass was`, "length"), "", logger).
		Complete(context.Background(), req)
	require.ErrorIs(t, err, ai.ErrTruncated)

	_, err = ai.NewOpenAI(newOpenAIServer(t, "I cannot answer that.", "stop"), "", logger).
		Complete(context.Background(), req)
	require.ErrorIs(t, err, ai.ErrMalformed)
}

func TestGemini_Complete(t *testing.T) {
	var finish atomic.Value
	finish.Store("STOP")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": replyJSON}},
				},
				"finishReason": finish.Load(),
			}},
		})
	}))
	t.Cleanup(srv.Close)

	gemini, err := ai.NewGemini(context.Background(), "test", "", srv.URL+"/", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	require.Equal(t, "gemini", gemini.Name())

	resp, err := gemini.Complete(context.Background(), newRequest(t))
	require.NoError(t, err)
	require.Equal(t, "The glass was poured before the dance.", resp.Text)
	require.Equal(t, speech.Serious, resp.Emotion)

	finish.Store("MAX_TOKENS")
	_, err = gemini.Complete(context.Background(), newRequest(t))
	require.ErrorIs(t, err, ai.ErrTruncated)
}
