package capture_test

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/myrjola/orb/internal/capture"
	"github.com/myrjola/orb/internal/testhelpers"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	audio []byte
	err   error
}

func (f fakeRecorder) Record(_ context.Context) ([]byte, error) { return f.audio, f.err }
func (f fakeRecorder) Available() bool                          { return true }

type segment struct {
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

func newTranscriptionServer(t *testing.T, text string, segments []segment) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"text": text, "segments": segments})
	}))
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestWhisper_Listen(t *testing.T) {
	logger := testhelpers.NewLogger(io.Discard)
	wav := make([]byte, 1024)

	t.Run("transcribes with confidence from log probabilities", func(t *testing.T) {
		client := newTranscriptionServer(t, " Where was the butler? ", []segment{{AvgLogprob: -0.2}, {AvgLogprob: -0.4}})
		w := capture.NewWhisper(fakeRecorder{audio: wav}, client, "en", logger)
		u, err := w.Listen(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Where was the butler?", u.Text)
		require.InDelta(t, math.Exp(-0.3), u.Confidence, 1e-9)
		require.False(t, u.CapturedAt.IsZero())
	})

	t.Run("missing segments give zero confidence but keep the text", func(t *testing.T) {
		client := newTranscriptionServer(t, "Who lied?", nil)
		u, err := capture.NewWhisper(fakeRecorder{audio: wav}, client, "", logger).Listen(context.Background())
		require.NoError(t, err)
		require.Equal(t, "Who lied?", u.Text)
		require.Zero(t, u.Confidence)
	})

	t.Run("silence", func(t *testing.T) {
		client := newTranscriptionServer(t, "you", []segment{{AvgLogprob: -1, NoSpeechProb: 0.95}})
		_, err := capture.NewWhisper(fakeRecorder{audio: wav}, client, "", logger).Listen(context.Background())
		require.Equal(t, capture.KindNoSpeech, capture.KindOf(err))
	})

	t.Run("header only recording", func(t *testing.T) {
		client := newTranscriptionServer(t, "unused", nil)
		_, err := capture.NewWhisper(fakeRecorder{audio: wav[:44]}, client, "", logger).Listen(context.Background())
		require.Equal(t, capture.KindNoSpeech, capture.KindOf(err))
	})

	t.Run("recorder failure keeps its kind", func(t *testing.T) {
		client := newTranscriptionServer(t, "unused", nil)
		recorder := fakeRecorder{err: &capture.Error{Kind: capture.KindPermissionDenied}}
		_, err := capture.NewWhisper(recorder, client, "", logger).Listen(context.Background())
		require.Equal(t, capture.KindPermissionDenied, capture.KindOf(err))
	})
}

func TestCommandRecorder(t *testing.T) {
	recorder := capture.CommandRecorder{Command: []string{"/nonexistent/arecord"}}
	require.False(t, recorder.Available())
	_, err := recorder.Record(context.Background())
	require.Equal(t, capture.KindDeviceUnavailable, capture.KindOf(err))

	_, err = capture.CommandRecorder{Command: nil}.Record(context.Background())
	require.Equal(t, capture.KindDeviceUnavailable, capture.KindOf(err))
}
