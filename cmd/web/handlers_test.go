package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/orb/internal/e2etest"
	"github.com/stretchr/testify/require"
)

type clipEvent struct {
	Clip string `json:"clip"`
	Text string `json:"text"`
}

type questionEvent struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type responseEvent struct {
	Text        string `json:"text"`
	Emotion     string `json:"emotion"`
	IsAmbiguous bool   `json:"isAmbiguous"`
	Source      string `json:"source"`
}

// submitTranscript retries until the capture session opened by listen is waiting for the transcript.
func submitTranscript(t *testing.T, server *testServer, text string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		status := server.PostJSON(t, "/api/orb/transcript", transcriptRequest{Text: text, Confidence: 0.9}, nil)
		if status == http.StatusAccepted {
			return
		}
		require.Equal(t, http.StatusConflict, status)
		require.True(t, time.Now().Before(deadline), "capture session never opened")
		time.Sleep(10 * time.Millisecond)
	}
}

func Test_interrogation(t *testing.T) {
	server := startTestServer(t, os.Stdout, testLookupEnv)
	server.Login(t)

	var caseViews []map[string]any
	require.Equal(t, http.StatusOK, server.GetJSON(t, "/api/cases", &caseViews))
	require.Len(t, caseViews, 2)
	for _, view := range caseViews {
		for _, secret := range []string{"culprit", "solution", "keyFacts", "revealNarration"} {
			require.NotContains(t, view, secret)
		}
		suspects, ok := view["suspects"].([]any)
		require.True(t, ok)
		for _, s := range suspects {
			require.NotContains(t, s, "clues")
		}
	}
	require.Equal(t, true, caseViews[0]["unlocked"])
	require.Equal(t, false, caseViews[1]["unlocked"])

	var progress progressView
	require.Equal(t, http.StatusOK, server.GetJSON(t, "/api/progress", &progress))
	require.Equal(t, progressView{Unlocked: []int{1}, Completed: []int{}}, progress)

	require.Equal(t, http.StatusForbidden, server.PostJSON(t, "/api/orb/narrate", narrateRequest{Level: 2}, nil))
	require.Equal(t, http.StatusNotFound, server.PostJSON(t, "/api/orb/narrate", narrateRequest{Level: 99}, nil))

	events := server.Events(t)
	events.WaitState(t, "idle")
	require.Equal(t, http.StatusNoContent, server.PostJSON(t, "/api/orb/activate-audio", nil, nil))

	var capabilities capabilitiesView
	require.Equal(t, http.StatusOK,
		server.PostJSON(t, "/api/orb/capabilities", capabilitiesRequest{SpeechRecognition: true}, &capabilities))
	require.True(t, capabilities.VoiceSupported)

	// The intro narration is voiced by the browser because no remote voice is configured.
	require.Equal(t, http.StatusAccepted, server.PostJSON(t, "/api/orb/narrate", narrateRequest{Level: 1}, nil))
	events.WaitState(t, "narrating")
	var narration clipEvent
	events.Next(t, "speak", &narration)
	require.NotEmpty(t, narration.Text)
	require.Equal(t, http.StatusConflict, server.PostJSON(t, "/api/orb/listen", nil, nil))
	require.Equal(t, http.StatusNoContent,
		server.PostJSON(t, "/api/orb/playback-ended", playbackEndedRequest{Clip: narration.Clip}, nil))
	events.WaitState(t, "idle")

	require.Equal(t, http.StatusAccepted, server.PostJSON(t, "/api/orb/listen", nil, nil))
	events.WaitState(t, "listening")
	submitTranscript(t, server, "Who poured the wine?")

	var question questionEvent
	events.Next(t, "question", &question)
	require.Equal(t, "Who poured the wine?", question.Text)
	require.InDelta(t, 0.9, question.Confidence, 0.001)
	var response responseEvent
	events.Next(t, "response", &response)
	require.True(t, response.IsAmbiguous)
	require.NotEmpty(t, response.Text)
	var answer clipEvent
	events.Next(t, "speak", &answer)
	require.Equal(t, response.Text, answer.Text)
	require.Equal(t, http.StatusNoContent,
		server.PostJSON(t, "/api/orb/playback-ended", playbackEndedRequest{Clip: answer.Clip}, nil))
	status := events.WaitState(t, "idle")
	require.Equal(t, 2, status.QuestionsRemaining)

	// Nobody is listening anymore.
	require.Equal(t, http.StatusConflict,
		server.PostJSON(t, "/api/orb/transcript", transcriptRequest{Text: "Hello?", Confidence: 1}, nil))
	require.Equal(t, http.StatusNotFound,
		server.PostJSON(t, "/api/orb/playback-ended", playbackEndedRequest{Clip: answer.Clip}, nil))

	var transcript []exchangeView
	require.Equal(t, http.StatusOK, server.GetJSON(t, "/api/cases/1/transcript", &transcript))
	require.Len(t, transcript, 1)
	require.Equal(t, "Who poured the wine?", transcript[0].Question)
	require.Equal(t, response.Text, transcript[0].Answer)

	// A capture error hands control back without spending a question.
	require.Equal(t, http.StatusAccepted, server.PostJSON(t, "/api/orb/listen", nil, nil))
	events.WaitState(t, "listening")
	deadline := time.Now().Add(2 * time.Second)
	for server.PostJSON(t, "/api/orb/capture-error", captureErrorRequest{Kind: "no-speech", Message: ""}, nil) ==
		http.StatusConflict {
		require.True(t, time.Now().Before(deadline), "capture session never opened")
		time.Sleep(10 * time.Millisecond)
	}
	status = events.WaitState(t, "idle")
	require.Equal(t, 2, status.QuestionsRemaining)

	var verdict verdictView
	require.Equal(t, http.StatusOK,
		server.PostJSON(t, "/api/accuse", accuseRequest{Level: 1, Suspect: "lady-victoria"}, &verdict))
	require.False(t, verdict.Correct)
	require.Equal(t, "The shadows deceive... the truth remains hidden.", verdict.Narration)
	var reveal clipEvent
	events.Next(t, "speak", &reveal)
	require.Equal(t, verdict.Narration, reveal.Text)
	require.Equal(t, http.StatusNoContent,
		server.PostJSON(t, "/api/orb/playback-ended", playbackEndedRequest{Clip: reveal.Clip}, nil))

	require.Equal(t, http.StatusUnprocessableEntity,
		server.PostJSON(t, "/api/accuse", accuseRequest{Level: 1, Suspect: "nobody"}, nil))

	require.Equal(t, http.StatusOK,
		server.PostJSON(t, "/api/accuse", accuseRequest{Level: 1, Suspect: "count-aldric"}, &verdict))
	require.True(t, verdict.Correct)
	require.Equal(t, 2, verdict.NextLevel)
	require.Equal(t, http.StatusOK, server.GetJSON(t, "/api/progress", &progress))
	require.Equal(t, progressView{Unlocked: []int{1, 2}, Completed: []int{1}}, progress)

	var reset statusEvent
	require.Equal(t, http.StatusOK, server.PostJSON(t, "/api/orb/reset", nil, &reset))
	require.Equal(t, "idle", reset.State)
	require.Equal(t, "Click the Orb to begin...", reset.Message)
	require.Equal(t, http.StatusAccepted, server.PostJSON(t, "/api/orb/narrate", narrateRequest{Level: 2}, nil))
}

func Test_accuseMidCycle(t *testing.T) {
	server := startTestServer(t, os.Stdout, testLookupEnv)
	server.Login(t)
	events := server.Events(t)
	events.WaitState(t, "idle")
	require.Equal(t, http.StatusNoContent, server.PostJSON(t, "/api/orb/activate-audio", nil, nil))
	require.Equal(t, http.StatusOK,
		server.PostJSON(t, "/api/orb/capabilities", capabilitiesRequest{SpeechRecognition: true}, nil))

	require.Equal(t, http.StatusAccepted, server.PostJSON(t, "/api/orb/narrate", narrateRequest{Level: 1}, nil))
	var narration clipEvent
	events.Next(t, "speak", &narration)
	require.Equal(t, http.StatusNoContent,
		server.PostJSON(t, "/api/orb/playback-ended", playbackEndedRequest{Clip: narration.Clip}, nil))
	events.WaitState(t, "idle")

	// Accusing closes an open capture session.
	require.Equal(t, http.StatusAccepted, server.PostJSON(t, "/api/orb/listen", nil, nil))
	events.WaitState(t, "listening")
	var verdict verdictView
	require.Equal(t, http.StatusOK,
		server.PostJSON(t, "/api/accuse", accuseRequest{Level: 1, Suspect: "lady-victoria"}, &verdict))
	status := events.WaitState(t, "narrating")
	require.Equal(t, 3, status.QuestionsRemaining)
	require.Equal(t, http.StatusConflict,
		server.PostJSON(t, "/api/orb/transcript", transcriptRequest{Text: "Who poured the wine?", Confidence: 1}, nil))
	var reveal clipEvent
	events.Next(t, "speak", &reveal)
	require.Equal(t, verdict.Narration, reveal.Text)
	require.Equal(t, http.StatusNoContent,
		server.PostJSON(t, "/api/orb/playback-ended", playbackEndedRequest{Clip: reveal.Clip}, nil))
	events.WaitState(t, "idle")

	// Accusing while the Orb speaks an answer silences the answer before the verdict is heard.
	require.Equal(t, http.StatusAccepted, server.PostJSON(t, "/api/orb/listen", nil, nil))
	events.WaitState(t, "listening")
	submitTranscript(t, server, "Who poured the wine?")
	events.Next(t, "response", nil)
	var answer clipEvent
	events.Next(t, "speak", &answer)
	events.WaitState(t, "speaking")

	require.Equal(t, http.StatusOK,
		server.PostJSON(t, "/api/accuse", accuseRequest{Level: 1, Suspect: "lady-victoria"}, &verdict))
	var stopped clipEvent
	events.Next(t, "stop", &stopped)
	require.Equal(t, answer.Clip, stopped.Clip)
	status = events.WaitState(t, "narrating")
	require.Equal(t, 2, status.QuestionsRemaining)
	events.Next(t, "speak", &reveal)
	require.Equal(t, verdict.Narration, reveal.Text)

	// The verdict holds the Orb like any narration until it is heard or stopped.
	require.Equal(t, http.StatusConflict, server.PostJSON(t, "/api/orb/narrate", narrateRequest{Level: 1}, nil))
	require.Equal(t, http.StatusConflict, server.PostJSON(t, "/api/orb/listen", nil, nil))

	var afterStop statusEvent
	require.Equal(t, http.StatusOK, server.PostJSON(t, "/api/orb/stop-audio", nil, &afterStop))
	require.Equal(t, "idle", afterStop.State)
	events.Next(t, "stop", &stopped)
	require.Equal(t, reveal.Clip, stopped.Clip)
	require.Equal(t, http.StatusAccepted, server.PostJSON(t, "/api/orb/narrate", narrateRequest{Level: 1}, nil))
}

func Test_csrfProtection(t *testing.T) {
	server := startTestServer(t, os.Stdout, testLookupEnv)

	// Streams need a player.
	resp, err := server.client.Get(server.url + "/api/orb/events")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	server.Login(t)
	token := server.csrfToken
	server.csrfToken = ""
	require.Equal(t, http.StatusForbidden, server.PostJSON(t, "/api/orb/listen", nil, nil))

	server.csrfToken = token
	require.Equal(t, http.StatusAccepted, server.PostJSON(t, "/api/orb/listen", nil, nil))
	require.Equal(t, http.StatusOK, server.PostJSON(t, "/api/orb/stop-listening", nil, nil))

	resp, err = server.client.Get(server.url + "/api/orb/clips/unknown")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_rateLimit(t *testing.T) {
	lookupEnv := func(key string) (string, bool) {
		switch key {
		case "ORB_PLAYER_RPS":
			return "0.001", true
		case "ORB_PLAYER_BURST":
			return "1", true
		default:
			return testLookupEnv(key)
		}
	}
	server := startTestServer(t, os.Stdout, lookupEnv)
	server.Login(t)

	require.Equal(t, http.StatusOK, server.PostJSON(t, "/api/orb/stop-audio", nil, nil))
	require.Equal(t, http.StatusTooManyRequests, server.PostJSON(t, "/api/orb/stop-audio", nil, nil))

	// Reading the status is not throttled.
	var status statusEvent
	require.Equal(t, http.StatusOK, server.GetJSON(t, "/api/orb/status", &status))
	require.True(t, strings.HasPrefix(status.Message, "Click the Orb"))
}

func Test_smokeClient(t *testing.T) {
	server := startTestServer(t, os.Stdout, testLookupEnv)
	ctx := context.Background()
	client, err := e2etest.NewClient(server.url)
	require.NoError(t, err)

	require.NoError(t, client.WaitForReady(ctx, "/api/healthy"))
	require.NoError(t, client.Login(ctx))
	var status statusEvent
	require.NoError(t, client.GetJSON(ctx, "/api/orb/status", &status))
	require.Equal(t, "idle", status.State)
	require.ErrorIs(t, client.GetJSON(ctx, "/api/cases/7/transcript", nil), e2etest.ErrUnexpectedStatus)
}
