package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/justinas/nosurf"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func waitForReady(ctx context.Context, endpoint string) error {
	timeout := 1 * time.Second
	client := http.Client{} //nolint:exhaustruct // defaults are fine
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			endpoint,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(250 * time.Millisecond)
		}
	}
}

// testLookupEnv runs the server without any remote providers, so that answers are fallback lines voiced by the
// browser.
func testLookupEnv(key string) (string, bool) {
	switch key {
	case "ORB_ADDR":
		return "localhost:0", true
	case "ORB_SQLITE_URL":
		return ":memory:", true
	case "ORB_PPROF_PORT", "ORB_RECORDINGS_DIR":
		return "", true
	case "ORB_ESPEAK_BIN":
		return "orb-test-espeak-missing", true
	case "ORB_PLAYER_RPS":
		return "0", true
	default:
		return "", false
	}
}

type testServer struct {
	url       string
	client    http.Client
	csrfToken string
}

// startTestServer starts the test server, waits for it to be ready, and return the server URL for testing.
func startTestServer(t *testing.T, w io.Writer, lookupEnv func(string) (string, bool)) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// We need to grab the dynamically allocated port from the log output.
	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "Addr" {
				addrCh <- a.Value.String()
			}
			return a
		},
	})))

	// Start the server and wait for it to be ready.
	go func() {
		if err := run(ctx, logger, lookupEnv); err != nil {
			cancel()
			assert.NoError(t, err)
		}
	}()
	select {
	case <-ctx.Done():
		t.Fatal("server failed to start")
		return nil
	case addr := <-addrCh:
		serverURL := fmt.Sprintf("http://%s", addr)
		if err := waitForReady(ctx, fmt.Sprintf("%s/api/healthy", serverURL)); err != nil {
			require.NoError(t, err)
		}
		jar, err := cookiejar.New(nil)
		require.NoError(t, err)
		return &testServer{
			url:       serverURL,
			client:    http.Client{Jar: insecureCookieJar{jar: jar}}, //nolint:exhaustruct // defaults are fine
			csrfToken: "",
		}
	}
}

// insecureCookieJar drops the Secure flag so that the session and CSRF cookies are sent over plain HTTP.
type insecureCookieJar struct {
	jar *cookiejar.Jar
}

func (j insecureCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	for _, cookie := range cookies {
		cookie.Secure = false
	}
	j.jar.SetCookies(u, cookies)
}

func (j insecureCookieJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Login starts a session and remembers its CSRF token.
func (s *testServer) Login(t *testing.T) {
	t.Helper()
	var view csrfView
	require.Equal(t, http.StatusOK, s.GetJSON(t, "/api/csrf", &view))
	require.NotEmpty(t, view.Token)
	s.csrfToken = view.Token
}

// GetJSON fetches urlPath, decodes a successful response into v and returns the status code.
func (s *testServer) GetJSON(t *testing.T, urlPath string, v any) int {
	t.Helper()
	resp, err := s.client.Get(s.url + urlPath)
	require.NoError(t, err)
	return decodeResponse(t, resp, v)
}

// PostJSON posts body with the CSRF token, decodes a successful response into v and returns the status code.
func (s *testServer) PostJSON(t *testing.T, urlPath string, body any, v any) int {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.url+urlPath, bytes.NewReader(encoded))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if s.csrfToken != "" {
		req.Header.Set(nosurf.HeaderName, s.csrfToken)
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	return decodeResponse(t, resp, v)
}

func decodeResponse(t *testing.T, resp *http.Response, v any) int {
	t.Helper()
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()
	if v != nil && resp.StatusCode < http.StatusMultipleChoices {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

type sseEvent struct {
	Type string
	Data string
}

// eventStream reads the player's Server Sent Events in the background. Events are published from several goroutines,
// so only events of the same type arrive in a reliable order. Events skipped while waiting for another type are kept
// for later.
type eventStream struct {
	events  chan sseEvent
	backlog []sseEvent
}

// Events opens the player's event stream. It is closed when the test ends.
func (s *testServer) Events(t *testing.T) *eventStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"/api/orb/events", nil)
	require.NoError(t, err)
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	stream := &eventStream{events: make(chan sseEvent, 256), backlog: nil} //nolint:mnd // plenty for a test
	go func() {
		defer close(stream.events)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		var e sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				e.Type = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				e.Data = strings.TrimPrefix(line, "data: ")
			case line == "" && e.Type != "":
				stream.events <- e
				e = sseEvent{} //nolint:exhaustruct // reset
			}
		}
	}()
	return stream
}

// Next returns the oldest unread event of type eventType and decodes its data into v.
func (e *eventStream) Next(t *testing.T, eventType string, v any) {
	t.Helper()
	decode := func(ev sseEvent) {
		if v != nil {
			require.NoError(t, json.Unmarshal([]byte(ev.Data), v))
		}
	}
	for i, ev := range e.backlog {
		if ev.Type == eventType {
			e.backlog = append(e.backlog[:i], e.backlog[i+1:]...)
			decode(ev)
			return
		}
	}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, open := <-e.events:
			require.True(t, open, "event stream closed while waiting for %s", eventType)
			if ev.Type != eventType {
				e.backlog = append(e.backlog, ev)
				continue
			}
			decode(ev)
			return
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", eventType)
		}
	}
}

type statusEvent struct {
	State              string   `json:"state"`
	Message            string   `json:"message"`
	QuestionsRemaining int      `json:"questionsRemaining"`
	IsListening        bool     `json:"isListening"`
	IsSpeaking         bool     `json:"isSpeaking"`
	DebugLog           []string `json:"debugLog"`
}

// WaitState skips events until the pipeline reports state.
func (e *eventStream) WaitState(t *testing.T, state string) statusEvent {
	t.Helper()
	for {
		var status statusEvent
		e.Next(t, "status", &status)
		if status.State == state {
			return status
		}
	}
}
