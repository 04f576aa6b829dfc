package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/myrjola/orb/internal/e2etest"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/logging"
)

// answerKey lists fields that must never leave the server.
var answerKey = []string{"culprit", "solution", "keyFacts", "revealNarration", "clues"}

// TestGame checks that a fresh player can see the cases without their answers and that the Orb is idle.
func TestGame(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()
	var err error

	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return errors.Wrap(err, "wait for ready")
	}
	if err = client.Login(ctx); err != nil {
		return errors.Wrap(err, "login")
	}

	var resp *http.Response
	if resp, err = client.Get(ctx, "/api/cases"); err != nil {
		return errors.Wrap(err, "get cases")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var body strings.Builder
	if _, err = io.Copy(&body, resp.Body); err != nil {
		return errors.Wrap(err, "read cases")
	}
	for _, field := range answerKey {
		if strings.Contains(body.String(), `"`+field+`"`) {
			return errors.New("cases leak the answer key", slog.String("field", field))
		}
	}

	var status struct {
		State string `json:"state"`
	}
	if err = client.GetJSON(ctx, "/api/orb/status", &status); err != nil {
		return errors.Wrap(err, "get status")
	}
	if status.State != "idle" {
		return errors.New("orb is not idle", slog.String("state", status.State))
	}
	if err = client.PostJSON(ctx, "/api/orb/stop-audio", nil, http.StatusOK, nil); err != nil {
		return errors.Wrap(err, "stop audio")
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = TestGame(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing game", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
