package play

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/myrjola/orb/internal/ai"
	"github.com/myrjola/orb/internal/audio"
	"github.com/myrjola/orb/internal/capture"
	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/game"
	"github.com/myrjola/orb/internal/pipeline"
)

// localPlayer owns the progress of everyone playing in the terminal.
const localPlayer = "local"

const help = `Commands:
  <Enter>         ask the Orb a question out loud
  t <question>    type a question instead
  n               hear the story again
  s               stop the Orb speaking
  r               reset the Orb
  a <suspect-id>  accuse a suspect
  q               quit`

// console serialises writes from the input loop and the pipeline listeners.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

// session is one interrogation of a case in the terminal.
type session struct {
	engine     *game.Engine
	controller *pipeline.Controller
	// relay takes typed questions. It is the recognizer when no microphone is available, and nil otherwise.
	relay   *capture.Relay
	mc      cases.Case
	console *console
	logger  *slog.Logger

	mu    sync.Mutex
	asked string
}

type sessionDeps struct {
	Engine   *game.Engine
	Capture  capture.Recognizer
	Answers  ai.Answerer
	Narrator pipeline.Synthesizer
	Voice    pipeline.Synthesizer
	Output   audio.Output
}

func newSession(ctx context.Context, mc cases.Case, cfg pipeline.Config, deps sessionDeps, out io.Writer,
	logger *slog.Logger) *session {
	relay, typed := deps.Capture.(*capture.Relay)
	if !typed {
		relay = nil
	}
	s := &session{ //nolint:exhaustruct // nothing asked yet
		engine: deps.Engine,
		controller: pipeline.New(ctx, cfg, pipeline.Dependencies{
			Capture:  deps.Capture,
			Answers:  deps.Answers,
			Narrator: deps.Narrator,
			Voice:    deps.Voice,
			Output:   deps.Output,
		}, logger),
		relay:   relay,
		mc:      mc,
		console: &console{mu: sync.Mutex{}, out: out},
		logger:  logger,
	}
	s.controller.OnStateChange(func(status pipeline.Status) {
		s.console.printf("~ %s (%d questions left)", status.Message, status.QuestionsRemaining)
	})
	s.controller.OnQuestion(func(q pipeline.Question) {
		s.mu.Lock()
		s.asked = q.Text
		s.mu.Unlock()
		s.console.printf("You: %s", q.Text)
	})
	s.controller.OnResponse(func(resp ai.Response) {
		s.console.printf("Orb: %s", resp.Text)
		if resp.RevealedClue != "" {
			s.console.printf("  Clue: %s", resp.RevealedClue)
		}
		s.mu.Lock()
		question := s.asked
		s.mu.Unlock()
		if err := s.engine.RecordExchange(ctx, localPlayer, mc.ID, question, resp); err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to record exchange", errors.SlogError(err))
		}
	})
	s.controller.OnTextOnly(func(text string) {
		s.console.printf("(unvoiced) %s", text)
	})
	return s
}

// run reads commands from in until the player quits, solves the case, or ctx is done.
func (s *session) run(ctx context.Context, in io.Reader) error {
	defer s.controller.Close()

	s.console.printf("%s: %s", s.mc.Title, s.mc.Subtitle)
	for _, suspect := range s.mc.Suspects {
		s.console.printf("  %-16s %s, %s", suspect.ID, suspect.Name, suspect.Title)
	}
	s.console.printf("%s", help)
	s.controller.StartStoryNarration(s.mc)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		command, arg := parseCommand(line)
		switch command {
		case "":
			if s.relay != nil {
				s.console.printf("No microphone here, type t <question> instead.")
				continue
			}
			s.start()
		case "t":
			if arg == "" {
				s.console.printf("Ask something.")
				continue
			}
			s.ask(ctx, arg)
		case "n":
			if !s.controller.StartStoryNarration(s.mc) {
				s.console.printf("The Orb is busy.")
			}
		case "s":
			s.controller.StopAudio()
		case "r":
			s.controller.Reset()
		case "a":
			solved, err := s.accuse(ctx, arg)
			if err != nil {
				return err
			}
			if solved {
				return nil
			}
		case "q":
			return nil
		default:
			s.console.printf("%s", help)
		}
	}
}

func parseCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	command, arg, _ := strings.Cut(line, " ")
	return strings.ToLower(command), strings.TrimSpace(arg)
}

func (s *session) start() bool {
	if !s.controller.StartVoiceCapture() {
		s.console.printf("The Orb cannot listen now: %s", s.controller.Status().Message)
		return false
	}
	return true
}

// ask hands a typed question to the open capture session.
func (s *session) ask(ctx context.Context, question string) {
	if s.relay == nil {
		s.console.printf("Speak your question instead, press Enter.")
		return
	}
	if !s.start() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second) //nolint:mnd // the cycle registers at once
	defer cancel()
	ticker := time.NewTicker(10 * time.Millisecond) //nolint:mnd // 10ms
	defer ticker.Stop()
	for !s.relay.Listening() {
		select {
		case <-ctx.Done():
			s.console.printf("The Orb did not hear you.")
			return
		case <-ticker.C:
		}
	}
	if err := s.relay.Submit(question, 1); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "could not submit question", errors.SlogError(err))
	}
}

// accuse judges the accusation and voices the verdict. It reports whether the case was solved.
func (s *session) accuse(ctx context.Context, suspectID string) (bool, error) {
	verdict, err := s.engine.Accuse(ctx, localPlayer, s.mc.ID, suspectID)
	if errors.Is(err, game.ErrUnknownSuspect) {
		s.console.printf("Nobody here goes by %q.", suspectID)
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "accuse")
	}

	s.console.printf("You accuse %s.", verdict.Suspect)
	s.console.printf("Orb: %s", verdict.Narration)
	s.controller.StartAnnouncement(verdict.Speech())
	if !verdict.Correct {
		return false, nil
	}
	if verdict.NextLevel > 0 {
		s.console.printf("Level %d unlocked. Play it with --level %d.", verdict.NextLevel, verdict.NextLevel)
	}
	s.awaitAnnouncement(ctx)
	return true, nil
}

// awaitAnnouncement blocks until the verdict has been heard or stopped, so that closing the session does not cut it
// short.
func (s *session) awaitAnnouncement(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond) //nolint:mnd // 50ms
	defer ticker.Stop()
	for s.controller.Status().State == pipeline.Narrating {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
