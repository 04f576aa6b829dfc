// Package pipeline drives one player's interrogation of the Orb: narrate the case, capture a question, answer it,
// speak the answer, and hand control back until the question budget is spent.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/myrjola/orb/internal/ai"
	"github.com/myrjola/orb/internal/audio"
	"github.com/myrjola/orb/internal/capture"
	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/logging"
	"github.com/myrjola/orb/internal/speech"
)

const (
	DefaultMaxQuestions = 3
	DefaultDebugLines   = 20
	DefaultHintAfter    = 5 * time.Second

	// Transcripts this short or shorter are treated as noise.
	minQuestionRunes = 2

	narrationIntensity = 0.8
)

// ErrNoOutput is logged when a cycle has speech but nowhere to play it.
var ErrNoOutput = errors.NewSentinel("no audio output")

// Synthesizer turns a line into speech. It reports exhaustion through the outcome instead of an error.
type Synthesizer interface {
	Speak(ctx context.Context, req speech.Request) speech.Outcome
}

// Config tunes a Controller. Zero values take the defaults.
type Config struct {
	MaxQuestions int
	DebugLines   int
	// HintAfter is how long listening may last before the debug log suggests speaking up.
	HintAfter time.Duration
	Now       func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxQuestions <= 0 {
		c.MaxQuestions = DefaultMaxQuestions
	}
	if c.DebugLines <= 0 {
		c.DebugLines = DefaultDebugLines
	}
	if c.HintAfter <= 0 {
		c.HintAfter = DefaultHintAfter
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Dependencies are the collaborators a Controller drives. Narrator defaults to Voice when nil.
type Dependencies struct {
	Capture  capture.Recognizer
	Answers  ai.Answerer
	Narrator Synthesizer
	Voice    Synthesizer
	Output   audio.Output
}

// Controller is the voice pipeline state machine. All methods are safe for concurrent use and never block on
// collaborators. Work started by a trigger runs on its own goroutine and is discarded once a later trigger supersedes
// it.
type Controller struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger
	base   context.Context //nolint:containedctx // cycles outlive the triggering call

	mu    sync.Mutex
	state State
	// epoch is bumped whenever in-flight work must be abandoned. Work checks it before every transition.
	epoch    uint64
	cancel   context.CancelFunc
	hint     *time.Timer
	track    audio.Track
	asked    int
	current  *cases.Case
	previous []string
	clues    []string
	debug    *debugLog
	closed   bool
	changed  bool

	events    *dispatcher
	onState   listeners[Status]
	onAsk     listeners[Question]
	onAnswer  listeners[ai.Response]
	onFailure listeners[string]
}

// New creates an idle controller. Work started by the controller inherits ctx's values and is cancelled with it.
// Close must be called once the controller is no longer needed, since it stops the goroutine delivering events to
// listeners.
func New(ctx context.Context, cfg Config, deps Dependencies, logger *slog.Logger) *Controller {
	cfg = cfg.withDefaults()
	if deps.Narrator == nil {
		deps.Narrator = deps.Voice
	}
	logger = logger.With(slog.String("component", "pipeline"))
	return &Controller{ //nolint:exhaustruct // listeners are zero valued
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		base:   ctx,
		state:  Idle,
		debug:  newDebugLog(cfg.DebugLines),
		events: newDispatcher(logger),
	}
}

// OnStateChange subscribes fn to status snapshots. The returned function unsubscribes.
func (c *Controller) OnStateChange(fn func(Status)) func() {
	return c.onState.add(fn)
}

// OnQuestion subscribes fn to accepted questions.
func (c *Controller) OnQuestion(fn func(Question)) func() {
	return c.onAsk.add(fn)
}

// OnResponse subscribes fn to answers as soon as they are generated, before they are spoken.
func (c *Controller) OnResponse(fn func(ai.Response)) func() {
	return c.onAnswer.add(fn)
}

// OnTextOnly subscribes fn to lines that could not be voiced and should be shown instead.
func (c *Controller) OnTextOnly(fn func(string)) func() {
	return c.onFailure.add(fn)
}

// Status returns a snapshot of the pipeline.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// IsVoiceSupported reports whether both speech capture and audio playback are available.
func (c *Controller) IsVoiceSupported() bool {
	return c.deps.Capture != nil && c.deps.Capture.Available() && c.deps.Output != nil
}

// Case returns the case being interrogated, if any.
func (c *Controller) Case() (cases.Case, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return cases.Case{}, false //nolint:exhaustruct // zero value
	}
	return *c.current, true
}

// Game returns the case-scoped progress.
func (c *Controller) Game() ai.GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameLocked()
}

// StartStoryNarration selects mc and speaks its introduction. It resets the case-scoped state and reports false
// without side effects unless the pipeline is idle or complete.
func (c *Controller) StartStoryNarration(mc cases.Case) bool {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return false
	}
	if c.state != Idle && c.state != Complete {
		c.logLocked(slog.LevelWarn, "Cannot start narration - pipeline busy", slog.String("state", string(c.state)))
		return false
	}
	c.clearCaseLocked()
	c.current = &mc
	ctx, epoch := c.beginLocked()
	c.setStateLocked(Narrating)
	c.logLocked(slog.LevelInfo, "Starting story narration: "+mc.Title, slog.String("case", mc.ID))

	go c.narrate(ctx, epoch, NarrationRequest(mc), "Story", "Story narration complete - interrogation phase enabled")
	return true
}

// StartAnnouncement speaks req with the narrator voice, superseding whatever the pipeline is doing. The case and
// question count are kept. Afterwards the pipeline is idle, or complete when no questions remain. It reports false
// only once the controller is closed.
func (c *Controller) StartAnnouncement(req speech.Request) bool {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return false
	}
	if c.state != Idle && c.state != Complete {
		c.logLocked(slog.LevelInfo, "Interrupting for an announcement", slog.String("state", string(c.state)))
	}
	ctx, epoch := c.beginLocked()
	c.setStateLocked(Narrating)
	c.logLocked(slog.LevelInfo, "Announcing: "+preview(req.Text))

	go c.narrate(ctx, epoch, req, "Announcement", "Announcement complete")
	return true
}

// NarrationRequest is the line that introduces mc. Its recording is named after the level, e.g., "level1".
func NarrationRequest(mc cases.Case) speech.Request {
	return speech.Request{
		Text:      mc.IntroNarration,
		Emotion:   speech.Mysterious,
		Intensity: narrationIntensity,
		Recording: fmt.Sprintf("level%d", mc.Level),
	}
}

// StartVoiceCapture opens a capture session. It reports false without changing state unless the pipeline is idle
// with questions remaining. Asking with no questions remaining completes the case.
func (c *Controller) StartVoiceCapture() bool {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return false
	}
	if c.deps.Capture == nil || !c.deps.Capture.Available() {
		c.logLocked(slog.LevelWarn, "Speech recognition not available")
		return false
	}
	if c.asked >= c.cfg.MaxQuestions {
		c.logLocked(slog.LevelInfo, "No questions remaining")
		if c.state == Idle {
			c.setStateLocked(Complete)
		}
		return false
	}
	if c.state != Idle {
		c.logLocked(slog.LevelWarn, "Cannot start capture - pipeline busy", slog.String("state", string(c.state)))
		return false
	}
	ctx, epoch := c.beginLocked()
	c.setStateLocked(Listening)
	c.logLocked(slog.LevelInfo, "Starting voice capture...")
	c.hint = time.AfterFunc(c.cfg.HintAfter, func() { c.remind(epoch) })
	go c.listen(ctx, epoch)
	return true
}

// StopVoiceCapture abandons an open capture session. Nothing it would have heard is processed.
func (c *Controller) StopVoiceCapture() {
	c.mu.Lock()
	defer c.unlock()
	if c.state != Listening {
		return
	}
	c.abandonLocked()
	c.setStateLocked(Idle)
	c.logLocked(slog.LevelInfo, "Voice capture stopped")
}

// StopAudio halts narration or a spoken answer at once and returns to idle. Speech still being synthesized is
// discarded.
func (c *Controller) StopAudio() {
	c.mu.Lock()
	defer c.unlock()
	if c.state != Speaking && c.state != Narrating {
		return
	}
	c.abandonLocked()
	c.setStateLocked(Idle)
	c.logLocked(slog.LevelInfo, "Audio stopped")
}

// Reset abandons all work and clears the case, question count, and debug log.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.unlock()
	c.resetLocked()
}

// Close resets the controller and drops every subscriber. The controller rejects triggers afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.resetLocked()
	c.closed = true
	c.changed = false
	c.mu.Unlock()

	c.events.stop()
	c.onState.clear()
	c.onAsk.clear()
	c.onAnswer.clear()
	c.onFailure.clear()
}

func (c *Controller) resetLocked() {
	c.abandonLocked()
	c.clearCaseLocked()
	c.debug.clear()
	c.setStateLocked(Idle)
	c.changed = true
	c.logger.LogAttrs(c.base, slog.LevelInfo, "pipeline reset")
}

func (c *Controller) clearCaseLocked() {
	c.asked = 0
	c.current = nil
	c.previous = nil
	c.clues = nil
}

// beginLocked abandons earlier work and starts a new cycle.
func (c *Controller) beginLocked() (context.Context, uint64) {
	c.abandonLocked()
	ctx, cancel := context.WithCancel(logging.WithAttrs(c.base, slog.Uint64("cycle", c.epoch)))
	c.cancel = cancel
	return ctx, c.epoch
}

// abandonLocked invalidates in-flight work and silences playback before returning.
func (c *Controller) abandonLocked() {
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.hint != nil {
		c.hint.Stop()
		c.hint = nil
	}
	if c.track != nil {
		c.track.Stop()
		c.track = nil
	}
}

// finishLocked ends the current cycle in next.
func (c *Controller) finishLocked(next State) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.hint != nil {
		c.hint.Stop()
		c.hint = nil
	}
	c.track = nil
	c.setStateLocked(next)
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.logger.LogAttrs(c.base, slog.LevelDebug, "pipeline state changed",
		slog.String("from", string(c.state)), slog.String("to", string(s)))
	c.state = s
	c.changed = true
}

// logLocked records msg in both the player visible debug log and the server log.
func (c *Controller) logLocked(level slog.Level, msg string, attrs ...slog.Attr) {
	c.debug.add(fmt.Sprintf("[%s] %s", c.cfg.Now().Format(time.TimeOnly), msg))
	c.changed = true
	c.logger.LogAttrs(c.base, level, msg, attrs...)
}

func (c *Controller) statusLocked() Status {
	return Status{
		State:              c.state,
		Message:            c.state.Message(),
		QuestionsRemaining: max(c.cfg.MaxQuestions-c.asked, 0),
		IsListening:        c.state == Listening,
		IsSpeaking:         c.state == Speaking || c.state == Narrating,
		DebugLog:           c.debug.snapshot(),
	}
}

func (c *Controller) gameLocked() ai.GameState {
	return ai.GameState{
		QuestionsAsked:    c.asked,
		MaxQuestions:      c.cfg.MaxQuestions,
		PreviousQuestions: slices.Clone(c.previous),
		RevealedClues:     slices.Clone(c.clues),
	}
}

// unlock queues a status snapshot if anything changed and releases the lock. Queuing under the lock keeps
// notifications in the order the changes happened.
func (c *Controller) unlock() {
	if c.changed && !c.closed {
		c.events.enqueue(deliver(&c.onState, c.statusLocked()))
	}
	c.changed = false
	c.mu.Unlock()
}

// stale reports whether work belonging to epoch has been superseded. The caller holds the lock.
func (c *Controller) stale(epoch uint64) bool {
	return c.closed || c.epoch != epoch
}

func (c *Controller) remind(epoch uint64) {
	c.mu.Lock()
	defer c.unlock()
	if c.stale(epoch) || c.state != Listening {
		return
	}
	c.hint = nil
	c.logLocked(slog.LevelInfo, "Tip: Speak clearly and loudly. Ask again if the Orb did not hear you.")
}

// narrate speaks req with the narrator voice. what names the line in the debug log and done is logged once it has
// been heard.
func (c *Controller) narrate(ctx context.Context, epoch uint64, req speech.Request, what string, done string) {
	outcome := c.speak(ctx, c.deps.Narrator, req)

	c.mu.Lock()
	if c.stale(epoch) {
		c.unlock()
		return
	}
	c.reportOutcomeLocked(ctx, outcome, req.Text, what)
	c.unlock()

	if !outcome.Exhausted() {
		c.play(ctx, epoch, *outcome.Speech, strings.ToLower(what))
	}

	c.mu.Lock()
	defer c.unlock()
	if c.stale(epoch) {
		return
	}
	if c.current != nil && c.asked >= c.cfg.MaxQuestions {
		c.finishLocked(Complete)
	} else {
		c.finishLocked(Idle)
	}
	c.logLocked(slog.LevelInfo, done)
}

func (c *Controller) listen(ctx context.Context, epoch uint64) {
	heard, err := c.deps.Capture.Listen(ctx)

	c.mu.Lock()
	if c.stale(epoch) || c.state != Listening {
		c.unlock()
		return
	}
	if c.hint != nil {
		c.hint.Stop()
		c.hint = nil
	}
	if err != nil {
		c.logLocked(slog.LevelWarn, failureMessage(err), errors.SlogError(err))
		c.finishLocked(Idle)
		c.unlock()
		return
	}

	text := strings.TrimSpace(heard.Text)
	c.logLocked(slog.LevelInfo, fmt.Sprintf("Speech captured: %q (confidence: %.2f)", text, heard.Confidence))
	if utf8.RuneCountInString(text) <= minQuestionRunes {
		c.logLocked(slog.LevelInfo, "Speech too short, please try again")
		c.finishLocked(Idle)
		c.unlock()
		return
	}

	if c.current == nil {
		c.logLocked(slog.LevelWarn, "No active case - start the story narration first")
		c.finishLocked(Idle)
		c.unlock()
		return
	}

	question := Question{Text: text, Confidence: heard.Confidence, CapturedAt: heard.CapturedAt}
	c.asked++
	c.previous = append(c.previous, text)
	// The game state counts the question being answered.
	req := ai.Request{Question: text, Case: c.current.Context(), Game: c.gameLocked()}
	c.setStateLocked(Processing)
	c.logLocked(slog.LevelInfo, "Processing question: "+text, slog.Int("asked", c.asked))
	c.events.enqueue(deliver(&c.onAsk, question))
	c.unlock()

	c.answer(ctx, epoch, req)
}

func (c *Controller) answer(ctx context.Context, epoch uint64, req ai.Request) {
	resp := c.deps.Answers.Answer(ctx, req)
	resp.Emotion = speech.ParseEmotion(string(resp.Emotion))

	c.mu.Lock()
	if c.stale(epoch) {
		c.unlock()
		return
	}
	if resp.RevealedClue != "" && !slices.Contains(c.clues, resp.RevealedClue) {
		c.clues = append(c.clues, resp.RevealedClue)
	}
	c.logLocked(slog.LevelInfo, "Response: "+preview(resp.Text),
		slog.String("source", resp.Source), slog.String("emotion", string(resp.Emotion)))
	c.events.enqueue(deliver(&c.onAnswer, resp))
	c.setStateLocked(Speaking)
	c.unlock()

	line := speech.Request{Text: resp.Text, Emotion: resp.Emotion, Intensity: resp.Confidence, Recording: ""}
	outcome := c.speak(ctx, c.deps.Voice, line)

	c.mu.Lock()
	if c.stale(epoch) {
		c.unlock()
		return
	}
	c.reportOutcomeLocked(ctx, outcome, resp.Text, "Response")
	c.unlock()

	if !outcome.Exhausted() {
		c.play(ctx, epoch, *outcome.Speech, "response")
	}

	c.mu.Lock()
	defer c.unlock()
	if c.stale(epoch) {
		return
	}
	if c.asked >= c.cfg.MaxQuestions {
		c.finishLocked(Complete)
		c.logLocked(slog.LevelInfo, "All questions used - make your accusation")
		return
	}
	c.finishLocked(Idle)
	c.logLocked(slog.LevelInfo, fmt.Sprintf("Ready for next question (%d remaining)", c.cfg.MaxQuestions-c.asked))
}

func (c *Controller) speak(ctx context.Context, synth Synthesizer, req speech.Request) speech.Outcome {
	if synth == nil {
		return speech.Outcome{Speech: nil, Attempts: nil}
	}
	return synth.Speak(ctx, req)
}

func (c *Controller) reportOutcomeLocked(ctx context.Context, outcome speech.Outcome, text string, what string) {
	if outcome.Exhausted() {
		c.logLocked(slog.LevelWarn, "All TTS methods failed", slog.Int("attempts", len(outcome.Attempts)))
		c.logLocked(slog.LevelInfo, what+" text only: "+preview(text))
		c.events.enqueue(deliver(&c.onFailure, text))
		return
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "speech synthesized",
		slog.String("provider", outcome.Speech.Provider), slog.String("voice", outcome.Speech.Voice))
	c.logLocked(slog.LevelInfo, fmt.Sprintf("TTS success: %s", outcome.Speech.Provider))
}

// play blocks until the speech has been played, playback failed, or the cycle was abandoned.
func (c *Controller) play(ctx context.Context, epoch uint64, s speech.Speech, what string) {
	out := c.deps.Output
	err := func() error {
		if out == nil {
			return ErrNoOutput
		}
		if out.Suspended() {
			if err := out.Resume(ctx); err != nil {
				return errors.Wrap(err, "resume output")
			}
		}
		track, err := out.Decode(ctx, audio.ClipOf(s))
		if err != nil {
			return errors.Wrap(err, "decode clip", slog.String("format", string(s.Format)))
		}

		c.mu.Lock()
		if c.stale(epoch) {
			c.unlock()
			track.Stop()
			return nil
		}
		c.track = track
		if d := track.Duration(); d > 0 {
			c.logLocked(slog.LevelInfo, fmt.Sprintf("Playing %s audio (%.1fs)", what, d.Seconds()))
		} else {
			c.logLocked(slog.LevelInfo, fmt.Sprintf("Playing %s audio", what))
		}
		c.unlock()

		err = track.Play(ctx)

		c.mu.Lock()
		if c.track == track {
			c.track = nil
		}
		c.mu.Unlock()
		if err != nil && !errors.Is(err, audio.ErrStopped) && ctx.Err() == nil {
			return errors.Wrap(err, "play track")
		}
		return nil
	}()
	if err == nil {
		return
	}

	c.mu.Lock()
	defer c.unlock()
	if c.stale(epoch) {
		return
	}
	c.logLocked(slog.LevelWarn, "Audio playback failed", errors.SlogError(err))
}

func failureMessage(err error) string {
	var captureErr *capture.Error
	if errors.As(err, &captureErr) {
		return capture.Message(captureErr.Kind, captureErr.Err)
	}
	return capture.Message(capture.KindOther, err)
}

func preview(s string) string {
	const limit = 50
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
