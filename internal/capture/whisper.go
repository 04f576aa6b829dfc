package capture

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"math"
	"os/exec"
	"strings"
	"time"

	"github.com/myrjola/orb/internal/errors"
	"github.com/sashabaranov/go-openai"
)

// DefaultRecorderCommand records up to eight seconds of 16 kHz mono WAV from the default ALSA device to stdout.
var DefaultRecorderCommand = []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "wav", "-d", "8", "-"}

// Recorder records one utterance of audio.
type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
	Available() bool
}

// CommandRecorder records by running an external program that writes WAV to stdout.
type CommandRecorder struct {
	Command []string
}

func (r CommandRecorder) Available() bool {
	if len(r.Command) == 0 {
		return false
	}
	_, err := exec.LookPath(r.Command[0])
	return err == nil
}

func (r CommandRecorder) Record(ctx context.Context) ([]byte, error) {
	if len(r.Command) == 0 {
		return nil, &Error{Kind: KindDeviceUnavailable, Err: errors.New("no recorder configured")}
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...) //nolint:gosec // configured command
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "recording cancelled")
		}
		return nil, classifyRecorderError(err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func classifyRecorderError(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	annotated := errors.Wrap(err, "run recorder", slog.String("stderr", stderr))
	lower := strings.ToLower(stderr)
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return &Error{Kind: KindDeviceUnavailable, Err: annotated}
	case strings.Contains(lower, "permission denied"):
		return &Error{Kind: KindPermissionDenied, Err: annotated}
	case strings.Contains(lower, "no such file"), strings.Contains(lower, "audio open error"),
		strings.Contains(lower, "no such device"):
		return &Error{Kind: KindDeviceUnavailable, Err: annotated}
	default:
		return &Error{Kind: KindOther, Err: annotated}
	}
}

// Whisper records from the microphone and transcribes with OpenAI Whisper.
type Whisper struct {
	recorder Recorder
	client   *openai.Client
	language string
	logger   *slog.Logger
}

func NewWhisper(recorder Recorder, client *openai.Client, language string, logger *slog.Logger) *Whisper {
	return &Whisper{
		recorder: recorder,
		client:   client,
		language: language,
		logger:   logger.With(slog.String("component", "capture.whisper")),
	}
}

func (w *Whisper) Available() bool {
	return w.client != nil && w.recorder.Available()
}

// noSpeechThreshold marks a segment as silence when Whisper itself thinks so.
const noSpeechThreshold = 0.8

func (w *Whisper) Listen(ctx context.Context) (Utterance, error) {
	audio, err := w.recorder.Record(ctx)
	if err != nil {
		return Utterance{}, err //nolint:exhaustruct // zero value
	}
	if ctx.Err() != nil {
		return Utterance{}, errors.Wrap(ctx.Err(), "listen cancelled") //nolint:exhaustruct // zero value
	}
	// A bare WAV header is 44 bytes.
	if len(audio) <= 44 { //nolint:mnd // see above
		return Utterance{}, &Error{Kind: KindNoSpeech, Err: nil} //nolint:exhaustruct // zero value
	}

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{ //nolint:exhaustruct // optional fields
		Model:    openai.Whisper1,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(audio),
		Language: w.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Utterance{}, errors.Wrap(ctx.Err(), "listen cancelled") //nolint:exhaustruct // zero value
		}
		return Utterance{}, &Error{Kind: KindOther, Err: errors.Wrap(err, "transcribe")} //nolint:exhaustruct // zero value
	}

	speechSegments := 0
	logprobSum := 0.0
	for _, segment := range resp.Segments {
		if segment.NoSpeechProb > noSpeechThreshold {
			continue
		}
		speechSegments++
		logprobSum += segment.AvgLogprob
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" || (len(resp.Segments) > 0 && speechSegments == 0) {
		return Utterance{}, &Error{Kind: KindNoSpeech, Err: nil} //nolint:exhaustruct // zero value
	}

	confidence := 0.0
	if speechSegments > 0 {
		confidence = math.Exp(logprobSum / float64(speechSegments))
	}

	w.logger.LogAttrs(ctx, slog.LevelDebug, "transcribed utterance",
		slog.Int("bytes", len(audio)),
		slog.Int("segments", len(resp.Segments)),
		slog.Float64("confidence", confidence),
		slog.Duration("elapsed", time.Since(start)))

	return Utterance{Text: text, Confidence: min(confidence, 1), CapturedAt: time.Now()}, nil
}
