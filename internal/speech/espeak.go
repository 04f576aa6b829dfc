package speech

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/myrjola/orb/internal/errors"
)

// Espeak synthesizes on the host with espeak-ng. It is the last resort that still produces audio.
type Espeak struct {
	bin    string
	voice  string
	logger *slog.Logger
}

func NewEspeak(bin string, voice string, logger *slog.Logger) *Espeak {
	if bin == "" {
		bin = "espeak-ng"
	}
	return &Espeak{
		bin:    bin,
		voice:  voice,
		logger: logger.With(slog.String("component", "speech.espeak")),
	}
}

func (e *Espeak) Name() string {
	return "espeak"
}

// Available reports whether the binary can be found.
func (e *Espeak) Available() bool {
	_, err := exec.LookPath(e.bin)
	return err == nil
}

// espeakArgs converts a preset to espeak-ng flags. Speed is in words per minute around the default of 175,
// pitch is 0-99 around 50 and amplitude is 0-200 around 100.
func espeakArgs(p Preset, voice string) []string {
	//nolint:mnd // espeak-ng defaults
	args := []string{
		"--stdout",
		"-s", strconv.Itoa(int(math.Round(175 * p.Rate))),
		"-p", strconv.Itoa(int(math.Round(clamp(50*p.Pitch, 0, 99)))),
		"-a", strconv.Itoa(int(math.Round(clamp(100*p.Volume, 0, 200)))),
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return args
}

func (e *Espeak) Synthesize(ctx context.Context, req Request) Result {
	if !e.Available() {
		return failed(errors.Wrap(ErrUnavailable, "espeak-ng not installed", slog.String("bin", e.bin)))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.bin, espeakArgs(PresetFor(req.Emotion), e.voice)...) //nolint:gosec // configured binary
	cmd.Stdin = strings.NewReader(req.Text)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return failed(errors.Wrap(err, "run espeak-ng", slog.String("stderr", strings.TrimSpace(stderr.String()))))
	}
	if stdout.Len() == 0 {
		return failed(errors.Wrap(ErrEmptyAudio, "espeak-ng"))
	}

	return succeeded(Speech{
		Audio:     stdout.Bytes(),
		Format:    FormatWAV,
		Utterance: nil,
		Provider:  "espeak",
		Voice:     e.voice,
	})
}
