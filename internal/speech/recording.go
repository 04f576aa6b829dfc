package speech

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/myrjola/orb/internal/errors"
)

// Recording plays pre-recorded narration from dir, e.g., dir/level1.mp3.
type Recording struct {
	dir string
}

func NewRecording(dir string) *Recording {
	return &Recording{dir: dir}
}

// RecordingPath returns where the recording named name lives.
func RecordingPath(dir string, name string) string {
	return filepath.Join(dir, name+".mp3")
}

func (r *Recording) Name() string {
	return "recording"
}

func (r *Recording) Synthesize(_ context.Context, req Request) Result {
	if r.dir == "" || req.Recording == "" {
		return failed(errors.Wrap(ErrUnavailable, "no recording"))
	}
	path := RecordingPath(r.dir, filepath.Base(req.Recording))
	audio, err := os.ReadFile(path)
	if err != nil {
		return failed(errors.Wrap(err, "read recording", slog.String("path", path)))
	}
	if len(audio) == 0 {
		return failed(errors.Wrap(ErrEmptyAudio, "recording", slog.String("path", path)))
	}
	return succeeded(Speech{
		Audio:     audio,
		Format:    FormatMP3,
		Utterance: nil,
		Provider:  "recording",
		Voice:     req.Recording,
	})
}
