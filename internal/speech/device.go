package speech

import (
	"context"
	"strings"

	"github.com/myrjola/orb/internal/errors"
)

// Device hands the line to a client that can synthesize speech itself, such as a browser.
type Device struct{}

func (Device) Name() string {
	return "device"
}

func (Device) Synthesize(_ context.Context, req Request) Result {
	if strings.TrimSpace(req.Text) == "" {
		return failed(errors.Wrap(ErrUnavailable, "nothing to say"))
	}
	return succeeded(Speech{
		Audio:     nil,
		Format:    "",
		Utterance: &Utterance{Text: req.Text, Preset: PresetFor(req.Emotion)},
		Provider:  "device",
		Voice:     "",
	})
}
