package audio_test

import (
	"context"
	"testing"

	"github.com/myrjola/orb/internal/audio"
	"github.com/myrjola/orb/internal/speech"
	"github.com/stretchr/testify/require"
)

func TestClipOf(t *testing.T) {
	clip := audio.ClipOf(speech.Speech{Audio: []byte{1, 2}, Format: speech.FormatWAV, Provider: "espeak"})
	require.Equal(t, audio.Clip{Audio: []byte{1, 2}, Format: speech.FormatWAV, Utterance: nil}, clip)
}

func TestDiscard(t *testing.T) {
	var out audio.Output = audio.Discard{}
	require.False(t, out.Suspended())
	require.NoError(t, out.Resume(context.Background()))

	track, err := out.Decode(context.Background(), audio.Clip{Audio: []byte{1}, Format: speech.FormatMP3})
	require.NoError(t, err)
	require.Zero(t, track.Duration())
	require.NoError(t, track.Play(context.Background()))
	track.Stop()
	track.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, track.Play(ctx), context.Canceled)
}
