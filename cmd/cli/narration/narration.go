// Package narration pre-records the case introductions so that the Orb does not synthesize them for every player.
package narration

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/config"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/pipeline"
	"github.com/myrjola/orb/internal/providers"
	"github.com/myrjola/orb/internal/speech"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "assets",
	Title: "Game assets",
}

func init() {
	Record.Flags().Int("level", 0, "level to record, 0 records every level")
	Record.Flags().String("out", "./recordings", "directory for the recordings")
}

var Record = &cobra.Command{
	Use:     "record-narration",
	GroupID: "assets",
	Short:   "Record the case introductions",
	Long: `Records the introduction of each case with the remote voices. The Orb plays the recordings instead of
synthesizing the introductions when ORB_RECORDINGS_DIR points to the output directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		level, err := cmd.Flags().GetInt("level")
		if err != nil {
			return errors.Wrap(err, "invalid level flag")
		}
		outDir, err := cmd.Flags().GetString("out")
		if err != nil {
			return errors.Wrap(err, "invalid out flag")
		}
		cfg, err := config.Load(os.LookupEnv)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		catalog, err := cases.Load()
		if err != nil {
			return errors.Wrap(err, "load cases")
		}
		selected := catalog.All()
		if level != 0 {
			var mc cases.Case
			if mc, err = catalog.ByLevel(level); err != nil {
				return errors.Wrap(err, "find case", slog.Int("level", level))
			}
			selected = []cases.Case{mc}
		}

		logger := slog.Default()
		voices, err := providers.RemoteVoices(cfg, providers.OpenAIClient(cfg), logger)
		if err != nil {
			return errors.Wrap(err, "remote voices")
		}
		if len(voices) == 0 {
			return errors.New("no remote voice configured, set ELEVENLABS_API_KEY or OPENAI_API_KEY")
		}
		if err = os.MkdirAll(outDir, 0o755); err != nil { //nolint:mnd // rwxr-xr-x
			return errors.Wrap(err, "create out dir", slog.String("dir", outDir))
		}

		chain := speech.NewChain(logger, voices...)
		for _, mc := range selected {
			var path string
			if path, err = record(cmd.Context(), chain, mc, outDir); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Level %d narration was saved as %s\n", mc.Level, path)
		}
		return nil
	},
}

// record speaks the introduction of mc and writes it where speech.Recording looks for it.
func record(ctx context.Context, synth pipeline.Synthesizer, mc cases.Case, outDir string) (string, error) {
	req := pipeline.NarrationRequest(mc)
	outcome := synth.Speak(ctx, req)
	if outcome.Exhausted() {
		return "", errors.New("every voice failed", slog.Int("level", mc.Level),
			slog.Int("attempts", len(outcome.Attempts)))
	}
	if outcome.Speech.Format != speech.FormatMP3 {
		return "", errors.New("narration is not mp3", slog.String("format", string(outcome.Speech.Format)),
			slog.String("provider", outcome.Speech.Provider))
	}
	path := speech.RecordingPath(outDir, req.Recording)
	if err := os.WriteFile(path, outcome.Speech.Audio, 0o644); err != nil { //nolint:gosec,mnd // rw-r--r--
		return "", errors.Wrap(err, "write narration", slog.String("path", path))
	}
	return path, nil
}
