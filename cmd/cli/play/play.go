// Package play interrogates suspects from the terminal.
package play

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/myrjola/orb/internal/audio/speaker"
	"github.com/myrjola/orb/internal/capture"
	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/config"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/game"
	"github.com/myrjola/orb/internal/pipeline"
	"github.com/myrjola/orb/internal/providers"
	"github.com/myrjola/orb/internal/repositories"
	"github.com/myrjola/orb/internal/sqlite"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "game",
	Title: "Playing",
}

func init() {
	Play.Flags().Int("level", 1, "level of the case to interrogate")
}

var Play = &cobra.Command{
	Use:     "play",
	GroupID: "game",
	Short:   "Interrogate the suspects of a case",
	Long: `Interrogates the suspects of a case through the Orb. Questions are recorded from the microphone and
transcribed with Whisper when an OpenAI key and a recorder are available, otherwise they are typed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		level, err := cmd.Flags().GetInt("level")
		if err != nil {
			return errors.Wrap(err, "invalid level flag")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return run(ctx, level, slog.Default())
	},
}

func run(ctx context.Context, level int, logger *slog.Logger) error {
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SqliteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "close database", errors.SlogError(closeErr))
		}
	}()

	var catalog *cases.Catalog
	if catalog, err = cases.Load(); err != nil {
		return errors.Wrap(err, "load cases")
	}
	engine := game.NewEngine(catalog, repositories.NewProgressRepository(db, logger),
		repositories.NewExchangeRepository(db, logger), logger)
	mc, err := engine.Case(ctx, localPlayer, level)
	if errors.Is(err, game.ErrLevelLocked) {
		return errors.New("solve the earlier cases first", slog.Int("level", level))
	}
	if err != nil {
		return errors.Wrap(err, "open case")
	}

	client := providers.OpenAIClient(cfg)
	answers, err := providers.Answerer(ctx, cfg, client, logger)
	if err != nil {
		return errors.Wrap(err, "new answerer")
	}
	narrator, voice, err := providers.Voices(cfg, client, false, logger)
	if err != nil {
		return errors.Wrap(err, "new voices")
	}

	var recognizer capture.Recognizer = capture.NewRelay()
	whisper := capture.NewWhisper(capture.CommandRecorder{Command: cfg.RecorderCommand}, client, cfg.WhisperLanguage,
		logger)
	if whisper.Available() {
		recognizer = whisper
	} else {
		logger.LogAttrs(ctx, slog.LevelInfo, "no microphone transcription, questions are typed",
			slog.String("recorder", strings.Join(cfg.RecorderCommand, " ")))
	}

	s := newSession(ctx, mc, pipeline.Config{ //nolint:exhaustruct // defaults
		MaxQuestions: cfg.MaxQuestions,
	}, sessionDeps{
		Engine:   engine,
		Capture:  recognizer,
		Answers:  answers,
		Narrator: narrator,
		Voice:    voice,
		Output:   speaker.New(logger),
	}, os.Stdout, logger)
	return s.run(ctx, os.Stdin)
}

var Cases = &cobra.Command{
	Use:     "cases",
	GroupID: "game",
	Short:   "List the cases and their suspects",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := cases.Load()
		if err != nil {
			return errors.Wrap(err, "load cases")
		}
		out := cmd.OutOrStdout()
		for _, mc := range catalog.All() {
			_, _ = fmt.Fprintf(out, "Level %d: %s, %s\n", mc.Level, mc.Title, mc.Subtitle)
			_, _ = fmt.Fprintf(out, "  Victim: %s, %s\n", mc.Victim.Name, mc.Victim.Title)
			for _, s := range mc.Suspects {
				_, _ = fmt.Fprintf(out, "  %-16s %s, %s\n", s.ID, s.Name, s.Title)
			}
		}
		return nil
	},
}
