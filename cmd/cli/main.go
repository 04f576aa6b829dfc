package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/myrjola/orb/cmd/cli/img"
	"github.com/myrjola/orb/cmd/cli/narration"
	"github.com/myrjola/orb/cmd/cli/play"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/logging"
	"github.com/spf13/cobra"
)

func init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	verbose := rootCmd.PersistentFlags().Bool("verbose", false, "log debug output to stderr")
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		level := slog.LevelWarn
		if *verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			AddSource:   false,
			Level:       level,
			ReplaceAttr: nil,
		}))))
	}

	rootCmd.AddGroup(play.Group)
	rootCmd.AddCommand(play.Play, play.Cases)
	rootCmd.AddGroup(narration.Group)
	rootCmd.AddCommand(narration.Record)
	rootCmd.AddGroup(img.Group)
	rootCmd.AddCommand(img.Portraits)
}

var rootCmd = &cobra.Command{
	Use:  "orb-cli",
	Long: `Command line utilities for the Orb https://github.com/myrjola/orb`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
