package img

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/config"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/providers"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "img",
	Title: "Image operations",
}

func init() {
	Portraits.Flags().Int("level", 1, "level of the case whose suspects are drawn")
	Portraits.Flags().String("out", "./portraits", "directory for the generated portraits")
}

var Portraits = &cobra.Command{
	Use:     "portraits",
	GroupID: "img",
	Short:   "Generate suspect portraits",
	Long:    `Generates a portrait of every suspect of a case with Dall-E from the suspect's appearance`,
	Args:    cobra.NoArgs,
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
		c := providers.OpenAIClient(cfg)
		if c == nil {
			return errors.New("OPENAI_API_KEY is not set")
		}
		catalog, err := cases.Load()
		if err != nil {
			return errors.Wrap(err, "load cases")
		}
		mc, err := catalog.ByLevel(level)
		if err != nil {
			return errors.Wrap(err, "find case", slog.Int("level", level))
		}
		if err = os.MkdirAll(outDir, 0o755); err != nil { //nolint:mnd // rwxr-xr-x
			return errors.Wrap(err, "create out dir", slog.String("dir", outDir))
		}

		for _, suspect := range mc.Suspects {
			outPath := filepath.Join(outDir, suspect.ID+".png")
			if err = generate(cmd.Context(), c, portraitPrompt(mc, suspect), outPath); err != nil {
				return errors.Wrap(err, "generate portrait", slog.String("suspect", suspect.ID))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "The portrait of %s was saved as %s\n", suspect.Name, outPath)
		}
		return nil
	},
}

func portraitPrompt(mc cases.Case, suspect cases.Suspect) string {
	return fmt.Sprintf("A moody Victorian oil painting portrait of %s, %s, at %s. %s",
		suspect.Name, suspect.Title, mc.Location, suspect.Appearance)
}

func generate(ctx context.Context, c *openai.Client, prompt string, outPath string) error {
	request := openai.ImageRequest{ //nolint:exhaustruct // defaults for the rest
		Model:          openai.CreateImageModelDallE3,
		Prompt:         prompt,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
	}

	response, err := c.CreateImage(ctx, request)
	if err != nil {
		return errors.Wrap(err, "create image")
	}
	if len(response.Data) == 0 {
		return errors.New("no image in response")
	}

	imgBytes, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return errors.Wrap(err, "base64 decode")
	}
	imgData, err := png.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return errors.Wrap(err, "png decode")
	}

	file, err := os.Create(outPath)
	if err != nil {
		return errors.Wrap(err, "create file", slog.String("path", outPath))
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	if err = png.Encode(file, imgData); err != nil {
		return errors.Wrap(err, "png encode")
	}
	return nil
}
