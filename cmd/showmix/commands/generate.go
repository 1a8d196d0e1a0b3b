package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/airloom/showmix/pkg/show"
	"github.com/airloom/showmix/pkg/storage"
	"github.com/airloom/showmix/pkg/tts"
)

// generateRequest is the show request file format. Durations are given in
// seconds, like the catalog file.
type generateRequest struct {
	Config   show.Config    `yaml:"config" json:"config"`
	Segments []segmentEntry `yaml:"segments" json:"segments"`
}

type segmentEntry struct {
	Index              int     `yaml:"index" json:"index"`
	Speaker            string  `yaml:"speaker" json:"speaker"`
	Text               string  `yaml:"text" json:"text"`
	Emotion            string  `yaml:"emotion,omitempty" json:"emotion,omitempty"`
	EstimatedDurationS float64 `yaml:"estimated_duration_s,omitempty" json:"estimated_duration_s,omitempty"`
}

func (e segmentEntry) segment() show.ScriptSegment {
	return show.ScriptSegment{
		Index:             e.Index,
		Speaker:           e.Speaker,
		Text:              e.Text,
		Emotion:           e.Emotion,
		EstimatedDuration: time.Duration(e.EstimatedDurationS * float64(time.Second)),
	}
}

var synthBaseURL string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Assemble a full show from a script file",
	Long: `Assemble a full show from a script file.

The request file carries the show configuration and the ordered script
segments. The finished show is stored under shows/ in the storage root;
with -o it is additionally copied to the given path.

Example request file (show.yaml):
  config:
    primary_speaker: marta
    active_categories: [weather]
    quality_tier: balanced
  segments:
    - index: 0
      speaker: marta
      text: Good morning, here is your daily briefing.
    - index: 1
      speaker: weather
      text: Expect light rain in the afternoon.

Examples:
  showmix --catalog catalog.yaml --store ./data generate -f show.yaml -o show.wav
  showmix --catalog catalog.yaml --store ./data generate -f show.yaml --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireInputFile(); err != nil {
			return err
		}

		var req generateRequest
		if err := loadRequest(inputFile, &req); err != nil {
			return err
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}

		apiKey := os.Getenv("SHOWMIX_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("synthesis key missing, set SHOWMIX_API_KEY")
		}
		var opts []tts.Option
		if synthBaseURL != "" {
			opts = append(opts, tts.WithBaseURL(synthBaseURL))
		}
		client := tts.NewClient(apiKey, opts...)

		segments := make([]show.ScriptSegment, len(req.Segments))
		for i, e := range req.Segments {
			segments[i] = e.segment()
		}

		orch := show.New(cat.Speakers, cat.Tiers, cat.Jingles, client, store)
		out, err := orch.Generate(cmd.Context(), req.Config, segments)
		if err != nil {
			return err
		}

		if outputFile != "" {
			if err := copyArtifact(cmd.Context(), store, out.ShowID, outputFile); err != nil {
				return fmt.Errorf("copy artifact: %w", err)
			}
		}
		return outputResult(out)
	},
}

// copyArtifact copies the stored show WAV to a local path.
func copyArtifact(ctx context.Context, store storage.FileStore, showID, dst string) error {
	r, err := store.Read(ctx, "shows/"+showID+".wav")
	if err != nil {
		return err
	}
	defer r.Close()
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	generateCmd.Flags().StringVar(&synthBaseURL, "base-url", "", "synthesis provider base URL override")
}
