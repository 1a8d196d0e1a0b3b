package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/airloom/showmix/pkg/catalog"
	"github.com/airloom/showmix/pkg/storage"
)

var (
	// Global flags
	catalogFile string
	storeDir    string
	inputFile   string
	outputFile  string
	outputJSON  bool
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "showmix",
	Short: "Radio show assembly tool",
	Long: `showmix - assemble complete radio shows from script segments.

The tool synthesizes each script segment with the configured speaker
voices, selects a fitting jingle bed, mixes the six-phase timeline,
and stores the finished show as a WAV file.

Examples:
  # Generate a show from a script file
  showmix --catalog catalog.yaml --store ./data generate -f show.yaml -o show.wav

  # Inspect the configured catalogs
  showmix --catalog catalog.yaml speakers
  showmix --catalog catalog.yaml jingles --json
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "catalog.yaml", "catalog file (speakers, jingles, tiers)")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", ".", "storage root for audio assets and finished shows")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout / store only)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(speakersCmd)
	rootCmd.AddCommand(jinglesCmd)
	rootCmd.AddCommand(tiersCmd)
}

// openCatalog loads the catalog file named by the global flag.
func openCatalog() (*catalog.Store, error) {
	s, err := catalog.Open(catalogFile, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return s, nil
}

// openStore opens the local storage root named by the global flag.
func openStore() (storage.FileStore, error) {
	return storage.NewLocal(storeDir)
}
