package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"aprbot/internal/astx"
	"aprbot/internal/faults"
	"aprbot/internal/mutation"
	"aprbot/internal/prioritize"
)

var (
	mutateManifest string
	mutateSBFL     string
	mutateFreqs    string
	mutateFormat   string
	mutateLimit    int
	mutateDumpDir  string
)

var mutateCmd = &cobra.Command{
	Use:   "mutate",
	Short: "Generate and rank patch candidates without validating them",
	Long: `Run the pipeline up to prioritization and print the ranked candidates.
Nothing is applied to the working tree.

Examples:
  aprbot mutate --sbfl sbfl.json --freqs freqs.json
  aprbot mutate --sbfl sbfl.json --freqs freqs.json --limit 20 --format json`,
	Run: runMutate,
}

func init() {
	mutateCmd.Flags().StringVar(&mutateManifest, "manifest", "aprbot.toml", "Repository manifest (TOML)")
	mutateCmd.Flags().StringVar(&mutateSBFL, "sbfl", "", "SBFL scores JSON (required)")
	mutateCmd.Flags().StringVar(&mutateFreqs, "freqs", "", "Historical mutation-frequency JSON (required)")
	mutateCmd.Flags().StringVar(&mutateFormat, "format", "human", "Output format (human, json)")
	mutateCmd.Flags().IntVar(&mutateLimit, "limit", 20, "Show at most this many candidates (0 = all)")
	mutateCmd.Flags().StringVar(&mutateDumpDir, "dump-dir", "", "Write node and candidate debug dumps here")
	_ = mutateCmd.MarkFlagRequired("sbfl")
	_ = mutateCmd.MarkFlagRequired("freqs")
	rootCmd.AddCommand(mutateCmd)
}

func runMutate(cmd *cobra.Command, args []string) {
	meta, cfg, logger := setupRun(mutateManifest)

	dumpDir := cfg.Mutation.DumpDir
	if mutateDumpDir != "" {
		dumpDir = mutateDumpDir
	}

	hist, err := mutation.LoadHistoricalFrequencies(mutateFreqs)
	if err != nil {
		fatal(err)
	}

	reader := faults.NewReader(logger, cfg.Faults.PathMarker, cfg.Faults.MaxLocations)
	locations, err := reader.LocalizeFaults(mutateSBFL)
	if err != nil {
		fatal(err)
	}

	nodes, err := astx.NewExtractor(logger).Extract(context.Background(), meta, locations)
	if err != nil {
		fatal(err)
	}

	candidates := mutation.NewEngine(hist, logger, dumpDir).GeneratePatches(nodes, meta.FailingTests)
	ranked := prioritize.NewPrioritizer(logger).Prioritize(candidates, hist)

	if mutateLimit > 0 && len(ranked) > mutateLimit {
		ranked = ranked[:mutateLimit]
	}

	switch mutateFormat {
	case "json":
		data, err := json.MarshalIndent(ranked, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(data))
	default:
		if len(ranked) == 0 {
			fmt.Println("No candidates with non-zero priority.")
		}
		for i, c := range ranked {
			fmt.Printf("%3d. %s  %s  %s:%d  priority=%.6f\n",
				i+1, c.PatchID, c.MutationType.Category, c.FilePath, c.StartLine, c.PriorityScore)
			fmt.Print(indentDiff(c.Diff))
		}
	}

	if len(ranked) == 0 {
		os.Exit(exitNoValidated)
	}
}

func indentDiff(diff string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		if line != "" {
			b.WriteString("       ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
