package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aprbot/internal/faults"
)

var (
	localizeSBFL   string
	localizeFormat string
	localizeLimit  int
)

var localizeCmd = &cobra.Command{
	Use:   "localize",
	Short: "Print the ranked fault table",
	Long: `Load the SBFL scores and print the ranked suspicious locations without
running the rest of the pipeline.

Examples:
  aprbot localize --sbfl sbfl.json
  aprbot localize --sbfl sbfl.json --format json
  aprbot localize --sbfl sbfl.json --limit 10`,
	Run: runLocalize,
}

func init() {
	localizeCmd.Flags().StringVar(&localizeSBFL, "sbfl", "", "SBFL scores JSON (required)")
	localizeCmd.Flags().StringVar(&localizeFormat, "format", "human", "Output format (human, json)")
	localizeCmd.Flags().IntVar(&localizeLimit, "limit", 0, "Show at most this many locations")
	_ = localizeCmd.MarkFlagRequired("sbfl")
	rootCmd.AddCommand(localizeCmd)
}

func runLocalize(cmd *cobra.Command, args []string) {
	repoRoot := repoRootFlag
	if repoRoot == "" {
		repoRoot = "."
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		fatal(err)
	}

	reader := faults.NewReader(newLogger(cfg), cfg.Faults.PathMarker, localizeLimit)
	locations, err := reader.LocalizeFaults(localizeSBFL)
	if err != nil {
		fatal(err)
	}

	switch localizeFormat {
	case "json":
		data, err := json.MarshalIndent(locations, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(data))
	default:
		if len(locations) == 0 {
			fmt.Println("No suspicious locations.")
			return
		}
		fmt.Printf("%-40s %6s  %8s  %s\n", "FILE", "LINE", "SCORE", "FUNCTION")
		for _, loc := range locations {
			fmt.Printf("%-40s %6d  %8.4f  %s\n",
				loc.FilePath, loc.LineNumber, loc.SuspiciousnessScore, loc.FunctionName)
		}
	}

	if len(locations) == 0 {
		os.Exit(exitNoValidated)
	}
}
