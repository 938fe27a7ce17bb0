package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"aprbot/internal/astx"
	"aprbot/internal/config"
	"aprbot/internal/faults"
	"aprbot/internal/logging"
	"aprbot/internal/model"
	"aprbot/internal/mutation"
	"aprbot/internal/pipeline"
	"aprbot/internal/prioritize"
	"aprbot/internal/storage"
	"aprbot/internal/validate"
)

var (
	repairManifest string
	repairSBFL     string
	repairFreqs    string
	repairTopK     int
	repairBudget   int
	repairNoEarly  bool
	repairDumpDir  string
	repairSummary  string
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Run the full repair pipeline",
	Long: `Run the complete pipeline: fault localization, AST extraction, patch
generation, prioritization and two-phase validation.

Examples:
  aprbot repair --manifest aprbot.toml --sbfl sbfl.json --freqs freqs.json
  aprbot repair --manifest aprbot.toml --sbfl sbfl.json --freqs freqs.json --top-k 5
  aprbot repair --manifest aprbot.toml --sbfl sbfl.json --freqs freqs.json --dump-dir debug/`,
	Run: runRepair,
}

func init() {
	repairCmd.Flags().StringVar(&repairManifest, "manifest", "aprbot.toml", "Repository manifest (TOML)")
	repairCmd.Flags().StringVar(&repairSBFL, "sbfl", "", "SBFL scores JSON (required)")
	repairCmd.Flags().StringVar(&repairFreqs, "freqs", "", "Historical mutation-frequency JSON (required)")
	repairCmd.Flags().IntVar(&repairTopK, "top-k", 0, "Validate at most this many candidates (overrides config)")
	repairCmd.Flags().IntVar(&repairBudget, "time-budget", 0, "Wall-clock budget in minutes (overrides config)")
	repairCmd.Flags().BoolVar(&repairNoEarly, "no-early-exit", false, "Validate all top-k candidates even after a pass")
	repairCmd.Flags().StringVar(&repairDumpDir, "dump-dir", "", "Write node and candidate debug dumps here")
	repairCmd.Flags().StringVar(&repairSummary, "summary", "", "Summary JSON path (default <repo>/artifacts/summary.json)")
	_ = repairCmd.MarkFlagRequired("sbfl")
	_ = repairCmd.MarkFlagRequired("freqs")
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) {
	meta, cfg, logger := setupRun(repairManifest)

	if repairTopK > 0 {
		cfg.Validator.TopK = repairTopK
	}
	if repairBudget > 0 {
		cfg.Validator.TimeBudgetMinutes = repairBudget
	}
	if repairNoEarly {
		cfg.Validator.EnableEarlyExit = false
	}
	if repairDumpDir != "" {
		cfg.Mutation.DumpDir = repairDumpDir
	}

	hist, err := mutation.LoadHistoricalFrequencies(repairFreqs)
	if err != nil {
		fatal(err)
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.Components{
		Faults:      faults.NewReader(logger, cfg.Faults.PathMarker, cfg.Faults.MaxLocations),
		Extractor:   astx.NewExtractor(logger),
		Generator:   mutation.NewEngine(hist, logger, cfg.Mutation.DumpDir),
		Prioritizer: prioritize.NewPrioritizer(logger),
		Validator: validate.NewValidator(logger, validate.Options{
			TopK:            cfg.Validator.TopK,
			TimeBudget:      time.Duration(cfg.Validator.TimeBudgetMinutes) * time.Minute,
			EnableEarlyExit: cfg.Validator.EnableEarlyExit,
			ArtifactsDir:    cfg.Validator.ArtifactsDir,
			Grace:           time.Duration(cfg.Validator.GraceSeconds) * time.Second,
		}),
	}, logger)

	startedAt := time.Now()
	state, runErr := orchestrator.Run(context.Background(), meta, repairSBFL, hist)
	if state == nil {
		fatal(runErr)
	}

	summary := pipeline.BuildSummary(state)
	summaryPath := repairSummary
	if summaryPath == "" {
		summaryPath = filepath.Join(meta.RepoRoot, "artifacts", "summary.json")
	}
	if err := summary.Write(summaryPath); err != nil {
		logger.Error("Failed to write summary", map[string]interface{}{
			"path":  summaryPath,
			"error": err.Error(),
		})
	}

	recordHistory(cfg, meta, logger, state, startedAt)

	printRunReport(&summary, summaryPath)

	if runErr != nil {
		fatal(runErr)
	}
	if !summary.Validated {
		os.Exit(exitNoValidated)
	}
}

// setupRun loads the manifest and configuration shared by the pipeline
// subcommands.
func setupRun(manifestPath string) (model.RepositoryMetadata, *config.Config, *logging.Logger) {
	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		fatal(err)
	}
	meta := manifest.Metadata()
	if repoRootFlag != "" {
		meta.RepoRoot = repoRootFlag
	}

	cfg, err := loadConfig(meta.RepoRoot)
	if err != nil {
		fatal(err)
	}

	return meta, cfg, newLogger(cfg)
}

// recordHistory persists the run when the history store is enabled.
func recordHistory(cfg *config.Config, meta model.RepositoryMetadata, logger *logging.Logger, state *model.SystemState, startedAt time.Time) {
	if !cfg.History.Enabled {
		return
	}
	db, err := storage.Open(meta.RepoRoot, logger)
	if err != nil {
		logger.Error("Could not open history store", map[string]interface{}{"error": err.Error()})
		return
	}
	defer db.Close()

	if err := db.RecordRun(state, startedAt, time.Since(startedAt)); err != nil {
		logger.Error("Could not record run", map[string]interface{}{"error": err.Error()})
	}
}

func printRunReport(summary *pipeline.Summary, summaryPath string) {
	fmt.Printf("Run %s\n", summary.RunID)
	fmt.Printf("  suspicious locations: %d\n", summary.Counts.SuspiciousLocations)
	fmt.Printf("  AST nodes:            %d\n", summary.Counts.ASTNodes)
	fmt.Printf("  patch candidates:     %d\n", summary.Counts.PatchCandidates)
	fmt.Printf("  prioritized patches:  %d\n", summary.Counts.PrioritizedPatches)
	fmt.Printf("  validated:            %d\n", summary.Counts.ValidationResults)
	if summary.BestPatch != nil {
		fmt.Printf("  best patch: %s (%d/%d tests passed)\n",
			summary.BestPatch.PatchID, summary.BestPatch.TestsPassedCount, summary.BestPatch.TestsTotalCount)
	} else {
		fmt.Println("  no validated patch")
	}
	fmt.Printf("Summary written to %s\n", summaryPath)
}
