package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"aprbot/internal/storage"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past runs from the history store",
	Long: `Read the run-history database written when history.enabled is set.

Examples:
  aprbot history list
  aprbot history show <run-id>
  aprbot history logs <run-id> <patch-id>
  aprbot history export --format yaml
  aprbot history prune`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Run:   runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryShow,
}

var historyLogsCmd = &cobra.Command{
	Use:   "logs <run-id> <patch-id>",
	Short: "Print the stored build and test output for one patch",
	Args:  cobra.ExactArgs(2),
	Run:   runHistoryLogs,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recent runs as JSON or YAML",
	Run:   runHistoryExport,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest configured runs",
	Run:   runHistoryPrune,
}

func init() {
	historyCmd.PersistentFlags().IntVar(&historyLimit, "limit", 20, "Maximum runs to read")
	historyExportCmd.Flags().StringVar(&historyFormat, "format", "json", "Export format (json, yaml)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyLogsCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyRoot() string {
	if repoRootFlag != "" {
		return repoRootFlag
	}
	return "."
}

func openHistory() *storage.DB {
	root := historyRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		fatal(err)
	}
	db, err := storage.Open(root, newLogger(cfg))
	if err != nil {
		fatal(err)
	}
	return db
}

func runHistoryList(cmd *cobra.Command, args []string) {
	db := openHistory()
	defer db.Close()

	records, err := db.ListRuns(historyLimit)
	if err != nil {
		fatal(err)
	}
	if len(records) == 0 {
		fmt.Println("No recorded runs.")
		return
	}

	fmt.Printf("%-36s  %-20s  %-10s  %s\n", "RUN", "STARTED", "VALIDATED", "BEST PATCH")
	for _, rec := range records {
		validated := "no"
		if rec.Validated {
			validated = "yes"
		}
		fmt.Printf("%-36s  %-20s  %-10s  %s\n",
			rec.RunID, rec.StartedAt.Format("2006-01-02 15:04:05"), validated, rec.BestPatchID)
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	db := openHistory()
	defer db.Close()

	rec, err := db.GetRun(args[0])
	if err != nil {
		fatal(err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(data))
}

func runHistoryLogs(cmd *cobra.Command, args []string) {
	db := openHistory()
	defer db.Close()

	buildOut, testOut, err := db.GetRunLogs(args[0], args[1])
	if err != nil {
		fatal(err)
	}
	fmt.Println("=== build output ===")
	fmt.Println(buildOut)
	fmt.Println("=== test output ===")
	fmt.Println(testOut)
}

func runHistoryExport(cmd *cobra.Command, args []string) {
	db := openHistory()
	defer db.Close()

	records, err := db.ListRuns(historyLimit)
	if err != nil {
		fatal(err)
	}

	switch historyFormat {
	case "yaml":
		data, err := yaml.Marshal(records)
		if err != nil {
			fatal(err)
		}
		fmt.Print(string(data))
	case "json":
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(data))
	default:
		fmt.Fprintf(os.Stderr, "Unknown format: %s\n", historyFormat)
		os.Exit(exitFatal)
	}
}

func runHistoryPrune(cmd *cobra.Command, args []string) {
	root := historyRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		fatal(err)
	}
	db, err := storage.Open(root, newLogger(cfg))
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	deleted, err := db.Prune(cfg.History.Keep)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Pruned %d runs (keeping %d).\n", deleted, cfg.History.Keep)
}
