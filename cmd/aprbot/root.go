package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aprbot/internal/config"
	"aprbot/internal/errors"
	"aprbot/internal/logging"
	"aprbot/internal/version"
)

var (
	// repoRootFlag overrides the repository root (default: manifest value)
	repoRootFlag string
	// logLevelFlag overrides the configured log level
	logLevelFlag string
	// logFormatFlag overrides the configured log format
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "aprbot",
	Short: "aprbot - automated program repair",
	Long: `aprbot proposes and validates small source patches for a failing test
suite. It consumes spectrum-based fault-localization scores and a historical
mutation-frequency table, generates candidate patches from fix ingredients
found elsewhere in the repository, and validates the best-ranked candidates
in two phases: first against the originally failing tests, then against the
full suite.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("aprbot version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoRootFlag, "repo-root", "", "Repository root (overrides the manifest)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: human or json")
}

// loadConfig reads .aprbot/config.json from the repository root, applying
// CLI overrides. Precedence: flag > APRBOT_* env var > config file.
func loadConfig(repoRoot string) (*config.Config, error) {
	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		return nil, err
	}

	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	} else if env := os.Getenv("APRBOT_LOG_LEVEL"); env != "" {
		cfg.Logging.Level = env
	}
	if logFormatFlag != "" {
		cfg.Logging.Format = logFormatFlag
	} else if env := os.Getenv("APRBOT_LOG_FORMAT"); env != "" {
		cfg.Logging.Format = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the root logger from configuration.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
		File:   cfg.Logging.File,
	})
}

// fatal prints a fatal error with any operator hint and exits.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if hint := errors.SuggestionFor(errors.CodeOf(err)); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(exitFatal)
}
