package main

import (
	"os"

	"github.com/joho/godotenv"
)

// Exit codes: 0 when at least one patch validated, 1 for fatal errors,
// 2 when the pipeline completed without a validated patch.
const (
	exitOK          = 0
	exitFatal       = 1
	exitNoValidated = 2
)

func main() {
	// Local overrides (tokens, paths) may live in a .env next to the binary.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitFatal)
	}
}
