// Command rap analyses regeneration survey exports and publishes the
// cluster and project summaries.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/RAP/internal/config"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.LoadRaw()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := RootCommand(cfg).Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
