package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment as-is")
	}

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}
