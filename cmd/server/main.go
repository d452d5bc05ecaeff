// Package main is the entry point for the PostForge server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main"
// package. The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars)
// 2. Create dependencies (logger)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/handler, etc.). This separation makes the app testable and its
// components reusable.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/postforge/internal/config"
	"github.com/sakif/postforge/internal/server"
)

func main() {
	// slog.NewTextHandler outputs human-readable structured logs to the
	// terminal. In production you'd raise the level to Info or Warn.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Config comes entirely from the environment. Load() validates the
	// required variables and reports missing ones grouped by subsystem, so
	// a misconfigured deployment fails here, loudly, not on the first
	// request.
	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
