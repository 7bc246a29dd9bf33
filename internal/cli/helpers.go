package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/clawinfra/qbank/internal/config"
	"github.com/clawinfra/qbank/internal/qstore"
)

// loadConfig loads the config file, falling back to defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// openStore opens the Q-value store from config.
func openStore(cfg *config.Config, logger *slog.Logger) (*qstore.Store, error) {
	store, err := qstore.Open(cfg.Store.ToStoreConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// getLogger returns a logger for CLI commands. Output goes to stderr
// so command output on stdout stays parseable.
func getLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
