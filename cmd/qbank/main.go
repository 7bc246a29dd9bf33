package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clawinfra/qbank/internal/cli"
	"github.com/clawinfra/qbank/internal/config"
	"github.com/clawinfra/qbank/internal/qstore"
	"github.com/clawinfra/qbank/internal/scheduler"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Check for subcommands (look through all args, not just first)
	configPath := "qbank.json"
	var subCmd string
	var subCmdIdx int

	// First pass: find config flag
	skipNext := false
	for i := 1; i < len(os.Args); i++ {
		if skipNext {
			skipNext = false
			continue
		}
		arg := os.Args[i]
		if arg == "--config" || arg == "-config" {
			if i+1 < len(os.Args) {
				configPath = os.Args[i+1]
				skipNext = true
			}
		}
	}

	// Second pass: find subcommand (first non-flag, non-flag-value arg)
	skipNext = false
	for i := 1; i < len(os.Args); i++ {
		if skipNext {
			skipNext = false
			continue
		}
		arg := os.Args[i]

		if arg == "--config" || arg == "-config" || arg == "--version" || arg == "-version" {
			if arg == "--config" || arg == "-config" {
				skipNext = true
			}
			continue
		}

		if len(arg) > 0 && arg[0] != '-' {
			subCmd = arg
			subCmdIdx = i
			break
		}
	}

	if subCmd != "" {
		rest := os.Args[subCmdIdx+1:]
		switch subCmd {
		case "init":
			return cli.InitCommand(rest)
		case "stats":
			return cli.StatsCommand(rest, configPath)
		case "actions":
			return cli.ActionsCommand(rest, configPath)
		case "snapshot":
			return cli.SnapshotCommand(rest, configPath)
		case "simulate":
			return cli.SimulateCommand(rest, configPath)
		case "jobs":
			return cli.JobsCommand(rest, configPath)
		case "help":
			return cli.HelpCommand(rest)
		case "start":
			// Falls through to the daemon start below
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subCmd)
			cli.PrintUsage()
			return 1
		}
	}

	// No subcommand or explicit start - run the maintenance daemon
	fs := flag.NewFlagSet("qbank", flag.ExitOnError)
	configPathFlag := fs.String("config", "qbank.json", "Path to config file")
	showVersion := fs.Bool("version", false, "Show version")

	args := os.Args[1:]
	if subCmd == "start" {
		args = os.Args[subCmdIdx+1:]
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		return 1
	}

	if *showVersion {
		fmt.Printf("qbank v%s (built %s)\n", version, buildTime)
		fmt.Println("Shared Q-learning store for specialized agent fleets")
		return 0
	}

	if *configPathFlag != "qbank.json" {
		configPath = *configPathFlag
	}

	if err := serve(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// serve opens the store and runs the maintenance scheduler until a
// termination signal arrives.
func serve(configPath string) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	logger.Info("starting qbank", "version", version, "config", configPath)

	store, err := qstore.Open(cfg.Store.ToStoreConfig(), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	sched := scheduler.NewScheduler(scheduler.NewStoreExecutor(store, logger), logger)
	if err := sched.LoadJobs(cfg.Scheduler.Jobs); err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	if err := sched.Start(context.Background()); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	logger.Info("qbank running",
		"store", cfg.Store.Path,
		"jobs", len(cfg.Scheduler.Jobs),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig)

	sched.Stop()
	logger.Info("qbank stopped")
	return nil
}

// loadConfig loads configuration from file or creates default
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no config found, creating default")
			cfg = config.DefaultConfig()
			if err := cfg.Save(path); err != nil {
				return nil, fmt.Errorf("save default config: %w", err)
			}
			logger.Info("default config created", "path", path)
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// parseLogLevel converts string log level to slog.Level
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
