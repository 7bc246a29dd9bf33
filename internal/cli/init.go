package cli

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clawinfra/qbank/internal/config"
	"github.com/clawinfra/qbank/internal/qstore"
)

// InitCommand handles the 'qbank init' subcommand.
func InitCommand(args []string) int {
	fs := flag.NewFlagSet("qbank init", flag.ExitOnError)
	dataDir := fs.String("dir", config.DefaultDataDir(), "Data directory for the Q-value store")
	outputPath := fs.String("output", "qbank.json", "Output config file path")
	force := fs.Bool("force", false, "Overwrite an existing config without prompting")

	fs.Usage = func() {
		fmt.Println(`Usage: qbank init [options]

Create a qbank config file and initialize the Q-value store schema.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  qbank init
  qbank init --dir /var/lib/qbank --output /etc/qbank/qbank.json`)
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if _, err := os.Stat(*outputPath); err == nil && !*force {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", *outputPath)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return 0
		}
	}

	cfg := config.DefaultConfig()
	cfg.Server.DataDir = *dataDir
	cfg.Store.Path = filepath.Join(*dataDir, "qbank.db")

	if err := os.MkdirAll(*dataDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating data dir: %v\n", err)
		return 1
	}
	if err := cfg.Save(*outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		return 1
	}

	// Open once so the schema exists before any learner connects.
	logger := getLogger(cfg.Server.LogLevel)
	store, err := qstore.Open(cfg.Store.ToStoreConfig(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing store: %v\n", err)
		return 1
	}
	store.Close()

	fmt.Printf("Config written to %s\n", *outputPath)
	fmt.Printf("Store initialized at %s\n", cfg.Store.Path)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  qbank stats            # Show store statistics")
	fmt.Println("  qbank simulate         # Run a synthetic learning session")
	fmt.Println("  qbank-tui              # Browse the Q-table")
	return 0
}
