package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// SnapshotCommand handles the 'qbank snapshot' subcommand.
func SnapshotCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("qbank snapshot", flag.ExitOnError)
	outPath := fs.String("out", "qbank-snapshot.json", "Snapshot destination path")
	fs.Usage = func() {
		fmt.Println(`Usage: qbank snapshot [--out <file>]

Export every Q-value entry as JSON, ordered by value descending.
The export is written atomically.`)
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := getLogger(cfg.Server.LogLevel)
	ctx := context.Background()
	store, err := openStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := store.ExportJSON(ctx, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Snapshot written to %s (%d entries)\n", *outPath, stats.TotalEntries)
	return 0
}
