package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/clawinfra/qbank/internal/agenttype"
)

// StatsCommand handles the 'qbank stats' subcommand.
func StatsCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("qbank stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: qbank stats

Show Q-value store statistics: entry and visit counts per agent type.`)
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

	stats, err := store.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Store: %s\n", cfg.Store.Path)
	fmt.Printf("Entries: %d  Visits: %d\n", stats.TotalEntries, stats.TotalVisits)

	if len(stats.PerAgentType) == 0 {
		fmt.Println("No Q-values recorded yet.")
		return 0
	}

	types := make([]agenttype.AgentType, 0, len(stats.PerAgentType))
	for at := range stats.PerAgentType {
		types = append(types, at)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	fmt.Println()
	for _, at := range types {
		fmt.Printf("  %-22s %d\n", at, stats.PerAgentType[at])
	}
	return 0
}
