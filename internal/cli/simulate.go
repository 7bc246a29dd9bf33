package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/clawinfra/qbank/internal/agenttype"
	"github.com/clawinfra/qbank/internal/sim"
)

// SimulateCommand handles the 'qbank simulate' subcommand.
func SimulateCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("qbank simulate", flag.ExitOnError)
	agents := fs.Int("agents", 4, "Concurrent learner instances")
	episodes := fs.Int("episodes", 100, "Episodes per instance")
	agentTypeStr := fs.String("type", string(agenttype.TestGenerator), "Agent type to simulate")
	seed := fs.Int64("seed", 0, "RNG seed (0 = time-based)")

	fs.Usage = func() {
		fmt.Println(`Usage: qbank simulate [options]

Run synthetic learning episodes against the shared store. All
instances use the same agent type so their updates compose.

Options:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  qbank simulate
  qbank simulate --agents 8 --episodes 500 --type coverage_analyzer
  qbank simulate --seed 42`)
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	at, err := agenttype.Parse(*agentTypeStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
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

	simCfg := sim.Config{
		Agents:    *agents,
		Episodes:  *episodes,
		AgentType: at,
		Learning:  cfg.Learning,
		Seed:      *seed,
	}
	report, err := sim.Run(ctx, store, simCfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Simulation complete in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Printf("Store now holds %d entries across %d visits\n",
		report.Store.TotalEntries, report.Store.TotalVisits)
	fmt.Println()
	for i, st := range report.Instances {
		fmt.Printf("  instance %d: episodes=%d epsilon=%.3f avgReward=%.2f min=%.2f max=%.2f\n",
			i, st.Episodes, st.Epsilon, st.AvgReward, st.MinReward, st.MaxReward)
	}
	return 0
}
