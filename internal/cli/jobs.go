package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/clawinfra/qbank/internal/config"
	"github.com/clawinfra/qbank/internal/scheduler"
)

// JobsCommand handles the 'qbank jobs' subcommand.
func JobsCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("qbank jobs", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: qbank jobs <list|run <job-id>>

Manage the maintenance jobs defined in the config's scheduler
section.

Subcommands:
  list          Show configured jobs and their next run time
  run <job-id>  Execute one job immediately`)
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	switch fs.Arg(0) {
	case "list":
		if len(cfg.Scheduler.Jobs) == 0 {
			fmt.Println("No jobs configured.")
			return 0
		}
		now := time.Now()
		for _, job := range cfg.Scheduler.Jobs {
			next := "-"
			if t, err := job.NextRun(now); err == nil {
				next = t.Format(time.RFC3339)
			}
			enabled := "disabled"
			if job.Enabled {
				enabled = "enabled"
			}
			fmt.Printf("  %-16s %-10s %-8s %-9s next: %s\n",
				job.ID, job.Action.Kind, job.Schedule.Kind, enabled, next)
		}
		return 0

	case "run":
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Error: run requires a job ID")
			return 1
		}
		return runJobNow(cfg, fs.Arg(1))

	default:
		fmt.Fprintf(os.Stderr, "Unknown jobs subcommand: %s\n", fs.Arg(0))
		return 1
	}
}

func runJobNow(cfg *config.Config, id string) int {
	logger := getLogger(cfg.Server.LogLevel)
	ctx := context.Background()
	store, err := openStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	sched := scheduler.NewScheduler(scheduler.NewStoreExecutor(store, logger), logger)
	if err := sched.LoadJobs(cfg.Scheduler.Jobs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := sched.RunJobNow(ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Job %s executed.\n", id)
	return 0
}
