package cli

import (
	"fmt"
	"os"
)

// commandInfo describes a top-level subcommand.
type commandInfo struct {
	Name     string
	Args     string
	Short    string
	Long     string
	Examples []string
}

var commands = []commandInfo{
	{
		Name:  "init",
		Args:  "[--dir <path>] [--output <file>]",
		Short: "Create a config file and initialize the store",
		Long: `Create a qbank config file with defaults and initialize the
SQLite Q-value store schema so learner instances can connect.`,
		Examples: []string{
			"qbank init",
			"qbank init --dir /var/lib/qbank",
		},
	},
	{
		Name:  "stats",
		Args:  "",
		Short: "Show Q-value store statistics",
		Long:  `Print entry and visit counts, broken down per agent type.`,
		Examples: []string{
			"qbank stats",
			"qbank stats --config /etc/qbank/qbank.json",
		},
	},
	{
		Name:  "actions",
		Args:  "[--type <agent-type>]",
		Short: "List action spaces per agent type",
		Long: `Show each agent type's action space with action hashes.
Manifest overrides from the configured directory replace the
built-in defaults.`,
		Examples: []string{
			"qbank actions",
			"qbank actions --type test_generator",
		},
	},
	{
		Name:  "snapshot",
		Args:  "[--out <file>]",
		Short: "Export the Q-table as JSON",
		Long:  `Write every Q-value entry to a JSON file, atomically.`,
		Examples: []string{
			"qbank snapshot",
			"qbank snapshot --out /backups/qbank.json",
		},
	},
	{
		Name:  "simulate",
		Args:  "[--agents N] [--episodes N] [--type <agent-type>]",
		Short: "Run synthetic learning episodes",
		Long: `Drive concurrent learner instances through synthetic episodes
against the shared store. Useful for smoke testing and for seeding
a store with plausible values.`,
		Examples: []string{
			"qbank simulate",
			"qbank simulate --agents 8 --episodes 500",
		},
	},
	{
		Name:  "jobs",
		Args:  "<list|run <job-id>>",
		Short: "Manage maintenance jobs",
		Long: `List the maintenance jobs from the config's scheduler section
or execute one immediately.`,
		Examples: []string{
			"qbank jobs list",
			"qbank jobs run nightly-snapshot",
		},
	},
}

// PrintUsage writes the top-level usage text.
func PrintUsage() {
	fmt.Println(`qbank — shared Q-learning store for agent fleets

Usage: qbank [--config <file>] <command> [options]

Commands:`)
	for _, c := range commands {
		fmt.Printf("  %-10s %s\n", c.Name, c.Short)
	}
	fmt.Println(`
Run 'qbank help <command>' for details.`)
}

// HelpCommand handles 'qbank help [command]'.
func HelpCommand(args []string) int {
	if len(args) == 0 {
		PrintUsage()
		return 0
	}

	name := args[0]
	for _, c := range commands {
		if c.Name != name {
			continue
		}
		fmt.Printf("Usage: qbank %s %s\n\n%s\n", c.Name, c.Args, c.Long)
		if len(c.Examples) > 0 {
			fmt.Println("\nExamples:")
			for _, ex := range c.Examples {
				fmt.Printf("  %s\n", ex)
			}
		}
		return 0
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
	PrintUsage()
	return 1
}
