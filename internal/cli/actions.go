package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/clawinfra/qbank/internal/agenttype"
	"github.com/clawinfra/qbank/internal/qlearn"
)

// ActionsCommand handles the 'qbank actions' subcommand.
func ActionsCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("qbank actions", flag.ExitOnError)
	typeFilter := fs.String("type", "", "Show only this agent type")
	fs.Usage = func() {
		fmt.Println(`Usage: qbank actions [--type <agent-type>]

List the action space for each agent type. Manifest overrides from
the configured manifest directory replace the built-in defaults.`)
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
	overrides := map[agenttype.AgentType]*qlearn.ActionSpace{}
	if cfg.Actions.ManifestDir != "" {
		overrides, err = qlearn.LoadActionSpaces(cfg.Actions.ManifestDir, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading manifests: %v\n", err)
			return 1
		}
	}

	types := agenttype.All()
	if *typeFilter != "" {
		at, err := agenttype.Parse(*typeFilter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		types = []agenttype.AgentType{at}
	}

	for _, at := range types {
		sp, ok := overrides[at]
		source := "manifest"
		if !ok {
			sp, err = qlearn.DefaultActionSpace(at)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
			source = "default"
		}

		fmt.Printf("%s (%s, %d actions)\n", at, source, sp.Len())
		for _, a := range sp.Actions() {
			fmt.Printf("  %-28s %s\n", a.Name, a.Hash[:12])
		}
		fmt.Println()
	}
	return 0
}
