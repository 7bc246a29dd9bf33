package qlearn

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/clawinfra/qbank/internal/agenttype"
)

// ErrEmptyActionSpace is returned when a space is built without any
// actions.
var ErrEmptyActionSpace = errors.New("qlearn: empty action space")

// Action is one registered action: a symbolic name plus its stable
// hash. The hash is what the store keys on.
type Action struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// ActionSpace is an ordered registry of the actions available to one
// agent type. Registration order matters: it is the tie-break for
// greedy selection. Immutable after construction.
type ActionSpace struct {
	agentType agenttype.AgentType
	actions   []Action
	byHash    map[string]Action
}

// NewActionSpace builds a space from ordered action names. Duplicate
// names are rejected; the set must be non-empty.
func NewActionSpace(at agenttype.AgentType, names []string) (*ActionSpace, error) {
	if !at.Valid() {
		return nil, fmt.Errorf("%w: %q", agenttype.ErrInvalidAgentType, at)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyActionSpace, at)
	}

	sp := &ActionSpace{
		agentType: at,
		actions:   make([]Action, 0, len(names)),
		byHash:    make(map[string]Action, len(names)),
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("qlearn: %s: blank action name", at)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("qlearn: %s: duplicate action %q", at, name)
		}
		seen[name] = struct{}{}

		a := Action{Name: name, Hash: ActionHash(at, name)}
		sp.actions = append(sp.actions, a)
		sp.byHash[a.Hash] = a
	}
	return sp, nil
}

// ActionHash derives the stable hash for an action. The agent type is
// part of the preimage so identical action names in different agent
// types never share a row.
func ActionHash(at agenttype.AgentType, name string) string {
	sum := sha256.Sum256([]byte(string(at) + "::" + name))
	return hex.EncodeToString(sum[:])
}

// AgentType returns the type this space belongs to.
func (sp *ActionSpace) AgentType() agenttype.AgentType { return sp.agentType }

// Len returns the number of registered actions.
func (sp *ActionSpace) Len() int { return len(sp.actions) }

// Actions returns the registered actions in registration order.
// The returned slice is a copy.
func (sp *ActionSpace) Actions() []Action {
	out := make([]Action, len(sp.actions))
	copy(out, sp.actions)
	return out
}

// ByHash looks an action up by its hash.
func (sp *ActionSpace) ByHash(hash string) (Action, bool) {
	a, ok := sp.byHash[hash]
	return a, ok
}

// defaultActions lists the built-in action space for every agent
// type. Manifests loaded from disk override these.
var defaultActions = map[agenttype.AgentType][]string{
	agenttype.TestGenerator:       {"generate_unit_tests", "generate_table_tests", "generate_property_tests", "extend_existing_suite", "regenerate_failing_tests"},
	agenttype.CoverageAnalyzer:    {"analyze_line_coverage", "analyze_branch_coverage", "find_uncovered_paths", "rank_coverage_gaps"},
	agenttype.QualityReviewer:     {"review_assertions", "review_naming", "review_duplication", "flag_weak_tests"},
	agenttype.MutationTester:      {"mutate_conditionals", "mutate_arithmetic", "mutate_boundaries", "run_mutation_sweep"},
	agenttype.RegressionHunter:    {"bisect_history", "replay_failures", "diff_behavior", "pin_regression"},
	agenttype.FixtureBuilder:      {"build_minimal_fixture", "build_realistic_fixture", "reuse_shared_fixture", "parameterize_fixture"},
	agenttype.MockDesigner:        {"mock_external_calls", "stub_datastore", "fake_clock", "record_replay"},
	agenttype.EdgeCaseExplorer:    {"probe_boundaries", "probe_empty_inputs", "probe_unicode", "probe_concurrency"},
	agenttype.FlakyTestDetector:   {"rerun_suspects", "inject_timing_skew", "isolate_shared_state", "quarantine_flaky"},
	agenttype.IntegrationTester:   {"spin_up_dependencies", "test_contract", "test_failure_injection", "test_happy_path"},
	agenttype.E2EScripter:         {"script_critical_flow", "script_smoke_suite", "script_rollback_path", "capture_screenshots"},
	agenttype.PerformanceProfiler: {"profile_cpu", "profile_allocations", "benchmark_hot_paths", "compare_baselines"},
	agenttype.SecurityScanner:     {"scan_dependencies", "scan_injection_surface", "scan_secrets", "fuzz_parsers"},
	agenttype.BugTriager:          {"cluster_duplicates", "rank_severity", "assign_component", "draft_repro"},
	agenttype.RefactorPlanner:     {"plan_extract_function", "plan_module_split", "plan_interface_seam", "estimate_blast_radius"},
	agenttype.DocWriter:           {"document_public_api", "document_examples", "update_changelog", "write_runbook"},
	agenttype.PatternMiner:        {"mine_test_patterns", "mine_failure_patterns", "promote_pattern", "retire_stale_pattern"},
	agenttype.CostOptimizer:       {"batch_small_tasks", "downshift_model", "cache_results", "prune_redundant_runs"},
}

// DefaultActionSpace returns the built-in space for an agent type.
func DefaultActionSpace(at agenttype.AgentType) (*ActionSpace, error) {
	names, ok := defaultActions[at]
	if !ok {
		return nil, fmt.Errorf("%w: %q", agenttype.ErrInvalidAgentType, at)
	}
	return NewActionSpace(at, names)
}

// actionManifest is the on-disk form of an action space override.
type actionManifest struct {
	AgentType string   `toml:"agent_type"`
	Actions   []string `toml:"actions"`
}

// LoadActionSpaces reads *.toml manifests from dir, one per agent
// type. A missing directory is not an error; malformed manifests are
// skipped with a warning so one bad file cannot take down startup.
func LoadActionSpaces(dir string, logger *slog.Logger) (map[agenttype.AgentType]*ActionSpace, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("action manifest directory does not exist, using defaults", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("qlearn: read manifest dir: %w", err)
	}

	spaces := make(map[agenttype.AgentType]*ActionSpace)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		var m actionManifest
		if _, err := toml.DecodeFile(path, &m); err != nil {
			logger.Warn("failed to parse action manifest", "path", path, "error", err)
			continue
		}

		at, err := agenttype.Parse(m.AgentType)
		if err != nil {
			logger.Warn("action manifest names unknown agent type", "path", path, "agentType", m.AgentType)
			continue
		}
		sp, err := NewActionSpace(at, m.Actions)
		if err != nil {
			logger.Warn("invalid action manifest", "path", path, "error", err)
			continue
		}
		spaces[at] = sp
		logger.Info("loaded action manifest", "agentType", at, "actions", sp.Len())
	}
	return spaces, nil
}
