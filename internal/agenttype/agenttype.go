// Package agenttype defines the closed set of specialized agent kinds
// that share the Q-value store. Agent types are validated once at
// construction boundaries; business logic never sees an unknown type.
package agenttype

import (
	"errors"
	"fmt"
)

// ErrInvalidAgentType is returned when a string does not name a
// registered agent type.
var ErrInvalidAgentType = errors.New("agenttype: invalid agent type")

// AgentType identifies one kind of specialized worker. All instances
// of a type learn against the same Q-table partition.
type AgentType string

const (
	TestGenerator       AgentType = "test_generator"
	CoverageAnalyzer    AgentType = "coverage_analyzer"
	QualityReviewer     AgentType = "quality_reviewer"
	MutationTester      AgentType = "mutation_tester"
	RegressionHunter    AgentType = "regression_hunter"
	FixtureBuilder      AgentType = "fixture_builder"
	MockDesigner        AgentType = "mock_designer"
	EdgeCaseExplorer    AgentType = "edge_case_explorer"
	FlakyTestDetector   AgentType = "flaky_test_detector"
	IntegrationTester   AgentType = "integration_tester"
	E2EScripter         AgentType = "e2e_scripter"
	PerformanceProfiler AgentType = "performance_profiler"
	SecurityScanner     AgentType = "security_scanner"
	BugTriager          AgentType = "bug_triager"
	RefactorPlanner     AgentType = "refactor_planner"
	DocWriter           AgentType = "doc_writer"
	PatternMiner        AgentType = "pattern_miner"
	CostOptimizer       AgentType = "cost_optimizer"
)

// all lists every registered type in declaration order. Order matters
// for deterministic iteration in CLI output and tests.
var all = []AgentType{
	TestGenerator,
	CoverageAnalyzer,
	QualityReviewer,
	MutationTester,
	RegressionHunter,
	FixtureBuilder,
	MockDesigner,
	EdgeCaseExplorer,
	FlakyTestDetector,
	IntegrationTester,
	E2EScripter,
	PerformanceProfiler,
	SecurityScanner,
	BugTriager,
	RefactorPlanner,
	DocWriter,
	PatternMiner,
	CostOptimizer,
}

var known = func() map[AgentType]struct{} {
	m := make(map[AgentType]struct{}, len(all))
	for _, t := range all {
		m[t] = struct{}{}
	}
	return m
}()

// All returns every registered agent type in declaration order.
// The returned slice is a copy.
func All() []AgentType {
	out := make([]AgentType, len(all))
	copy(out, all)
	return out
}

// Valid reports whether t names a registered agent type.
func (t AgentType) Valid() bool {
	_, ok := known[t]
	return ok
}

// String returns the wire form of the agent type.
func (t AgentType) String() string { return string(t) }

// Parse converts a raw string into an AgentType, or fails with
// ErrInvalidAgentType. No coercion: case and spelling must match.
func Parse(s string) (AgentType, error) {
	t := AgentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAgentType, s)
	}
	return t, nil
}
