package sim

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/clawinfra/qbank/internal/agenttype"
	"github.com/clawinfra/qbank/internal/qlearn"
	"github.com/clawinfra/qbank/internal/qstore"
	"github.com/clawinfra/qbank/internal/state"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T) *qstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.db")
	store, err := qstore.Open(qstore.DefaultConfig(path), quietLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(c *Config) {}, true},
		{"zero agents", func(c *Config) { c.Agents = 0 }, false},
		{"zero episodes", func(c *Config) { c.Episodes = 0 }, false},
		{"bad agent type", func(c *Config) { c.AgentType = "wizard" }, false},
		{"bad alpha", func(c *Config) { c.Learning.LearningRate = 2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunSingleAgent(t *testing.T) {
	store := openStore(t)

	cfg := Config{
		Agents:    1,
		Episodes:  20,
		AgentType: agenttype.TestGenerator,
		Learning:  qlearn.DefaultConfig(),
		Seed:      42,
	}
	report, err := Run(context.Background(), store, cfg, quietLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Instances) != 1 {
		t.Fatalf("instances = %d, want 1", len(report.Instances))
	}
	st := report.Instances[0]
	if st.Episodes != 20 {
		t.Errorf("episodes = %d, want 20", st.Episodes)
	}
	if st.RewardCount != 20 {
		t.Errorf("rewardCount = %d, want 20", st.RewardCount)
	}
	if report.Store.TotalEntries == 0 {
		t.Error("expected entries in the store after simulation")
	}
	if report.Store.TotalVisits < 20 {
		t.Errorf("totalVisits = %d, want >= 20", report.Store.TotalVisits)
	}
}

func TestRunConcurrentAgentsShareStore(t *testing.T) {
	store := openStore(t)

	cfg := Config{
		Agents:    6,
		Episodes:  25,
		AgentType: agenttype.CoverageAnalyzer,
		Learning:  qlearn.DefaultConfig(),
		Seed:      7,
	}
	report, err := Run(context.Background(), store, cfg, quietLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Instances) != 6 {
		t.Fatalf("instances = %d, want 6", len(report.Instances))
	}

	// Every update lands in the shared store, so visit counts sum
	// across instances.
	want := int64(6 * 25)
	if report.Store.TotalVisits != want {
		t.Errorf("totalVisits = %d, want %d", report.Store.TotalVisits, want)
	}
	for i, st := range report.Instances {
		if st.Episodes != 25 {
			t.Errorf("instance %d episodes = %d, want 25", i, st.Episodes)
		}
		if st.Epsilon >= qlearn.DefaultConfig().ExplorationRate {
			t.Errorf("instance %d epsilon = %v, expected decay below initial", i, st.Epsilon)
		}
	}
}

func TestRunEpsilonReachesFloorOnLongRun(t *testing.T) {
	store := openStore(t)

	lcfg := qlearn.DefaultConfig()
	lcfg.EpsilonDecay = 0.9
	lcfg.MinEpsilon = 0.05

	cfg := Config{
		Agents:    1,
		Episodes:  200,
		AgentType: agenttype.MutationTester,
		Learning:  lcfg,
		Seed:      3,
	}
	report, err := Run(context.Background(), store, cfg, quietLogger())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := report.Instances[0].Epsilon; got != 0.05 {
		t.Errorf("epsilon = %v, want floor 0.05", got)
	}
}

func TestRunCancelledContext(t *testing.T) {
	store := openStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultSimConfig()
	cfg.Seed = 1
	if _, err := Run(ctx, store, cfg, quietLogger()); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestSyntheticTasksVaryFeatureBuckets(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	sizes := map[string]bool{}
	complexities := map[string]bool{}
	for i := 0; i < 500; i++ {
		f := state.ExtractFeatures(syntheticTask(rng))
		sizes[f.SizeBucket] = true
		complexities[f.ComplexityBucket] = true
	}

	// Drawing size from [0,600) and complexity from [0,60) must land
	// in every bucket, otherwise the workload never exercises those
	// dimensions of the state space.
	if len(sizes) < 4 {
		t.Errorf("size buckets seen = %v, want all 4", sizes)
	}
	if len(complexities) < 4 {
		t.Errorf("complexity buckets seen = %v, want all 4", complexities)
	}
}

func TestSyntheticOutcomeCorrelatesWithCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	task := map[string]any{"coverage": 0.4}

	for i := 0; i < 50; i++ {
		out := syntheticOutcome(rng, task)
		if failed, ok := out["failed"].(bool); ok && failed {
			continue
		}
		cov := out["coverage"].(float64)
		if cov < 0.4 || cov > 1.0 {
			t.Fatalf("coverage %v outside [previous, 1.0]", cov)
		}
	}
}
