package reward

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clawinfra/qbank/internal/agenttype"
)

func TestCoverageReward(t *testing.T) {
	big := CoverageReward(0.8, 0.6)
	small := CoverageReward(0.65, 0.6)
	if !(big > small && small > 0) {
		t.Errorf("expected CoverageReward(0.8,0.6)=%v > CoverageReward(0.65,0.6)=%v > 0", big, small)
	}

	if got := CoverageReward(0.5, 0.7); got >= 0 {
		t.Errorf("coverage drop should score negative, got %v", got)
	}
	if got := CoverageReward(0.6, 0.6); got != 0 {
		t.Errorf("equal coverage should score zero, got %v", got)
	}

	// Full-coverage bonus outweighs the pure delta difference.
	full := CoverageReward(1.0, 0.9)
	near := CoverageReward(0.95, 0.9)
	if full <= near {
		t.Errorf("expected full-coverage bonus: %v <= %v", full, near)
	}

	// Out-of-range inputs are clamped, not propagated.
	if got, want := CoverageReward(1.5, -0.5), CoverageReward(1.0, 0.0); got != want {
		t.Errorf("clamping: got %v, want %v", got, want)
	}
}

func TestQualityReward(t *testing.T) {
	if got := QualityReward(3, 0, 2); got <= 0 {
		t.Errorf("bugs+edge cases should score positive, got %v", got)
	}

	// Precision-sensitive: more false positives, strictly less reward.
	prev := QualityReward(5, 0, 0)
	for fp := 1.0; fp <= 5; fp++ {
		cur := QualityReward(5, fp, 0)
		if cur >= prev {
			t.Fatalf("reward must strictly decrease with false positives: fp=%v %v >= %v", fp, cur, prev)
		}
		prev = cur
	}

	if got, want := QualityReward(-4, 0, 0), QualityReward(0, 0, 0); got != want {
		t.Errorf("negative bug count should be treated as zero: %v != %v", got, want)
	}
}

func TestTimeReward(t *testing.T) {
	fast := TimeReward(0.1)
	mid := TimeReward(1.0)
	slow := TimeReward(100.0)
	if !(fast > mid && mid > slow) {
		t.Errorf("time reward not monotone: %v, %v, %v", fast, mid, slow)
	}
	if slow >= 0 {
		t.Errorf("TimeReward(100) should be negative, got %v", slow)
	}
	if zero := TimeReward(0); zero < 0 {
		t.Errorf("TimeReward(0) should be non-negative, got %v", zero)
	}
	if got, want := TimeReward(-5), TimeReward(0); got != want {
		t.Errorf("negative time should clamp to zero: %v != %v", got, want)
	}
}

func TestPatternBonusDiminishingReturns(t *testing.T) {
	if got := PatternBonus(0); got != 0 {
		t.Errorf("PatternBonus(0) = %v, want 0", got)
	}
	if got := PatternBonus(-3); got != 0 {
		t.Errorf("PatternBonus(-3) = %v, want 0", got)
	}
	if got := PatternBonus(10); got <= 0 {
		t.Errorf("PatternBonus(10) = %v, want > 0", got)
	}

	first := PatternBonus(20) - PatternBonus(10)
	second := PatternBonus(30) - PatternBonus(20)
	if first <= second {
		t.Errorf("expected diminishing returns: %v <= %v", first, second)
	}
}

func TestCostReward(t *testing.T) {
	zero := CostReward(0)
	if CostReward(1) >= zero || CostReward(10) >= CostReward(1) {
		t.Error("cost reward must strictly decrease with cost")
	}
	if CostReward(-2) != zero {
		t.Error("negative cost should clamp to zero")
	}
}

func TestCalculateFailurePenalty(t *testing.T) {
	c := NewCalculator(Weights{})

	if got := c.Calculate(map[string]any{"failed": true}); got != FailurePenalty() {
		t.Errorf("failed task reward = %v, want %v", got, FailurePenalty())
	}
	if FailurePenalty() >= -5.0 {
		t.Errorf("failure penalty %v must be below -5", FailurePenalty())
	}

	// Other fields are ignored for failed tasks, however rosy.
	got := c.Calculate(map[string]any{
		"task_failed": 1,
		"coverage":    1.0,
		"bugs_found":  50,
	})
	if got != FailurePenalty() {
		t.Errorf("failed task with rosy fields = %v, want %v", got, FailurePenalty())
	}
}

func TestCalculateBounded(t *testing.T) {
	c := NewCalculator(DefaultWeights())
	payloads := []map[string]any{
		{},
		{"coverage": 0.9, "previous_coverage": 0.1, "bugs_found": 10, "edge_cases_covered": 20, "patterns_reused": 100, "execution_time": 0.01, "cost": 0},
		{"coverage": 0, "previous_coverage": 1, "false_positives": 50, "execution_time": 10000, "cost": 1000},
		{"coverage": "0.75", "previous_coverage": "0.5", "execution_time": "2.5"},
	}
	for _, p := range payloads {
		got := c.Calculate(p)
		if got < -100 || got > 100 {
			t.Errorf("Calculate(%v) = %v, outside sane range", p, got)
		}
	}
}

func TestCalculateRewardsImprovement(t *testing.T) {
	c := NewCalculator(DefaultWeights())
	better := c.Calculate(map[string]any{
		"coverage": 0.8, "previous_coverage": 0.5, "bugs_found": 3, "execution_time": 1,
	})
	worse := c.Calculate(map[string]any{
		"coverage": 0.4, "previous_coverage": 0.5, "false_positives": 3, "execution_time": 50,
	})
	if better <= worse {
		t.Errorf("better outcome %v should outscore worse outcome %v", better, worse)
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	manifest := `weights:
  coverage: 0.4
  quality: 0.3
  time: 0.1
  pattern: 0.1
  cost: 0.1
overrides:
  coverage_analyzer:
    coverage: 0.6
    quality: 0.2
    time: 0.1
    pattern: 0.05
    cost: 0.05
`
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got := p.For(agenttype.CoverageAnalyzer); got.Coverage != 0.6 {
		t.Errorf("override coverage weight = %v, want 0.6", got.Coverage)
	}
	if got := p.For(agenttype.TestGenerator); got.Coverage != 0.4 {
		t.Errorf("base coverage weight = %v, want 0.4", got.Coverage)
	}
}

func TestLoadProfileRejectsUnknownAgentType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	manifest := `weights:
  coverage: 1.0
overrides:
  not_an_agent:
    coverage: 0.5
`
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected error for unknown agent type override")
	}
}

func TestLoadProfileRejectsNegativeWeight(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	if err := os.WriteFile(path, []byte("weights:\n  coverage: -0.5\n  quality: 1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected error for negative weight")
	}
}
