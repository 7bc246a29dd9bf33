// Package reward turns task outcomes into a single scalar reward
// signal. Components are pure functions over clamped inputs; the
// combined reward is a weighted sum, except that an outright failed
// task always earns the fixed failure penalty.
package reward

import (
	"math"
	"strconv"
	"strings"
)

const (
	// failurePenalty is returned for any task marked failed,
	// regardless of what the rest of the payload claims.
	failurePenalty = -10.0

	// fullCoverageBonus is added on top of the coverage delta when a
	// task pushes coverage to exactly 1.0.
	fullCoverageBonus = 2.0

	// coverageScale converts a coverage delta (at most ±1.0) into
	// reward units.
	coverageScale = 10.0

	// timeRewardMax is the reward for an instantaneous task; the
	// reward decays logarithmically and goes negative for slow runs.
	timeRewardMax   = 5.0
	timeRewardSlope = 2.0

	// costRewardMax is the reward at zero cost.
	costRewardMax = 3.0

	patternBonusScale = 2.0

	bugWeight      = 1.0
	edgeCaseWeight = 0.5
	falsePosWeight = 0.8
)

// Weights controls how much each component contributes to the
// combined reward.
type Weights struct {
	Coverage float64 `json:"coverage" yaml:"coverage"`
	Quality  float64 `json:"quality" yaml:"quality"`
	Time     float64 `json:"time" yaml:"time"`
	Pattern  float64 `json:"pattern" yaml:"pattern"`
	Cost     float64 `json:"cost" yaml:"cost"`
}

// DefaultWeights sum to 1.0, weighted toward coverage and quality the
// same way fitness scoring favors success rate over cost and speed.
func DefaultWeights() Weights {
	return Weights{
		Coverage: 0.35,
		Quality:  0.30,
		Time:     0.15,
		Pattern:  0.10,
		Cost:     0.10,
	}
}

// Calculator computes rewards from task result payloads.
// Safe for concurrent use.
type Calculator struct {
	weights Weights
}

// NewCalculator builds a calculator with the given weights. Zero-value
// weights fall back to the defaults.
func NewCalculator(w Weights) *Calculator {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Calculator{weights: w}
}

// Weights returns the calculator's weight map.
func (c *Calculator) Weights() Weights { return c.weights }

// FailurePenalty is the fixed reward for an explicitly failed task.
func FailurePenalty() float64 { return failurePenalty }

// Calculate combines the component rewards for one task result.
// A payload marked failed ("failed" or "task_failed" truthy) yields
// FailurePenalty and every other field is ignored. Missing fields use
// zero defaults; nothing here ever raises on malformed telemetry.
func (c *Calculator) Calculate(result map[string]any) float64 {
	if truthy(result["failed"]) || truthy(result["task_failed"]) {
		return failurePenalty
	}

	cov := CoverageReward(numeric(result, "coverage"), numeric(result, "previous_coverage"))
	qual := QualityReward(
		numeric(result, "bugs_found"),
		numeric(result, "false_positives"),
		numeric(result, "edge_cases_covered"),
	)
	tm := TimeReward(numeric(result, "execution_time"))
	pat := PatternBonus(numeric(result, "patterns_reused"))
	cost := CostReward(numeric(result, "cost"))

	w := c.weights
	return w.Coverage*cov + w.Quality*qual + w.Time*tm + w.Pattern*pat + w.Cost*cost
}

// CoverageReward scores a coverage change. Both arguments are clamped
// to [0,1] first. Positive deltas score proportionally, negative
// deltas penalize, and landing on exactly full coverage earns a
// bonus on top.
func CoverageReward(current, previous float64) float64 {
	current = clamp01(current)
	previous = clamp01(previous)

	delta := current - previous
	if delta == 0 {
		return 0
	}
	r := delta * coverageScale
	if delta > 0 && current == 1.0 {
		r += fullCoverageBonus
	}
	return r
}

// QualityReward scores bug findings against precision. For a fixed
// bug count the reward strictly decreases as false positives grow.
// Negative counts are treated as zero.
func QualityReward(bugsFound, falsePositives, edgeCasesCovered float64) float64 {
	bugsFound = math.Max(0, bugsFound)
	falsePositives = math.Max(0, falsePositives)
	edgeCasesCovered = math.Max(0, edgeCasesCovered)

	return bugWeight*bugsFound + edgeCaseWeight*edgeCasesCovered - falsePosWeight*falsePositives
}

// TimeReward is inverted: fast runs score near timeRewardMax, slow
// runs go negative. Negative durations are clamped to zero.
func TimeReward(executionTime float64) float64 {
	if executionTime < 0 {
		executionTime = 0
	}
	return timeRewardMax - timeRewardSlope*math.Log1p(executionTime)
}

// PatternBonus rewards reusing learned patterns with diminishing
// returns: each additional batch of reuses is worth less than the
// previous one. Zero or negative counts earn nothing.
func PatternBonus(patternsReused float64) float64 {
	if patternsReused <= 0 {
		return 0
	}
	return patternBonusScale * math.Log1p(patternsReused)
}

// CostReward is maximal at zero cost and strictly decreasing.
func CostReward(cost float64) float64 {
	if cost < 0 {
		cost = 0
	}
	return costRewardMax / (1 + cost)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truthy mirrors loose result payloads: bools, non-zero numbers and
// the usual string spellings all count.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes":
			return true
		}
		return false
	default:
		return false
	}
}

func numeric(m map[string]any, key string) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return parsed
		}
	}
	return 0
}
