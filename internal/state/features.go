package state

import (
	"strconv"
	"strings"
)

// Features is the discretized view of a task context. Raw numeric
// values are kept alongside their bucket labels so callers can log
// both.
type Features struct {
	TaskType   string  `json:"task_type"`
	Framework  string  `json:"framework"`
	Size       float64 `json:"size"`
	Complexity float64 `json:"complexity"`
	Coverage   float64 `json:"coverage"`

	SizeBucket       string `json:"size_bucket"`
	ComplexityBucket string `json:"complexity_bucket"`
	CoverageBucket   string `json:"coverage_bucket"`
}

const defaultLabel = "unknown"

// ExtractFeatures pulls the recognized fields out of a task context
// map, applying defaults, coercion and clamping. Missing or malformed
// telemetry never fails extraction; it degrades to the field default.
func ExtractFeatures(ctx map[string]any) Features {
	f := Features{
		TaskType:   stringField(ctx, "task_type", defaultLabel),
		Framework:  stringField(ctx, "framework", defaultLabel),
		Size:       numericField(ctx, "size", 0),
		Complexity: numericField(ctx, "complexity", 0),
		Coverage:   numericField(ctx, "coverage", 0),
	}

	// Negative telemetry is meaningless; clamp to the floor.
	if f.Size < 0 {
		f.Size = 0
	}
	if f.Complexity < 0 {
		f.Complexity = 0
	}
	if f.Coverage < 0 {
		f.Coverage = 0
	}
	if f.Coverage > 1 {
		f.Coverage = 1
	}

	f.SizeBucket = sizeBucket(f.Size)
	f.ComplexityBucket = complexityBucket(f.Complexity)
	f.CoverageBucket = coverageBucket(f.Coverage)
	return f
}

// Bucket thresholds are half-open intervals with the lower bound
// inclusive: a value exactly on a boundary lands in the upper bucket.

func complexityBucket(c float64) string {
	switch {
	case c < 10:
		return "low"
	case c < 20:
		return "medium"
	case c < 50:
		return "high"
	default:
		return "very_high"
	}
}

func sizeBucket(s float64) string {
	switch {
	case s < 50:
		return "small"
	case s < 200:
		return "medium"
	case s < 500:
		return "large"
	default:
		return "very_large"
	}
}

func coverageBucket(c float64) string {
	switch {
	case c >= 1:
		return "full"
	case c >= 0.7:
		return "high"
	case c >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

func stringField(ctx map[string]any, key, def string) string {
	v, ok := ctx[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// numericField coerces ints, floats and numeric strings. Anything
// else falls back to the default.
func numericField(ctx map[string]any, key string, def float64) float64 {
	v, ok := ctx[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return parsed
		}
		return def
	default:
		return def
	}
}
