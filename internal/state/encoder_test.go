package state

import (
	"errors"
	"testing"

	"github.com/clawinfra/qbank/internal/agenttype"
)

func newTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	enc, err := NewEncoder(agenttype.TestGenerator)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	return enc
}

func TestNewEncoderRejectsUnknownType(t *testing.T) {
	if _, err := NewEncoder(agenttype.AgentType("typo_generator")); !errors.Is(err, agenttype.ErrInvalidAgentType) {
		t.Fatalf("error = %v, want ErrInvalidAgentType", err)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	enc := newTestEncoder(t)
	ctx := map[string]any{
		"task_type":  "unit_test",
		"framework":  "pytest",
		"size":       120,
		"complexity": 15,
		"coverage":   0.62,
	}

	k1, _ := enc.Encode(ctx)
	k2, _ := enc.Encode(ctx)
	if k1 != k2 {
		t.Fatalf("same context hashed differently: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Fatalf("state key length = %d, want 64", len(k1))
	}
}

func TestEncodeDiffersAcrossComplexityBuckets(t *testing.T) {
	enc := newTestEncoder(t)
	low := map[string]any{"task_type": "unit_test", "framework": "pytest", "complexity": 5}
	high := map[string]any{"task_type": "unit_test", "framework": "pytest", "complexity": 25}

	k1, f1 := enc.Encode(low)
	k2, f2 := enc.Encode(high)
	if f1.ComplexityBucket == f2.ComplexityBucket {
		t.Fatalf("expected different buckets, both %q", f1.ComplexityBucket)
	}
	if k1 == k2 {
		t.Fatal("contexts in different complexity buckets must hash differently")
	}
}

func TestEncodeSameBucketSameKey(t *testing.T) {
	enc := newTestEncoder(t)
	a := map[string]any{"task_type": "unit_test", "framework": "pytest", "complexity": 11}
	b := map[string]any{"task_type": "unit_test", "framework": "pytest", "complexity": 18}

	ka, _ := enc.Encode(a)
	kb, _ := enc.Encode(b)
	if ka != kb {
		t.Fatal("contexts in the same buckets must hash identically")
	}
}

func TestCanonicalStringStripsPunctuation(t *testing.T) {
	f := ExtractFeatures(map[string]any{
		"task_type": "unit@test!",
		"framework": "py.test",
	})
	got := canonicalString(f)
	for _, r := range got {
		if r == '@' || r == '!' || r == '.' {
			t.Fatalf("canonical string %q contains punctuation", got)
		}
	}
	if got != "unittest|pytest|small|low|low" {
		t.Fatalf("canonical string = %q", got)
	}
}

func TestExtractFeaturesDefaults(t *testing.T) {
	f := ExtractFeatures(map[string]any{})
	if f.TaskType != "unknown" || f.Framework != "unknown" {
		t.Errorf("string defaults = %q/%q, want unknown/unknown", f.TaskType, f.Framework)
	}
	if f.Complexity != 0 || f.Coverage != 0 || f.Size != 0 {
		t.Errorf("numeric defaults = %v/%v/%v, want zeros", f.Complexity, f.Coverage, f.Size)
	}

	// nil values behave like missing fields
	f = ExtractFeatures(map[string]any{"framework": nil, "coverage": nil})
	if f.Framework != "unknown" || f.Coverage != 0 {
		t.Errorf("nil handling: framework=%q coverage=%v", f.Framework, f.Coverage)
	}
}

func TestExtractFeaturesCoercesAndClamps(t *testing.T) {
	f := ExtractFeatures(map[string]any{
		"complexity": "25",
		"coverage":   "1.7",
		"size":       int64(300),
	})
	if f.Complexity != 25 {
		t.Errorf("complexity = %v, want 25 (coerced from string)", f.Complexity)
	}
	if f.Coverage != 1 {
		t.Errorf("coverage = %v, want clamped to 1", f.Coverage)
	}
	if f.SizeBucket != "large" {
		t.Errorf("size bucket = %q, want large", f.SizeBucket)
	}

	f = ExtractFeatures(map[string]any{"complexity": -3, "coverage": -0.2, "size": -10})
	if f.Complexity != 0 || f.Coverage != 0 || f.Size != 0 {
		t.Errorf("negatives not clamped: %v/%v/%v", f.Complexity, f.Coverage, f.Size)
	}
}

func TestBuckets(t *testing.T) {
	cases := []struct {
		name string
		fn   func(float64) string
		in   float64
		want string
	}{
		{"complexity low", complexityBucket, 9.9, "low"},
		{"complexity boundary 10", complexityBucket, 10, "medium"},
		{"complexity boundary 20", complexityBucket, 20, "high"},
		{"complexity boundary 50", complexityBucket, 50, "very_high"},
		{"size small", sizeBucket, 49, "small"},
		{"size boundary 50", sizeBucket, 50, "medium"},
		{"size boundary 200", sizeBucket, 200, "large"},
		{"size boundary 500", sizeBucket, 500, "very_large"},
		{"coverage low", coverageBucket, 0.49, "low"},
		{"coverage boundary 0.5", coverageBucket, 0.5, "medium"},
		{"coverage boundary 0.7", coverageBucket, 0.7, "high"},
		{"coverage just under full", coverageBucket, 0.99, "high"},
		{"coverage full", coverageBucket, 1.0, "full"},
	}
	for _, tc := range cases {
		if got := tc.fn(tc.in); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
