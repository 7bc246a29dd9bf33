// Package state maps task contexts onto deterministic state keys.
// A context is reduced to a handful of bucketed features, serialized
// canonically and hashed; two logically identical contexts always
// produce the same 64-hex-char key.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/clawinfra/qbank/internal/agenttype"
)

// Encoder turns task contexts into state keys for one agent type.
// It is stateless and safe for concurrent use.
type Encoder struct {
	agentType agenttype.AgentType
}

// NewEncoder creates an encoder for the given agent type. Unknown
// types are rejected here so downstream code never hashes for a type
// that has no Q-table partition.
func NewEncoder(at agenttype.AgentType) (*Encoder, error) {
	if !at.Valid() {
		return nil, fmt.Errorf("%w: %q", agenttype.ErrInvalidAgentType, at)
	}
	return &Encoder{agentType: at}, nil
}

// AgentType returns the type this encoder was built for.
func (e *Encoder) AgentType() agenttype.AgentType { return e.agentType }

// Encode extracts features from ctx and returns the state key plus
// the features it was derived from. Pure: no randomness, no clock.
func (e *Encoder) Encode(ctx map[string]any) (string, Features) {
	f := ExtractFeatures(ctx)
	return hashCanonical(canonicalString(f)), f
}

// canonicalString joins the sanitized feature components with a pipe
// separator. The separator itself is outside the sanitized alphabet,
// so components can never bleed into each other.
func canonicalString(f Features) string {
	parts := []string{
		sanitize(f.TaskType),
		sanitize(f.Framework),
		f.SizeBucket,
		f.ComplexityBucket,
		f.CoverageBucket,
	}
	return strings.Join(parts, "|")
}

// sanitize drops every rune outside [A-Za-z0-9_]. Punctuation in
// free-form task metadata must not reach the hashed string.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hashCanonical(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
