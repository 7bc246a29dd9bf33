package reward

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/clawinfra/qbank/internal/agenttype"
)

// Profile holds the base reward weights plus per-agent-type
// overrides, loaded from a YAML manifest.
type Profile struct {
	Weights   Weights            `yaml:"weights"`
	Overrides map[string]Weights `yaml:"overrides,omitempty"`
	overrides map[agenttype.AgentType]Weights
}

// LoadProfile reads and validates a weight profile manifest.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reward: read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("reward: parse profile: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) validate() error {
	if p.Weights == (Weights{}) {
		p.Weights = DefaultWeights()
	}
	if err := checkWeights("base", p.Weights); err != nil {
		return err
	}

	p.overrides = make(map[agenttype.AgentType]Weights, len(p.Overrides))
	for name, w := range p.Overrides {
		at, err := agenttype.Parse(name)
		if err != nil {
			return fmt.Errorf("reward: override %q: %w", name, err)
		}
		if err := checkWeights(name, w); err != nil {
			return err
		}
		p.overrides[at] = w
	}
	return nil
}

func checkWeights(section string, w Weights) error {
	for _, pair := range []struct {
		name  string
		value float64
	}{
		{"coverage", w.Coverage},
		{"quality", w.Quality},
		{"time", w.Time},
		{"pattern", w.Pattern},
		{"cost", w.Cost},
	} {
		if pair.value < 0 {
			return fmt.Errorf("reward: profile %s: weight %s is negative", section, pair.name)
		}
	}
	if w.Coverage+w.Quality+w.Time+w.Pattern+w.Cost <= 0 {
		return fmt.Errorf("reward: profile %s: weights sum to zero", section)
	}
	return nil
}

// For returns the weights for an agent type, falling back to the base
// weights when no override exists.
func (p *Profile) For(at agenttype.AgentType) Weights {
	if w, ok := p.overrides[at]; ok {
		return w
	}
	return p.Weights
}
