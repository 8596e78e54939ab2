package promptchain

import (
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/maiahq/maia/dispatch"
)

// SubtaskSpec is one step of a prompt chain: a template with named
// placeholders and the context key its output is stored under.
type SubtaskSpec struct {
	Name      string        `yaml:"name"`
	Template  string        `yaml:"template"`
	OutputKey string        `yaml:"output_key"`
	Quality   dispatch.Tier `yaml:"quality,omitempty"`
}

// Chain is an ordered sequence of subtask specs. Read-only once loaded.
type Chain struct {
	Name  string        `yaml:"name"`
	Steps []SubtaskSpec `yaml:"steps"`
}

// Load reads and validates a chain from a YAML file.
func Load(path string) (*Chain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain spec: %w", err)
	}
	return Parse(data)
}

// Parse validates a chain from YAML bytes.
func Parse(data []byte) (*Chain, error) {
	var chain Chain
	if err := yaml.Unmarshal(data, &chain); err != nil {
		return nil, fmt.Errorf("parse chain spec: %w", err)
	}
	if err := chain.Validate(); err != nil {
		return nil, err
	}
	return &chain, nil
}

// Validate checks structural soundness: at least one step, non-empty unique
// output keys, and parseable templates. Template validity is established
// here so execution never hits a parse error mid-chain.
func (c *Chain) Validate() error {
	if len(c.Steps) == 0 {
		return fmt.Errorf("chain %q has no steps", c.Name)
	}
	seen := make(map[string]struct{}, len(c.Steps))
	for i, s := range c.Steps {
		if s.Template == "" {
			return fmt.Errorf("chain %q step %d: empty template", c.Name, i)
		}
		if s.OutputKey == "" {
			return fmt.Errorf("chain %q step %d: empty output_key", c.Name, i)
		}
		if _, dup := seen[s.OutputKey]; dup {
			return fmt.Errorf("chain %q step %d: duplicate output_key %q", c.Name, i, s.OutputKey)
		}
		seen[s.OutputKey] = struct{}{}
		if _, err := template.New(s.OutputKey).Option("missingkey=error").Parse(s.Template); err != nil {
			return fmt.Errorf("chain %q step %d: bad template: %w", c.Name, i, err)
		}
		switch s.Quality {
		case "", dispatch.TierFast, dispatch.TierStandard, dispatch.TierPremium:
		default:
			return fmt.Errorf("chain %q step %d: unknown quality %q", c.Name, i, s.Quality)
		}
	}
	return nil
}
