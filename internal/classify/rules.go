package classify

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Category is a label matched when any of its keywords occurs in the text.
type Category struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Rules holds every word list the classifier consults. Categories are
// matched in slice order, which is the order labels appear on an item.
type Rules struct {
	Categories      []Category `yaml:"categories"`
	NoiseWords      []string   `yaml:"noise_words"`
	ForwardLooking  []string   `yaml:"forward_looking"`
	MaterialVerbs   []string   `yaml:"material_verbs"`
	OfficialSources []string   `yaml:"official_sources"`
	MarketKeywords  []string   `yaml:"market_keywords"`
	MarketQueries   []string   `yaml:"market_queries"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	var r Rules
	if err := yaml.Unmarshal(defaultRulesYAML, &r); err != nil {
		panic(fmt.Sprintf("classify: embedded rules: %v", err))
	}
	return r
}

// LoadRules reads rules from a YAML file. Lists the file omits keep their
// built-in values. An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Rules{}, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return Rules{}, fmt.Errorf("decode rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

func (r Rules) Validate() error {
	if len(r.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	seen := make(map[string]bool, len(r.Categories))
	for i, c := range r.Categories {
		if c.Label == "" {
			return fmt.Errorf("category %d has no label", i)
		}
		if seen[c.Label] {
			return fmt.Errorf("duplicate category %q", c.Label)
		}
		seen[c.Label] = true
		if len(c.Keywords) == 0 {
			return fmt.Errorf("category %q has no keywords", c.Label)
		}
	}
	return nil
}
