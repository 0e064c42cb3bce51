// Package reviewconfig implements the ConfigLoader: parsing and caching a
// repository's .aireviewer.yaml file, the per-repository override of the
// review pipeline's behavior.
package reviewconfig

import (
	"gopkg.in/yaml.v3"

	"github.com/aireviewer/reviewerd/internal/aireviewer"
)

// PathConfig controls which changed files the PathFilter allows through.
type PathConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// RulesConfig controls which built-in and custom rule categories the
// AIReviewer's system prompt asks the model to focus on.
type RulesConfig struct {
	Security      bool              `yaml:"security" json:"security"`
	Performance   bool              `yaml:"performance" json:"performance"`
	Style         bool              `yaml:"style" json:"style"`
	Bugs          bool              `yaml:"bugs" json:"bugs"`
	Documentation bool              `yaml:"documentation" json:"documentation"`
	Custom        map[string]string `yaml:"custom" json:"custom"`
}

// ToRuleSet converts this repository's rule toggles into the shape the
// AIReviewer's system-prompt builder expects.
func (r RulesConfig) ToRuleSet() aireviewer.RuleSet {
	return aireviewer.RuleSet{
		Security:      r.Security,
		Performance:   r.Performance,
		Style:         r.Style,
		Bugs:          r.Bugs,
		Documentation: r.Documentation,
		Custom:        r.Custom,
	}
}

// Config is the parsed contents of a repository's .aireviewer.yaml.
type Config struct {
	Paths PathConfig  `yaml:"paths" json:"paths"`
	Rules RulesConfig `yaml:"rules" json:"rules"`

	AutoReview bool     `yaml:"auto_review" json:"auto_review"`
	ReviewOn   []string `yaml:"review_on" json:"review_on"`

	// MaxFiles gates a PR whose changed_files count exceeds it; valid range
	// is 1..200.
	MaxFiles int `yaml:"max_files" json:"max_files"`

	// ContextFiles lists repository paths loaded (best-effort, up to 5) and
	// concatenated into the AIReviewer's context blob.
	ContextFiles []string `yaml:"context_files" json:"context_files"`

	// Model overrides the installation-wide default model when non-empty.
	Model string `yaml:"model" json:"model"`

	Languages  []string `yaml:"languages" json:"languages"`
	Frameworks []string `yaml:"frameworks" json:"frameworks"`

	AdditionalInstructions string `yaml:"additional_instructions" json:"additional_instructions"`
}

// Default returns the configuration a repository without an
// .aireviewer.yaml (or with one that failed to parse) uses.
func Default() Config {
	return Config{
		Paths: PathConfig{
			Include: []string{"**/*"},
			Exclude: nil,
		},
		Rules: RulesConfig{
			Security:      true,
			Performance:   true,
			Style:         true,
			Bugs:          true,
			Documentation: false,
			Custom:        map[string]string{},
		},
		AutoReview: true,
		ReviewOn:   []string{"opened", "synchronize"},
		MaxFiles:   50,
	}
}

// Parse decodes raw YAML into a Config, starting from Default() so that any
// field the file omits keeps its default value.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Rules.Custom == nil {
		cfg.Rules.Custom = map[string]string{}
	}
	return cfg, nil
}
