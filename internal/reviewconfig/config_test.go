package reviewconfig

import "testing"

func TestParseAppliesDefaultsForOmittedFields(t *testing.T) {
	cfg, err := Parse([]byte(`rules:
  security: false
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Rules.Security {
		t.Error("Rules.Security should be overridden to false")
	}
	if !cfg.Rules.Bugs {
		t.Error("Rules.Bugs should keep its default of true")
	}
	if cfg.MaxFiles != 50 {
		t.Errorf("MaxFiles = %d, want default 50", cfg.MaxFiles)
	}
	if len(cfg.Paths.Include) != 1 || cfg.Paths.Include[0] != "**/*" {
		t.Errorf("Paths.Include = %v, want default [**/*]", cfg.Paths.Include)
	}
}

func TestParseFullConfig(t *testing.T) {
	raw := []byte(`
paths:
  include: ["src/**", "lib/**"]
  exclude: ["**/*.md"]
rules:
  security: true
  performance: false
  style: true
  bugs: true
  documentation: true
  custom:
    api-contracts: "keep public APIs backward compatible"
auto_review: false
review_on: [opened]
max_files: 10
context_files: ["README.md"]
model: "claude-opus-4"
languages: [go]
frameworks: [gin]
additional_instructions: "Be extra strict about error handling."
`)

	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.AutoReview {
		t.Error("AutoReview should be false")
	}
	if cfg.MaxFiles != 10 {
		t.Errorf("MaxFiles = %d, want 10", cfg.MaxFiles)
	}
	if cfg.Model != "claude-opus-4" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if desc, ok := cfg.Rules.Custom["api-contracts"]; !ok || desc != "keep public APIs backward compatible" {
		t.Errorf("Custom[api-contracts] = %q, %v", desc, ok)
	}
}

func TestToRuleSetCarriesFlagsAndCustom(t *testing.T) {
	rules := RulesConfig{Security: true, Bugs: true, Custom: map[string]string{"x": "y"}}
	set := rules.ToRuleSet()

	if !set.Security || !set.Bugs || set.Performance {
		t.Fatalf("unexpected RuleSet: %+v", set)
	}
	if set.Custom["x"] != "y" {
		t.Fatalf("custom categories not carried over: %+v", set.Custom)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("not: [valid: yaml"))
	if err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
