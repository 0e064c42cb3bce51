package aireviewer

import "strings"
import "testing"

func TestBuildSystemPromptListsEnabledCategories(t *testing.T) {
	req := Request{
		Rules: RuleSet{Security: true, Bugs: true},
	}

	prompt := buildSystemPrompt(req)

	if !strings.Contains(prompt, "Security vulnerabilities") {
		t.Error("expected security focus line in prompt")
	}
	if !strings.Contains(prompt, "Logic errors") {
		t.Error("expected bugs focus line in prompt")
	}
	if strings.Contains(prompt, "Performance problems") {
		t.Error("did not expect performance focus line when disabled")
	}
}

func TestBuildSystemPromptFallsBackToGeneralQuality(t *testing.T) {
	prompt := buildSystemPrompt(Request{})
	if !strings.Contains(prompt, "General code quality") {
		t.Error("expected fallback focus line when no category is enabled")
	}
}

func TestBuildSystemPromptIncludesCustomCategory(t *testing.T) {
	req := Request{
		Rules: RuleSet{Custom: map[string]string{"api-contracts": "keep public APIs backward compatible"}},
	}
	prompt := buildSystemPrompt(req)
	if !strings.Contains(prompt, "api-contracts: keep public APIs backward compatible") {
		t.Error("expected custom category line in prompt")
	}
}

func TestBuildSystemPromptIncludesLanguagesAndFrameworks(t *testing.T) {
	req := Request{
		Languages:  []string{"go", "typescript"},
		Frameworks: []string{"gin"},
	}
	prompt := buildSystemPrompt(req)
	if !strings.Contains(prompt, "Languages: go, typescript") {
		t.Error("expected languages line in prompt")
	}
	if !strings.Contains(prompt, "Frameworks: gin") {
		t.Error("expected frameworks line in prompt")
	}
}

func TestBuildUserPromptIncludesDescriptionAndDiff(t *testing.T) {
	req := Request{
		PRTitle:       "Add caching layer",
		PRDescription: "Introduces an LRU cache for repo lookups.",
		DiffText:      "diff --git a/x.go b/x.go\n",
	}
	prompt := buildUserPrompt(req)

	if !strings.Contains(prompt, "# Pull Request: Add caching layer") {
		t.Error("expected title heading")
	}
	if !strings.Contains(prompt, "## Description\nIntroduces an LRU cache") {
		t.Error("expected description section")
	}
	if !strings.Contains(prompt, "```diff\ndiff --git a/x.go b/x.go") {
		t.Error("expected fenced diff block")
	}
}

func TestBuildUserPromptOmitsDescriptionSectionWhenEmpty(t *testing.T) {
	prompt := buildUserPrompt(Request{PRTitle: "x", DiffText: "d"})
	if strings.Contains(prompt, "## Description") {
		t.Error("did not expect a description section for an empty PRDescription")
	}
}
