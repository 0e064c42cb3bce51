// Package aireviewer implements the AIReviewer component: a thin client to
// an external language-model endpoint that turns a diff, PR metadata, and a
// repository's enabled rule categories into a structured review response.
package aireviewer

// category is one of the fixed rule categories a repository's
// .aireviewer.yaml can toggle; each contributes one line to the system
// prompt's "Focus on" section when enabled.
type category struct {
	focusLine string
}

// builtinCategories mirrors the fixed rule flags of the repository config
// schema, in the order they should appear in the system prompt.
var builtinCategories = []struct {
	name string
	category
}{
	{"security", category{"Security vulnerabilities, injection risks, authentication and authorization issues"}},
	{"performance", category{"Performance problems, inefficient algorithms, N+1 queries"}},
	{"style", category{"Code style, naming conventions, readability"}},
	{"bugs", category{"Logic errors, edge cases, null/nil handling"}},
	{"documentation", category{"Missing or outdated documentation, unclear code"}},
}

// RuleSet is the subset of a repository's .aireviewer.yaml that controls
// which rule categories the system prompt asks the model to focus on.
type RuleSet struct {
	Security      bool
	Performance   bool
	Style         bool
	Bugs          bool
	Documentation bool

	// Custom holds user-defined category name -> description pairs, appended
	// to the built-in categories in map-iteration order.
	Custom map[string]string
}

// enabled reports whether the named built-in category is turned on.
func (r RuleSet) enabled(name string) bool {
	switch name {
	case "security":
		return r.Security
	case "performance":
		return r.Performance
	case "style":
		return r.Style
	case "bugs":
		return r.Bugs
	case "documentation":
		return r.Documentation
	default:
		return false
	}
}

// focusAreas renders the enabled categories (built-in, then custom) as
// bullet lines for the system prompt's "Focus on" section.
func (r RuleSet) focusAreas() []string {
	var lines []string
	for _, c := range builtinCategories {
		if r.enabled(c.name) {
			lines = append(lines, "- "+c.focusLine)
		}
	}
	for name, description := range r.Custom {
		lines = append(lines, "- "+name+": "+description)
	}
	return lines
}
