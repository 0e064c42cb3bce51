// Package commands implements the CommandParser: recognizing bot-triggered
// commands inside PR comment bodies.
package commands

import (
	"fmt"
	"regexp"
	"strings"
)

// Type is a recognized bot command.
type Type string

const (
	TypeReview   Type = "review"
	TypeExplain  Type = "explain"
	TypeSecurity Type = "security"
	TypeIgnore   Type = "ignore"
	TypeConfig   Type = "config"
	TypeHelp     Type = "help"
)

// knownTypes is the set of command words the parser recognizes; any other
// word after a trigger phrase falls back to TypeHelp.
var knownTypes = map[string]Type{
	"review":   TypeReview,
	"explain":  TypeExplain,
	"security": TypeSecurity,
	"ignore":   TypeIgnore,
	"config":   TypeConfig,
	"help":     TypeHelp,
}

// ParsedCommand is one recognized bot command extracted from a comment body.
type ParsedCommand struct {
	Type    Type
	Args    []string
	RawText string
}

// Parser recognizes commands preceded by any of a configured set of trigger
// phrases.
type Parser struct {
	triggers []string
	pattern  *regexp.Regexp
}

// NewParser builds a Parser matching any of the given trigger phrases. The
// search is case-insensitive and the trigger need not be at the start of the
// body.
func NewParser(triggers []string) *Parser {
	escaped := make([]string, len(triggers))
	for i, t := range triggers {
		escaped[i] = regexp.QuoteMeta(t)
	}
	triggerGroup := strings.Join(escaped, "|")
	pattern := regexp.MustCompile(`(?i)(?:` + triggerGroup + `)\s+(\w+)(?:\s+(.+))?`)

	return &Parser{triggers: triggers, pattern: pattern}
}

// Parse searches body for a configured trigger phrase followed by a command
// word and optional arguments. It returns nil if no trigger is present.
// An unrecognized command word after a trigger still parses, as TypeHelp.
func (p *Parser) Parse(body string) *ParsedCommand {
	match := p.pattern.FindStringSubmatch(body)
	if match == nil {
		return nil
	}

	word := strings.ToLower(match[1])
	argsStr := match[2]

	cmdType, ok := knownTypes[word]
	if !ok {
		return &ParsedCommand{Type: TypeHelp, Args: nil, RawText: body}
	}

	var args []string
	if argsStr != "" {
		args = strings.Fields(argsStr)
	}

	return &ParsedCommand{Type: cmdType, Args: args, RawText: body}
}

// FormatHelp renders the help message listing every configured trigger and
// the commands it recognizes.
func (p *Parser) FormatHelp() string {
	primary := "@reviewer"
	if len(p.triggers) > 0 {
		primary = p.triggers[0]
	}

	quoted := make([]string, len(p.triggers))
	for i, t := range p.triggers {
		quoted[i] = "`" + t + "`"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## AI Reviewer Commands\n\n")
	fmt.Fprintf(&b, "**Triggers:** %s\n\n", strings.Join(quoted, ", "))
	b.WriteString("| Command | Description |\n|---------|-------------|\n")
	fmt.Fprintf(&b, "| `%s review` | Trigger a full review of the PR |\n", primary)
	fmt.Fprintf(&b, "| `%s review path/to/dir` | Review only files in the specified path |\n", primary)
	fmt.Fprintf(&b, "| `%s explain` | Get a plain-English explanation of changes |\n", primary)
	fmt.Fprintf(&b, "| `%s security` | Security-focused review only |\n", primary)
	fmt.Fprintf(&b, "| `%s ignore` | Skip automatic reviews for this PR |\n", primary)
	fmt.Fprintf(&b, "| `%s config` | Show the active configuration for this repo |\n", primary)
	fmt.Fprintf(&b, "| `%s help` | Show this help message |\n", primary)
	return b.String()
}
