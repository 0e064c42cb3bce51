package commands

import (
	"reflect"
	"testing"
)

var defaultTriggers = []string{"@reviewer", "@procrasturbate", "it's gooning time"}

func TestParseRecognizesTriggerAndArgs(t *testing.T) {
	p := NewParser(defaultTriggers)

	got := p.Parse("Hey @reviewer review src/auth/")
	want := &ParsedCommand{Type: TypeReview, Args: []string{"src/auth/"}, RawText: "Hey @reviewer review src/auth/"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseIsCaseInsensitiveAndMultiWordTrigger(t *testing.T) {
	p := NewParser(defaultTriggers)

	got := p.Parse("IT'S GOONING TIME security")
	if got == nil {
		t.Fatal("expected a parsed command")
	}
	if got.Type != TypeSecurity {
		t.Errorf("Type = %q, want %q", got.Type, TypeSecurity)
	}
	if len(got.Args) != 0 {
		t.Errorf("Args = %v, want none", got.Args)
	}
}

func TestParseReturnsNilWithoutTrigger(t *testing.T) {
	p := NewParser(defaultTriggers)

	if got := p.Parse("nothing to see here"); got != nil {
		t.Errorf("Parse() = %+v, want nil", got)
	}
}

func TestParseUnknownCommandFallsBackToHelp(t *testing.T) {
	p := NewParser(defaultTriggers)

	got := p.Parse("@reviewer frobnicate")
	if got == nil || got.Type != TypeHelp {
		t.Fatalf("Parse() = %+v, want TypeHelp", got)
	}
	if len(got.Args) != 0 {
		t.Errorf("Args = %v, want none", got.Args)
	}
}

func TestParseNoArgsWhenCommandIsLastWord(t *testing.T) {
	p := NewParser(defaultTriggers)

	got := p.Parse("@reviewer ignore")
	if got == nil || got.Type != TypeIgnore {
		t.Fatalf("Parse() = %+v, want TypeIgnore", got)
	}
	if got.Args != nil {
		t.Errorf("Args = %v, want nil", got.Args)
	}
}

func TestFormatHelpUsesPrimaryTrigger(t *testing.T) {
	p := NewParser(defaultTriggers)
	help := p.FormatHelp()

	if !contains(help, "`@reviewer`") {
		t.Errorf("help message missing primary trigger backticks: %s", help)
	}
	if !contains(help, "@reviewer review`") {
		t.Errorf("help message missing review example with primary trigger: %s", help)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
