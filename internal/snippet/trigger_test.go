package snippet

import (
	"strings"
	"testing"
)

func TestDeriveTrigger_ActionAndSubject(t *testing.T) {
	got := DeriveTrigger("Explain this code to me", "-")
	if got != "-explaincode" {
		t.Errorf("DeriveTrigger = %q, want %q", got, "-explaincode")
	}
}

func TestDeriveTrigger_ActionOnly(t *testing.T) {
	got := DeriveTrigger("Summarize everything below", "-")
	if !strings.HasPrefix(got, "-summarize") {
		t.Errorf("DeriveTrigger = %q, want -summarize prefix", got)
	}
}

func TestDeriveTrigger_FallbackFirstTwoWords(t *testing.T) {
	// No vocabulary hits: first two non-stopwords compose the body.
	got := DeriveTrigger("quarterly budget spreadsheet", "-")
	if got != "-quarterlybudget" {
		t.Errorf("DeriveTrigger = %q, want %q", got, "-quarterlybudget")
	}
}

func TestDeriveTrigger_DefaultToken(t *testing.T) {
	for _, input := range []string{"", "   ", "??? !!!", "the a an"} {
		got := DeriveTrigger(input, "-")
		if got != "-snip" {
			t.Errorf("DeriveTrigger(%q) = %q, want -snip", input, got)
		}
	}
}

func TestDeriveTrigger_TruncatesLong(t *testing.T) {
	got := DeriveTrigger("transmogrification of the interdimensional hyperdrive", "-")
	if len(got) != MaxTriggerLen {
		t.Errorf("len = %d, want %d (got %q)", len(got), MaxTriggerLen, got)
	}
}

func TestDeriveTrigger_PadsShort(t *testing.T) {
	got := DeriveTrigger("go", "-")
	if len(got) < MinTriggerLen {
		t.Errorf("len = %d, want >= %d (got %q)", len(got), MinTriggerLen, got)
	}
}

func TestDeriveTrigger_StripsDigits(t *testing.T) {
	got := DeriveTrigger("fix bug42 in module7", "-")
	for _, r := range strings.TrimPrefix(got, "-") {
		if r < 'a' || r > 'z' {
			t.Fatalf("trigger %q contains non-letter %q", got, r)
		}
	}
}

func TestDeriveTrigger_Deterministic(t *testing.T) {
	a := DeriveTrigger("please review my test file", "-")
	b := DeriveTrigger("please review my test file", "-")
	if a != b {
		t.Errorf("DeriveTrigger not deterministic: %q vs %q", a, b)
	}
}

// Every derived trigger must validate, whatever the input looks like.
func TestDeriveTrigger_AlwaysValid(t *testing.T) {
	inputs := []string{
		"Explain this code",
		"write an email to the team",
		"",
		"1234567890",
		"?!.,;:",
		"a",
		"the quick brown fox jumps over the lazy dog again and again and again",
		"Übersetze diesen Text bitte",
		"fix",
	}
	for _, input := range inputs {
		got := DeriveTrigger(input, "-")
		if !IsValidTrigger(got, "-") {
			t.Errorf("DeriveTrigger(%q) = %q does not validate", input, got)
		}
	}
}

func TestIsValidTrigger(t *testing.T) {
	tests := []struct {
		trigger string
		want    bool
	}{
		{"-explaincode", true},
		{"-snip", true},
		{"-abc", true},
		{"abc", false},             // no prefix
		{"-", false},               // empty body
		{"-ab1", false},            // digit in body
		{"-Ab", false},             // uppercase
		{"-a b", false},            // space
		{"-ab", false},             // under min length
		{"-abcdefghijklmnopqrstuvwxyz", false}, // over max length
	}
	for _, tt := range tests {
		if got := IsValidTrigger(tt.trigger, "-"); got != tt.want {
			t.Errorf("IsValidTrigger(%q) = %v, want %v", tt.trigger, got, tt.want)
		}
	}
}
