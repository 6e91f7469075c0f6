package snippet

import (
	"regexp"
	"strings"
)

// Trigger length bounds, prefix included.
const (
	MinTriggerLen = 4
	MaxTriggerLen = 20
)

// DefaultToken is the trigger body used when nothing usable survives
// normalization.
const DefaultToken = "snip"

// nonAlnumRegex matches everything that is not a lowercase letter, digit or
// space after lowercasing.
var nonAlnumRegex = regexp.MustCompile(`[^a-z0-9 ]+`)

// stopwords are dropped before keyword matching.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "this": true, "that": true,
	"these": true, "those": true, "my": true, "me": true, "i": true,
	"you": true, "your": true, "it": true, "its": true, "is": true,
	"are": true, "be": true, "to": true, "of": true, "for": true,
	"in": true, "on": true, "at": true, "with": true, "and": true,
	"or": true, "but": true, "so": true, "do": true, "does": true,
	"can": true, "could": true, "would": true, "should": true,
	"please": true, "kindly": true, "just": true, "some": true,
	"all": true, "any": true, "how": true, "what": true, "why": true,
	"when": true, "where": true, "which": true,
}

// actionWords is the action-verb vocabulary, checked in word order against
// the normalized replacement.
var actionWords = map[string]bool{
	"explain": true, "write": true, "create": true, "generate": true,
	"fix": true, "debug": true, "review": true, "refactor": true,
	"summarize": true, "translate": true, "convert": true, "describe": true,
	"draft": true, "improve": true, "optimize": true, "document": true,
	"analyze": true, "check": true, "find": true, "list": true,
	"make": true, "show": true, "add": true, "remove": true,
	"update": true, "rename": true, "test": true, "help": true,
}

// subjectWords is the subject-noun vocabulary.
var subjectWords = map[string]bool{
	"code": true, "function": true, "test": true, "tests": true,
	"bug": true, "error": true, "file": true, "files": true,
	"email": true, "message": true, "text": true, "doc": true,
	"docs": true, "documentation": true, "comment": true, "comments": true,
	"query": true, "script": true, "report": true, "summary": true,
	"commit": true, "diff": true, "output": true, "data": true,
	"readme": true, "changes": true,
}

// letterRegex keeps only letters when building the trigger body.
var letterRegex = regexp.MustCompile(`[^a-z]+`)

// DeriveTrigger derives a short trigger token from a replacement phrase.
// The result always passes IsValidTrigger for the same prefix.
//
// Derivation: normalize to lowercase alphanumerics, strip stopwords, then
// compose prefix + first action verb + first subject noun. With no vocabulary
// hit the first two remaining words are used; with nothing left at all the
// fixed default token is used. The result is padded or truncated into the
// trigger length window.
func DeriveTrigger(replacement, prefix string) string {
	norm := nonAlnumRegex.ReplaceAllString(strings.ToLower(replacement), " ")

	var words []string
	for _, w := range strings.Fields(norm) {
		if !stopwords[w] {
			words = append(words, w)
		}
	}

	var action, subject string
	for _, w := range words {
		if action == "" && actionWords[w] {
			action = w
			continue
		}
		if subject == "" && subjectWords[w] {
			subject = w
		}
	}

	var body string
	switch {
	case action != "" && subject != "":
		body = action + subject
	case action != "":
		body = action
	case len(words) >= 2:
		body = words[0] + words[1]
	case len(words) == 1:
		body = words[0]
	}

	body = letterRegex.ReplaceAllString(body, "")
	if body == "" {
		body = DefaultToken
	}

	trigger := prefix + body
	if len(trigger) > MaxTriggerLen {
		trigger = trigger[:MaxTriggerLen]
	}
	for len(trigger) < MinTriggerLen {
		trigger += "x"
	}
	return trigger
}

// IsValidTrigger reports whether s is a well-formed trigger for the given
// prefix: the prefix followed by one or more lowercase letters, with total
// length inside the trigger window.
func IsValidTrigger(s, prefix string) bool {
	if len(s) < MinTriggerLen || len(s) > MaxTriggerLen {
		return false
	}
	body, ok := strings.CutPrefix(s, prefix)
	if !ok || body == "" {
		return false
	}
	for _, r := range body {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
