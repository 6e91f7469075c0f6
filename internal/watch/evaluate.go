package watch

import (
	"strings"
	"unicode/utf8"
)

// promptVocab are the action/question words whose presence marks a buffer as
// prompt-like.
var promptVocab = map[string]bool{
	"explain": true, "write": true, "create": true, "generate": true,
	"fix": true, "debug": true, "review": true, "refactor": true,
	"summarize": true, "translate": true, "convert": true, "implement": true,
	"add": true, "update": true, "remove": true, "rename": true,
	"make": true, "show": true, "give": true, "tell": true, "help": true,
	"find": true, "check": true, "list": true, "describe": true,
	"how": true, "what": true, "why": true, "when": true, "where": true,
	"can": true, "could": true, "would": true, "should": true, "please": true,
}

// Evaluate decides whether a flushed buffer is worth logging: long enough,
// varied enough to not be key-repeat noise, and prompt-like.
func Evaluate(text string, minChars, minDistinct int) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minChars {
		return false
	}
	if distinctRunes(text) < minDistinct {
		return false
	}
	return promptLike(text)
}

// promptLike is the cheap classifier: an action/question vocabulary hit, or a
// trailing "?" or ":".
func promptLike(text string) bool {
	if strings.HasSuffix(text, "?") || strings.HasSuffix(text, ":") {
		return true
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if promptVocab[w] {
			return true
		}
	}
	return false
}

// distinctRunes counts unique runes, which filters out buffers like
// "aaaaaaaaaaaa" produced by key repeat.
func distinctRunes(s string) int {
	seen := make(map[rune]bool)
	for _, r := range s {
		seen[r] = true
	}
	return len(seen)
}
