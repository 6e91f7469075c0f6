// Package snippet holds the suggestion domain: the Suggestion type, the
// synthesis prompt, response parsing, trigger derivation and the confidence
// heuristic. Everything here is pure and deterministic.
package snippet

import (
	"fmt"
	"strings"
)

// Suggestion is one proposed text-replacement shortcut, synthesized from a
// cluster of similar captured prompts.
type Suggestion struct {
	// ID is a ULID, assigned when the suggestion is persisted.
	ID string `json:"id,omitempty"`

	// Trigger is the short token the user types to invoke the replacement.
	Trigger string `json:"trigger"`

	// Replacement is the generic phrase the trigger expands to.
	Replacement string `json:"replacement"`

	// SourceTexts are the captured prompts the suggestion was derived from,
	// in cluster order.
	SourceTexts []string `json:"source_texts"`

	// Confidence is the heuristic score in [0, 1].
	Confidence float64 `json:"confidence"`
}

// BuildPrompt renders the synthesis prompt for one cluster of similar
// prompts. The response format it asks for is what ParseResponse expects.
func BuildPrompt(members []string) string {
	var b strings.Builder
	b.WriteString("The following prompts were typed repeatedly by the same user ")
	b.WriteString("and appear to mean the same thing:\n\n")
	for i, m := range members {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m)
	}
	b.WriteString("\nWrite ONE concise, generic phrase that could replace all of them.\n")
	b.WriteString("Keep it under 20 words and do not reference any specific file, name or value.\n\n")
	b.WriteString("Answer in exactly this format:\n")
	b.WriteString("Replacement: <the phrase>\n")
	b.WriteString("Confidence: HIGH|MEDIUM|LOW\n")
	return b.String()
}
