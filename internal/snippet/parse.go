package snippet

import (
	"fmt"
	"math"
	"strings"
)

// Confidence labels the model may answer with.
const (
	LabelHigh   = "HIGH"
	LabelMedium = "MEDIUM"
	LabelLow    = "LOW"
)

// Parsed is the structured content of a synthesis response.
type Parsed struct {
	Replacement string
	Label       string
}

// ParseResponse extracts the Replacement and Confidence lines from a model
// response. Line matching is case-insensitive and tolerates markdown bullets
// and surrounding whitespace. A missing replacement is an error; a missing or
// unknown confidence defaults to MEDIUM.
func ParseResponse(s string) (Parsed, error) {
	p := Parsed{Label: LabelMedium}

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")

		if rest, ok := cutPrefixFold(line, "replacement:"); ok {
			p.Replacement = strings.Trim(strings.TrimSpace(rest), `"'`)
			continue
		}
		if rest, ok := cutPrefixFold(line, "confidence:"); ok {
			switch strings.ToUpper(strings.TrimSpace(rest)) {
			case LabelHigh:
				p.Label = LabelHigh
			case LabelLow:
				p.Label = LabelLow
			case LabelMedium:
				p.Label = LabelMedium
			}
		}
	}

	if p.Replacement == "" {
		return Parsed{}, fmt.Errorf("no Replacement line in response")
	}
	return p, nil
}

// cutPrefixFold is strings.CutPrefix with ASCII case folding.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// Score blends the model's confidence label with cluster shape into a numeric
// confidence: larger clusters score a little higher, clusters whose member
// lengths vary wildly score lower. The result is clamped to [0.05, 1] so a
// synthesized suggestion is never reported as zero confidence.
func Score(label string, memberTexts []string) float64 {
	var base float64
	switch label {
	case LabelHigh:
		base = 0.9
	case LabelLow:
		base = 0.5
	default:
		base = 0.7
	}

	bonus := 0.02 * float64(len(memberTexts)-2)
	if bonus < 0 {
		bonus = 0
	}
	if bonus > 0.1 {
		bonus = 0.1
	}

	score := base + bonus - lengthVariancePenalty(memberTexts)
	if score < 0.05 {
		score = 0.05
	}
	if score > 1 {
		score = 1
	}
	return score
}

// lengthVariancePenalty is the member-length standard deviation normalized by
// the mean length, capped at 0.15.
func lengthVariancePenalty(memberTexts []string) float64 {
	if len(memberTexts) < 2 {
		return 0
	}

	var mean float64
	for _, t := range memberTexts {
		mean += float64(len(t))
	}
	mean /= float64(len(memberTexts))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, t := range memberTexts {
		d := float64(len(t)) - mean
		variance += d * d
	}
	variance /= float64(len(memberTexts))

	penalty := math.Sqrt(variance) / mean
	if penalty > 0.15 {
		penalty = 0.15
	}
	return penalty
}
