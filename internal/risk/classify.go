// Package risk scores text against a domain policy's tiered phrase lists.
// Matching is literal and case-insensitive; there is no language model here.
package risk

import (
	"strings"

	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/policy"
)

// mediumMax is the largest number of non-high matches still classified medium.
const mediumMax = 2

// Scan returns every policy phrase found in text, high tier first, in
// policy order, each phrase at most once.
func Scan(text string, p *policy.Policy) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, phrase := range p.Phrases() {
		if strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}
	return found
}

// Classify scans text and assigns a risk level:
//
//	any high-tier match      -> high
//	1..2 matches             -> medium
//	0 matches                -> low
//	3+ matches, none high    -> high
func Classify(text string, p *policy.Policy) model.RiskAssessment {
	flagged := Scan(text, p)
	return model.RiskAssessment{
		RiskLevel:      Level(flagged, p),
		FlaggedPhrases: flagged,
	}
}

// Level applies the tier rules to an already scanned phrase list.
func Level(flagged []string, p *policy.Policy) model.RiskLevel {
	for _, phrase := range flagged {
		if p.IsHigh(phrase) {
			return model.RiskHigh
		}
	}
	switch n := len(flagged); {
	case n == 0:
		return model.RiskLow
	case n <= mediumMax:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}
