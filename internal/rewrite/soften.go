package rewrite

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/redline/internal/policy"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// defaultRules apply to every domain, after any policy-specific rules.
var defaultRules = []rule{
	{regexp.MustCompile(`(?i)\bwill\b`), "may"},
	{regexp.MustCompile(`(?i)\bguaranteed\b`), "potential"},
	{regexp.MustCompile(`(?i)\brisk[- ]free\b`), "lower-risk"},
	{regexp.MustCompile(`(?i)\byou should\b`), "you may wish to"},
	{regexp.MustCompile(`(?i)\bi recommend\b`), "it may be appropriate to consider"},
}

// softener rewrites risk-bearing wording for one policy.
type softener struct {
	rules      []rule
	disclaimer string
}

func newSoftener(p *policy.Policy) *softener {
	rules := make([]rule, 0, len(p.Softening)+len(defaultRules))
	for _, r := range p.Softening {
		rules = append(rules, rule{re: literalRule(r.Pattern), replacement: r.Replacement})
	}
	return &softener{
		rules:      append(rules, defaultRules...),
		disclaimer: p.Disclaimer.Text,
	}
}

// literalRule matches pattern case-insensitively as a whole phrase. Word
// boundaries are only asserted next to word characters, so patterns such
// as "100% safe" still match.
func literalRule(pattern string) *regexp.Regexp {
	pattern = strings.TrimSpace(pattern)
	expr := regexp.QuoteMeta(pattern)
	if first, _ := utf8.DecodeRuneInString(pattern); isWord(first) {
		expr = `\b` + expr
	}
	if last, _ := utf8.DecodeLastRuneInString(pattern); isWord(last) {
		expr += `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// soften applies every rule once, in order. Copies of the disclaimer
// already present in text are left exactly as they are.
func (s *softener) soften(text string) string {
	parts := s.split(text)
	for i, part := range parts {
		for _, r := range s.rules {
			part = r.re.ReplaceAllLiteralString(part, r.replacement)
		}
		parts[i] = part
	}
	return strings.TrimSpace(strings.Join(parts, s.disclaimer))
}

// body returns text with any disclaimer copies removed.
func (s *softener) body(text string) string {
	return strings.Join(s.split(text), " ")
}

func (s *softener) split(text string) []string {
	if s.disclaimer == "" {
		return []string{text}
	}
	return strings.Split(text, s.disclaimer)
}
