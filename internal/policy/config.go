package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxLength bounds request text, in code points, when a policy sets none.
const DefaultMaxLength = 5000

// RiskPhrases holds the tiered phrase lists. Order within a tier is scan order.
type RiskPhrases struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
}

// Disclaimer is the text appended for audiences that require it.
type Disclaimer struct {
	Text              string   `yaml:"text"`
	RequiredAudiences []string `yaml:"required_audiences"`
}

// SofteningRule replaces a literal, whole-word phrase during local rewrites.
type SofteningRule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Policy is the configuration of one domain. A loaded Policy is shared by
// all callers and must be treated as read-only.
type Policy struct {
	Domain      string          `yaml:"domain"`
	Description string          `yaml:"description"`
	RiskPhrases RiskPhrases     `yaml:"risk_phrases"`
	Disclaimer  Disclaimer      `yaml:"disclaimer"`
	Audiences   []string        `yaml:"audiences"`
	MaxLength   int             `yaml:"max_length"`
	Softening   []SofteningRule `yaml:"softening"`

	// Hash is "sha256:<hex>" of the raw YAML the policy was parsed from.
	Hash string `yaml:"-"`
}

// Parse decodes and validates a policy document for domain.
// Phrases and audiences are normalized to lower case; a phrase listed in
// both tiers stays in the high tier only.
func Parse(domain string, data []byte) (*Policy, error) {
	p := &Policy{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if p.Domain == "" {
		p.Domain = domain
	}
	if p.Domain != domain {
		return nil, fmt.Errorf("policy declares domain %q, expected %q", p.Domain, domain)
	}
	if p.MaxLength <= 0 {
		p.MaxLength = DefaultMaxLength
	}

	p.RiskPhrases.High = normalizeList(p.RiskPhrases.High, nil)
	p.RiskPhrases.Medium = normalizeList(p.RiskPhrases.Medium, p.RiskPhrases.High)
	p.Audiences = normalizeList(p.Audiences, nil)
	p.Disclaimer.RequiredAudiences = normalizeList(p.Disclaimer.RequiredAudiences, nil)
	p.Disclaimer.Text = strings.TrimSpace(p.Disclaimer.Text)

	if err := p.validate(); err != nil {
		return nil, err
	}

	h := sha256.Sum256(data)
	p.Hash = "sha256:" + hex.EncodeToString(h[:])
	return p, nil
}

func (p *Policy) validate() error {
	if len(p.RiskPhrases.High)+len(p.RiskPhrases.Medium) == 0 {
		return fmt.Errorf("policy has no risk phrases")
	}
	if p.Disclaimer.Text == "" {
		return fmt.Errorf("policy has no disclaimer text")
	}
	if len(p.Audiences) == 0 {
		return fmt.Errorf("policy lists no audiences")
	}
	for _, a := range p.Disclaimer.RequiredAudiences {
		if !slices.Contains(p.Audiences, a) {
			return fmt.Errorf("disclaimer audience %q is not a recognized audience", a)
		}
	}
	for i, r := range p.Softening {
		if strings.TrimSpace(r.Pattern) == "" {
			return fmt.Errorf("softening[%d]: empty pattern", i)
		}
	}
	return nil
}

// Phrases returns all risk phrases in scan order: high tier first, then medium.
func (p *Policy) Phrases() []string {
	out := make([]string, 0, len(p.RiskPhrases.High)+len(p.RiskPhrases.Medium))
	out = append(out, p.RiskPhrases.High...)
	return append(out, p.RiskPhrases.Medium...)
}

// IsHigh reports whether phrase belongs to the high tier.
func (p *Policy) IsHigh(phrase string) bool {
	return slices.Contains(p.RiskPhrases.High, phrase)
}

// RecognizesAudience reports whether audience (already normalized) is valid.
func (p *Policy) RecognizesAudience(audience string) bool {
	return slices.Contains(p.Audiences, audience)
}

// RequiresDisclaimer reports whether audience must receive the disclaimer.
func (p *Policy) RequiresDisclaimer(audience string) bool {
	return slices.Contains(p.Disclaimer.RequiredAudiences, audience)
}

// normalizeList lower-cases and trims entries, dropping empties, duplicates,
// and anything already present in exclude.
func normalizeList(in, exclude []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || slices.Contains(out, s) || slices.Contains(exclude, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
