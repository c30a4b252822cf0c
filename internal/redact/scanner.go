// Package redact replaces personal and account data in message text with
// stable tokens before the text leaves the process, and restores them in
// the reply.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// PatternType identifies the category of sensitive data.
type PatternType string

const (
	PatternEmail   PatternType = "EMAIL"
	PatternIBAN    PatternType = "IBAN"
	PatternCard    PatternType = "CARD"
	PatternAccount PatternType = "ACCOUNT"
	PatternPhone   PatternType = "PHONE"
	PatternLiteral PatternType = "NAME"
)

// Match is a single occurrence of sensitive data in text.
type Match struct {
	Type  PatternType
	Value string
	Start int
	End   int
}

// Compiled patterns, applied in this order. A span claimed by an earlier
// pattern is not matched again by a later one.
var (
	emailRe = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)

	// IBAN: country code, check digits, then 11-30 alphanumerics, spaces allowed in groups of four.
	ibanRe = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,4})?\b`)

	// Card numbers: 13-19 digits, optionally grouped by spaces or dashes.
	cardRe = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)

	// Account numbers: a bare run of 8-12 digits.
	accountRe = regexp.MustCompile(`\b\d{8,12}\b`)

	// Phone numbers: optional +country, then 7+ digits with separators.
	phoneRe = regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?(?:\(\d{2,4}\)[ .-]?)?\d{2,4}[ .-]\d{2,4}[ .-]\d{2,4}\b`)
)

var builtin = []struct {
	typ   PatternType
	re    *regexp.Regexp
	valid func(string) bool
}{
	{PatternEmail, emailRe, nil},
	{PatternIBAN, ibanRe, nil},
	{PatternCard, cardRe, luhn},
	{PatternAccount, accountRe, nil},
	{PatternPhone, phoneRe, plausiblePhone},
}

// Scan finds built-in sensitive patterns in text and returns deduplicated
// matches sorted by position (earliest first).
func Scan(text string) []Match {
	return ScanWithConfig(text, nil, nil)
}

// ScanWithConfig is Scan plus cfg's literals and extra patterns. Values on
// cfg's safe list are never matched.
func ScanWithConfig(text string, cfg *Config, extra []ExtraPattern) []Match {
	var s scan
	s.text = text
	if cfg != nil {
		s.safe = make(map[string]bool, len(cfg.Safe))
		for _, v := range cfg.Safe {
			s.safe[v] = true
		}
		for _, lit := range cfg.Literals {
			if lit == "" {
				continue
			}
			for off := 0; ; {
				i := strings.Index(text[off:], lit)
				if i < 0 {
					break
				}
				s.add(PatternLiteral, off+i, off+i+len(lit))
				off += i + len(lit)
			}
		}
	}
	for _, p := range extra {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			s.add(p.TokenPrefix, loc[0], loc[1])
		}
	}
	for _, b := range builtin {
		for _, loc := range b.re.FindAllStringIndex(text, -1) {
			if b.valid != nil && !b.valid(text[loc[0]:loc[1]]) {
				continue
			}
			s.add(b.typ, loc[0], loc[1])
		}
	}

	sort.Slice(s.matches, func(i, j int) bool {
		return s.matches[i].Start < s.matches[j].Start
	})
	return s.matches
}

type scan struct {
	text    string
	safe    map[string]bool
	seen    map[string]bool
	claimed [][2]int
	matches []Match
}

func (s *scan) add(typ PatternType, start, end int) {
	value := strings.TrimRight(s.text[start:end], " .,;:-")
	end = start + len(value)
	if strings.TrimSpace(value) == "" || s.safe[value] {
		return
	}
	for _, c := range s.claimed {
		if start < c[1] && end > c[0] {
			return
		}
	}
	s.claimed = append(s.claimed, [2]int{start, end})
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[value] {
		// Same value elsewhere in the text shares the first token.
		return
	}
	s.seen[value] = true
	s.matches = append(s.matches, Match{Type: typ, Value: value, Start: start, End: end})
}

// plausiblePhone keeps dates and times out (too few digits) and grouped
// reference numbers out (too many without a country code).
func plausiblePhone(v string) bool {
	n := countDigits(v)
	if strings.HasPrefix(v, "+") {
		return n >= 9 && n <= 15
	}
	return n >= 9 && n <= 11
}

func countDigits(s string) int {
	n := 0
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}

// luhn reports whether the digits of s pass the card checksum.
func luhn(s string) bool {
	sum, n := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if n%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		n++
	}
	return n >= 13 && sum%10 == 0
}
