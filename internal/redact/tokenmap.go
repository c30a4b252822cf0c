package redact

import (
	"slices"
	"strconv"
	"strings"
)

type mapping struct {
	value string
	token string
}

// TokenMap pairs the sensitive values of one message with their
// placeholders. Not safe for concurrent use.
type TokenMap struct {
	entries []mapping
	byValue map[string]int
	byToken map[string]int
	next    map[PatternType]int
}

// NewTokenMap returns an empty map.
func NewTokenMap() *TokenMap {
	return &TokenMap{
		byValue: make(map[string]int),
		byToken: make(map[string]int),
		next:    make(map[PatternType]int),
	}
}

// Token returns the placeholder for value, allocating <<TYPE_N>> on first
// sight. A value keeps its first placeholder whatever typ later callers pass.
func (tm *TokenMap) Token(typ PatternType, value string) string {
	if i, ok := tm.byValue[value]; ok {
		return tm.entries[i].token
	}
	tm.next[typ]++
	tok := "<<" + string(typ) + "_" + strconv.Itoa(tm.next[typ]) + ">>"

	tm.byValue[value] = len(tm.entries)
	tm.byToken[tok] = len(tm.entries)
	tm.entries = append(tm.entries, mapping{value: value, token: tok})
	return tok
}

// Resolve returns the value behind token.
func (tm *TokenMap) Resolve(token string) (string, bool) {
	i, ok := tm.byToken[token]
	if !ok {
		return "", false
	}
	return tm.entries[i].value, true
}

func (tm *TokenMap) tokenFor(value string) string {
	return tm.entries[tm.byValue[value]].token
}

// Len is the number of redacted values.
func (tm *TokenMap) Len() int { return len(tm.entries) }

// Values returns the redacted values longest first, so replacing in this
// order never splits a value that contains another.
func (tm *TokenMap) Values() []string {
	vals := make([]string, len(tm.entries))
	for i, e := range tm.entries {
		vals[i] = e.value
	}
	slices.SortFunc(vals, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return vals
}

// Tokens returns every placeholder, sorted.
func (tm *TokenMap) Tokens() []string {
	toks := make([]string, len(tm.entries))
	for i, e := range tm.entries {
		toks[i] = e.token
	}
	slices.Sort(toks)
	return toks
}
