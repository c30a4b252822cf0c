package redact

import "strings"

// Redact replaces every sensitive value in text with its placeholder,
// allocating placeholders in tm.
func Redact(text string, tm *TokenMap) string {
	return RedactWithConfig(text, tm, nil, nil)
}

// RedactWithConfig is Redact with cfg's literals and safe list and the
// compiled extra patterns. Replacement is a single pass that prefers the
// longest value at each position.
func RedactWithConfig(text string, tm *TokenMap, cfg *Config, extra []ExtraPattern) string {
	matches := ScanWithConfig(text, cfg, extra)
	if len(matches) == 0 {
		return text
	}
	for _, m := range matches {
		tm.Token(m.Type, m.Value)
	}

	vals := tm.Values()
	pairs := make([]string, 0, 2*len(vals))
	for _, v := range vals {
		pairs = append(pairs, v, tm.tokenFor(v))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Detoken puts the original values back in place of placeholders.
func Detoken(text string, tm *TokenMap) string {
	if tm.Len() == 0 {
		return text
	}
	pairs := make([]string, 0, 2*tm.Len())
	for _, e := range tm.entries {
		pairs = append(pairs, e.token, e.value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// CheckLeaks lists redacted values that appear verbatim in response. The
// generator never saw them, so any hit means the reply cannot be trusted.
func CheckLeaks(response string, tm *TokenMap) []string {
	var leaks []string
	for _, v := range tm.Values() {
		if strings.Contains(response, v) {
			leaks = append(leaks, v)
		}
	}
	return leaks
}

// MissingTokens lists placeholders the response dropped.
func MissingTokens(response string, tm *TokenMap) []string {
	var missing []string
	for _, tok := range tm.Tokens() {
		if !strings.Contains(response, tok) {
			missing = append(missing, tok)
		}
	}
	return missing
}
