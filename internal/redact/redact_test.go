package redact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFindsBuiltinPatterns(t *testing.T) {
	text := "Contact jane.doe@bank.example or +44 20 7946 0958. " +
		"IBAN GB82 WEST 1234 5698 7654 32, card 4111 1111 1111 1111, account 12345678."

	matches := Scan(text)
	got := map[PatternType]string{}
	for _, m := range matches {
		got[m.Type] = m.Value
		assert.Equal(t, m.Value, text[m.Start:m.End])
	}

	assert.Equal(t, "jane.doe@bank.example", got[PatternEmail])
	assert.Equal(t, "+44 20 7946 0958", got[PatternPhone])
	assert.Equal(t, "GB82 WEST 1234 5698 7654 32", got[PatternIBAN])
	assert.Equal(t, "4111 1111 1111 1111", got[PatternCard])
	assert.Equal(t, "12345678", got[PatternAccount])

	for i := 1; i < len(matches); i++ {
		assert.Less(t, matches[i-1].Start, matches[i].Start, "sorted by position")
	}
}

func TestScanSkipsLookalikes(t *testing.T) {
	tests := []string{
		"Meeting on 2024-05-01 at 10:30.",
		"Reference 4111 1111 1111 1112 fails the checksum.",
		"Returns of 7.5% over 3 years.",
	}
	for _, text := range tests {
		assert.Empty(t, Scan(text), text)
	}
}

func TestRedactRoundTrip(t *testing.T) {
	text := "Send it to ops@bank.example, cc ops@bank.example, account 987654321."
	tm := NewTokenMap()

	redacted := Redact(text, tm)
	assert.Equal(t, "Send it to <<EMAIL_1>>, cc <<EMAIL_1>>, account <<ACCOUNT_1>>.", redacted)
	assert.Equal(t, 2, tm.Len())
	assert.Empty(t, CheckLeaks(redacted, tm))
	assert.Equal(t, text, Detoken(redacted, tm))
}

func TestRedactNoMatchesIsIdentity(t *testing.T) {
	tm := NewTokenMap()
	assert.Equal(t, "Guaranteed returns.", Redact("Guaranteed returns.", tm))
	assert.Zero(t, tm.Len())
}

func TestTokenIsIdempotentAndCountsPerType(t *testing.T) {
	tm := NewTokenMap()
	assert.Equal(t, "<<EMAIL_1>>", tm.Token(PatternEmail, "a@b.example"))
	assert.Equal(t, "<<EMAIL_2>>", tm.Token(PatternEmail, "c@d.example"))
	assert.Equal(t, "<<EMAIL_1>>", tm.Token(PatternEmail, "a@b.example"))
	assert.Equal(t, "<<PHONE_1>>", tm.Token(PatternPhone, "555 123 4567"))

	v, ok := tm.Resolve("<<EMAIL_2>>")
	assert.True(t, ok)
	assert.Equal(t, "c@d.example", v)
	assert.Equal(t, []string{"<<EMAIL_1>>", "<<EMAIL_2>>", "<<PHONE_1>>"}, tm.Tokens())
}

func TestCheckLeaksAndMissingTokens(t *testing.T) {
	tm := NewTokenMap()
	Redact("Email x@y.example about 123456789.", tm)

	assert.Equal(t, []string{"x@y.example"}, CheckLeaks("We wrote to x@y.example.", tm))
	assert.Equal(t, []string{"<<ACCOUNT_1>>"}, MissingTokens("Reply to <<EMAIL_1>>.", tm))
}

func TestConfigLiteralsSafeAndExtra(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redact.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
literals: [Acme Holdings]
safe: [support@bank.example]
extra_patterns:
  - name: client_ref
    regex: 'CR-\d{6}'
`), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	extra, err := CompilePatterns(cfg)
	require.NoError(t, err)

	tm := NewTokenMap()
	out := RedactWithConfig("Acme Holdings (CR-123456) may write to support@bank.example.", tm, cfg, extra)
	assert.Equal(t, "<<NAME_1>> (<<CLIENT_REF_1>>) may write to support@bank.example.", out)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redact.yaml")
	require.NoError(t, os.WriteFile(path, []byte("literal: [Acme]\n"), 0600))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "literal")
}

func TestCompilePatternsRejectsInvalid(t *testing.T) {
	for _, def := range []ExtraPatternDef{
		{Regex: `x`},
		{Name: "x"},
		{Name: "x", Regex: `(`},
		{Name: "email", Regex: `x`},
		{Name: "client ref", Regex: `x`},
	} {
		_, err := CompilePatterns(&Config{ExtraPatterns: []ExtraPatternDef{def}})
		assert.Error(t, err)
	}
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		url, override string
		want          Mode
	}{
		{"http://localhost:11434/v1/chat/completions", "", ModeLocal},
		{"http://127.0.0.1:8000", "", ModeLocal},
		{"https://api.openai.com/v1/chat/completions", "", ModeCloud},
		{"http://localhost:11434", "always", ModeCloud},
		{"https://api.example.com", " NEVER ", ModeLocal},
		{"http://[::1]:8080/v1", "", ModeLocal},
		{"https://localhost.attacker.example/v1", "", ModeCloud},
		{"not a url", "", ModeCloud},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveMode(tt.url, tt.override), tt.url)
	}
}

func FuzzRedactRoundTrip(f *testing.F) {
	f.Add("Call +1 415 555 0100 or mail a@b.example")
	f.Add("IBAN DE89 3704 0044 0532 0130 00")
	f.Add("plain text")
	f.Fuzz(func(t *testing.T, text string) {
		if strings.Contains(text, "<<") {
			return
		}
		tm := NewTokenMap()
		redacted := Redact(text, tm)
		if got := Detoken(redacted, tm); got != text {
			t.Fatalf("round trip changed text:\n in: %q\nout: %q", text, got)
		}
	})
}
