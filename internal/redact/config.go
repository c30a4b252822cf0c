package redact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the operator's redaction file:
//
//	literals: [Acme Holdings]
//	safe: [support@bank.example]
//	extra_patterns:
//	  - name: client_ref
//	    regex: 'CR-\d{6}'
type Config struct {
	ExtraPatterns []ExtraPatternDef `yaml:"extra_patterns"`
	// Literals are always redacted, such as client or product names.
	Literals []string `yaml:"literals"`
	// Safe values are never redacted, such as a public support address.
	Safe []string `yaml:"safe"`
}

// ExtraPatternDef is one operator pattern. Name becomes the placeholder
// prefix, upper-cased.
type ExtraPatternDef struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

// ExtraPattern is a compiled ExtraPatternDef.
type ExtraPattern struct {
	Name        string
	Regex       *regexp.Regexp
	TokenPrefix PatternType
}

var patternName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// LoadConfig reads path. An empty path means no customization and returns
// nil; a named file that is missing is an error. Unknown keys are rejected
// so a misspelled section does not silently disable redaction.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("redact config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("redact config %s: %w", path, err)
	}

	cfg.Literals = trimAll(cfg.Literals)
	cfg.Safe = trimAll(cfg.Safe)
	return &cfg, nil
}

// CompilePatterns compiles cfg's extra patterns. Names must be identifiers
// and must not reuse a built-in placeholder prefix.
func CompilePatterns(cfg *Config) ([]ExtraPattern, error) {
	if cfg == nil {
		return nil, nil
	}

	patterns := make([]ExtraPattern, 0, len(cfg.ExtraPatterns))
	for i, def := range cfg.ExtraPatterns {
		if !patternName.MatchString(def.Name) {
			return nil, fmt.Errorf("extra_patterns[%d]: name %q must be a letter followed by letters, digits or _", i, def.Name)
		}
		prefix := PatternType(strings.ToUpper(def.Name))
		if isBuiltin(prefix) {
			return nil, fmt.Errorf("extra_patterns[%d]: name %q is reserved", i, def.Name)
		}
		if def.Regex == "" {
			return nil, fmt.Errorf("extra_patterns[%d] %s: regex is required", i, def.Name)
		}
		re, err := regexp.Compile(def.Regex)
		if err != nil {
			return nil, fmt.Errorf("extra_patterns[%d] %s: %w", i, def.Name, err)
		}
		patterns = append(patterns, ExtraPattern{Name: def.Name, Regex: re, TokenPrefix: prefix})
	}
	return patterns, nil
}

func isBuiltin(t PatternType) bool {
	switch t {
	case PatternEmail, PatternIBAN, PatternCard, PatternAccount, PatternPhone, PatternLiteral:
		return true
	}
	return false
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
