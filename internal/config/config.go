// Package config holds process configuration: defaults overlaid with
// REDLINE_* environment variables. CLI flags override both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the composition root needs.
type Config struct {
	Addr      string
	AuditDir  string
	PolicyDir string
	// Domains served; empty means every available policy.
	Domains []string

	LLM LLM

	LogLevel  string
	LogFormat string

	// Index enables the SQLite sidecar index per domain.
	Index bool

	// AlertsFile is a YAML list of compliance webhooks; empty disables alerts.
	AlertsFile string

	// RedactFile adds literals, safe values and patterns to PII redaction.
	RedactFile string
}

// LLM configures the optional text-generation collaborator. An empty URL
// means rewrites are done locally.
type LLM struct {
	URL            string
	Key            string
	Model          string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// Redact is "always", "never" or "" (redact only for non-local URLs).
	Redact string
}

// Enabled reports whether a generator endpoint is configured.
func (l LLM) Enabled() bool { return l.URL != "" }

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Addr:      ":8080",
		AuditDir:  "audit",
		LogLevel:  "info",
		LogFormat: "text",
		LLM: LLM{
			Model:          "gpt-4o-mini",
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    30 * time.Second,
		},
	}
}

// FromEnv overlays REDLINE_* environment variables on Defaults.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("REDLINE_ADDR", &cfg.Addr)
	str("REDLINE_AUDIT_DIR", &cfg.AuditDir)
	str("REDLINE_POLICY_DIR", &cfg.PolicyDir)
	str("REDLINE_LLM_URL", &cfg.LLM.URL)
	str("REDLINE_LLM_KEY", &cfg.LLM.Key)
	str("REDLINE_LLM_MODEL", &cfg.LLM.Model)
	str("REDLINE_LOG_LEVEL", &cfg.LogLevel)
	str("REDLINE_LOG_FORMAT", &cfg.LogFormat)
	str("REDLINE_ALERTS_FILE", &cfg.AlertsFile)
	str("REDLINE_REDACT_FILE", &cfg.RedactFile)
	str("REDLINE_LLM_REDACT", &cfg.LLM.Redact)

	switch cfg.LLM.Redact {
	case "", "always", "never":
	default:
		return cfg, fmt.Errorf("REDLINE_LLM_REDACT: want always or never, got %q", cfg.LLM.Redact)
	}

	if v, ok := lookup("REDLINE_DOMAINS"); ok {
		cfg.Domains = SplitList(v)
	}
	if v, ok := lookup("REDLINE_INDEX"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("REDLINE_INDEX: %w", err)
		}
		cfg.Index = b
	}
	for key, dst := range map[string]*time.Duration{
		"REDLINE_LLM_CONNECT_TIMEOUT": &cfg.LLM.ConnectTimeout,
		"REDLINE_LLM_READ_TIMEOUT":    &cfg.LLM.ReadTimeout,
	} {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return cfg, fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return cfg, nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
