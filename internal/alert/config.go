// Package alert posts compliance events to webhooks: risky rewrites
// and review decisions.
package alert

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AlertConfig defines a webhook endpoint and which events trigger it.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["high", "medium", "reject", "edit"]
	Domains []string          `yaml:"domains" json:"domains"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event types.
const (
	TypeRewrite = "rewrite"
	TypeReview  = "review"
)

// AlertEvent is the payload sent to webhook endpoints. It never carries
// message text.
type AlertEvent struct {
	Timestamp  string   `json:"timestamp"`
	Type       string   `json:"type"`
	TraceID    string   `json:"trace_id"`
	Domain     string   `json:"domain"`
	RiskLevel  string   `json:"risk_level,omitempty"`
	Flagged    []string `json:"flagged_phrases,omitempty"`
	Action     string   `json:"action,omitempty"`
	Reviewer   string   `json:"reviewer,omitempty"`
	PolicyHash string   `json:"policy_hash,omitempty"`
}

// LoadConfigs reads a YAML list of webhook configurations.
func LoadConfigs(path string) ([]AlertConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alerts file: %w", err)
	}
	var doc struct {
		Alerts []AlertConfig `yaml:"alerts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse alerts file: %w", err)
	}
	for i, c := range doc.Alerts {
		if c.URL == "" {
			return nil, fmt.Errorf("alerts[%d]: url is required", i)
		}
		if len(c.Events) == 0 {
			return nil, fmt.Errorf("alerts[%d]: no events listed", i)
		}
		switch c.Format {
		case "", "generic", "slack", "pagerduty":
		default:
			return nil, fmt.Errorf("alerts[%d]: unknown format %q", i, c.Format)
		}
	}
	return doc.Alerts, nil
}
