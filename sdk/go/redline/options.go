package redline

import (
	"context"
	"log/slog"
)

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	domain    string
	auditDir  string
	policyDir string
	index     bool
	logger    *slog.Logger
	generator GenerateFunc
}

// GenerateFunc produces rewritten text for a message. It replaces the local
// softening rules; the result is still re-scanned and gets the disclaimer.
type GenerateFunc func(ctx context.Context, text, audience string) (string, error)

// WithDomain sets the policy domain (default "banking").
func WithDomain(domain string) Option {
	return func(c *clientConfig) { c.domain = domain }
}

// WithAuditDir sets the directory holding the audit journals.
func WithAuditDir(dir string) Option {
	return func(c *clientConfig) { c.auditDir = dir }
}

// WithPolicyDir sets a directory of policy YAML files that override the
// built-in policies.
func WithPolicyDir(dir string) Option {
	return func(c *clientConfig) { c.policyDir = dir }
}

// WithIndex keeps a SQLite lookup index next to the record journal.
func WithIndex() Option {
	return func(c *clientConfig) { c.index = true }
}

// WithLogger sets the structured logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithGenerator delegates rewriting to fn.
func WithGenerator(fn GenerateFunc) Option {
	return func(c *clientConfig) { c.generator = fn }
}

// WrapOption configures a single Wrap call.
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	audience string
	block    RiskLevel
}

// WrapWithAudience sets the audience for messages that name none.
func WrapWithAudience(audience string) WrapOption {
	return func(w *wrapConfig) { w.audience = audience }
}

// BlockAtOrAbove refuses to send messages whose original text is
// classified at level or higher. The rewrite is still recorded.
func BlockAtOrAbove(level RiskLevel) WrapOption {
	return func(w *wrapConfig) { w.block = level }
}
