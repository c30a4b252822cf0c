// Package rewrite turns a classified request into a compliant rewrite:
// base rewrite (model or local softening), one bounded softening retry,
// disclaimer injection, and a deterministic rationale.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ppiankov/redline/internal/generate"
	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/policy"
	"github.com/ppiankov/redline/internal/risk"
)

// Engine produces RewriteResults. It is safe for concurrent use.
type Engine struct {
	gen   generate.Generator
	now   func() time.Time
	newID func() string

	mu        sync.Mutex
	softeners map[string]*softener
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator delegates the base rewrite to g instead of local softening.
func WithGenerator(g generate.Generator) Option {
	return func(e *Engine) { e.gen = g }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides trace ID generation.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates an Engine. Without WithGenerator it rewrites locally.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:       time.Now,
		newID:     uuid.NewString,
		softeners: make(map[string]*softener),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Delegating reports whether base rewrites go to a generator.
func (e *Engine) Delegating() bool { return e.gen != nil }

// Validate checks req against p and returns it normalized: audience lower
// case, language defaulted. It runs before any classification.
func Validate(req model.RewriteRequest, p *policy.Policy) (model.RewriteRequest, error) {
	if strings.TrimSpace(req.Email) == "" {
		return req, &model.ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(req.Email); n > p.MaxLength {
		return req, &model.ValidationError{
			Field:  "email",
			Reason: fmt.Sprintf("length %d exceeds maximum %d", n, p.MaxLength),
		}
	}

	req.Audience = strings.ToLower(strings.TrimSpace(req.Audience))
	if !p.RecognizesAudience(req.Audience) {
		return req, &model.ValidationError{
			Field:  "audience",
			Reason: fmt.Sprintf("%q is not one of %s", req.Audience, strings.Join(p.Audiences, ", ")),
		}
	}

	req.Language = strings.TrimSpace(req.Language)
	if req.Language == "" {
		req.Language = model.DefaultLanguage
	}
	return req, nil
}

// Rewrite produces the result for req. The assessment is the classifier
// output for the original text and is reported as-is.
func (e *Engine) Rewrite(ctx context.Context, req model.RewriteRequest, p *policy.Policy, assessment model.RiskAssessment) (model.RewriteResult, error) {
	req, err := Validate(req, p)
	if err != nil {
		return model.RewriteResult{}, err
	}
	s := e.softener(p)

	text, err := e.base(ctx, req, s)
	if err != nil {
		return model.RewriteResult{}, err
	}

	// One retry only.
	residual := risk.Scan(s.body(text), p)
	if len(residual) > 0 {
		text = s.soften(text)
		residual = risk.Scan(s.body(text), p)
	}

	added := p.RequiresDisclaimer(req.Audience)
	if added && !strings.Contains(text, p.Disclaimer.Text) {
		text += "\n\n" + p.Disclaimer.Text
	}

	flagged := assessment.FlaggedPhrases
	if flagged == nil {
		flagged = []string{}
	}

	return model.RewriteResult{
		RewrittenEmail:  text,
		RiskLevel:       assessment.RiskLevel,
		FlaggedPhrases:  flagged,
		DisclaimerAdded: added,
		Rationale:       Rationale(len(flagged), assessment.RiskLevel, added, req.Audience, residual),
		TraceID:         e.newID(),
		CreatedAt:       model.FormatTime(e.now()),
		ReviewStatus:    model.StatusPending,
	}, nil
}

func (e *Engine) base(ctx context.Context, req model.RewriteRequest, s *softener) (string, error) {
	if e.gen == nil {
		return s.soften(req.Email), nil
	}

	out, err := e.gen.Generate(ctx, req.Email, req.Audience)
	if err != nil {
		var ue *model.UpstreamServiceError
		if errors.As(err, &ue) {
			return "", err
		}
		return "", &model.UpstreamServiceError{Op: "generate", Err: err}
	}
	if out.Kind != generate.Success {
		return "", &model.UpstreamServiceError{Op: "generate", Err: fmt.Errorf("%w: %q", generate.ErrMalformed, preview(out.Raw))}
	}
	return strings.TrimSpace(out.RewrittenEmail), nil
}

func (e *Engine) softener(p *policy.Policy) *softener {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := p.Domain + "@" + p.Hash
	s, ok := e.softeners[key]
	if !ok {
		s = newSoftener(p)
		e.softeners[key] = s
	}
	return s
}

// Rationale renders the human-readable summary stored with each result.
func Rationale(count int, level model.RiskLevel, disclaimerAdded bool, audience string, residual []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Detected %d risky phrase(s). Risk classified as %s.", count, level)
	if disclaimerAdded {
		b.WriteString(" Added disclaimer.")
	} else {
		fmt.Fprintf(&b, " No disclaimer required for %s audience.", audience)
	}
	if len(residual) > 0 {
		fmt.Fprintf(&b, " Residual risk language remains after retry: %s.", strings.Join(residual, ", "))
	}
	return b.String()
}

func preview(s string) string {
	if len(s) <= 120 {
		return s
	}
	return s[:120] + "..."
}
