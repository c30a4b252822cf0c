package redline

import (
	"context"
	"fmt"

	"github.com/ppiankov/redline/internal/generate"
	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/policy"
	"github.com/ppiankov/redline/internal/review"
	"github.com/ppiankov/redline/internal/rewrite"
	"github.com/ppiankov/redline/internal/risk"
	"github.com/ppiankov/redline/internal/service"
)

// Client rewrites and records messages for one domain.
// Safe for concurrent use.
type Client struct {
	cfg      clientConfig
	policies *policy.Store
	svc      *service.Service
}

// New opens the domain's journals with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{
		domain:   "banking",
		auditDir: "audit",
	}
	for _, o := range opts {
		o(&cfg)
	}

	var engineOpts []rewrite.Option
	if cfg.generator != nil {
		fn := cfg.generator
		engineOpts = append(engineOpts, rewrite.WithGenerator(generate.Func(
			func(ctx context.Context, text, audience string) (generate.Output, error) {
				out, err := fn(ctx, text, audience)
				if err != nil {
					return generate.Output{}, err
				}
				return generate.Succeeded(out), nil
			})))
	}

	policies := policy.NewStore(cfg.policyDir)
	svc, err := service.Open(cfg.domain, service.Options{
		AuditDir: cfg.auditDir,
		Index:    cfg.index,
		Policies: policies,
		Engine:   rewrite.New(engineOpts...),
		Logger:   cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("redline: %w", err)
	}
	return &Client{cfg: cfg, policies: policies, svc: svc}, nil
}

// Check classifies text without rewriting or recording it.
func (c *Client) Check(text string) (Assessment, error) {
	p, err := c.policies.Load(c.cfg.domain)
	if err != nil {
		return Assessment{}, err
	}
	a := risk.Classify(text, p)
	return Assessment{Risk: RiskLevel(a.RiskLevel), Flagged: a.FlaggedPhrases}, nil
}

// Rewrite rewrites msg and records it. Errors are the typed errors of
// internal/model and can be matched with errors.As.
func (c *Client) Rewrite(ctx context.Context, msg Message) (Result, error) {
	res, err := c.svc.SubmitRewrite(ctx, model.RewriteRequest{
		Email:    msg.Body,
		Audience: msg.Audience,
		Language: msg.Language,
	})
	if err != nil {
		return Result{}, err
	}
	return toResult(res), nil
}

// Approve marks a trace approved.
func (c *Client) Approve(ctx context.Context, traceID, reviewer, comment string) error {
	return c.review(ctx, review.Action{TraceID: traceID, Action: "approve", Reviewer: reviewer, Comment: comment})
}

// Reject marks a trace rejected.
func (c *Client) Reject(ctx context.Context, traceID, reviewer, comment string) error {
	return c.review(ctx, review.Action{TraceID: traceID, Action: "reject", Reviewer: reviewer, Comment: comment})
}

// Edit replaces the rewritten text of a trace.
func (c *Client) Edit(ctx context.Context, traceID, reviewer, text, comment string) error {
	return c.review(ctx, review.Action{TraceID: traceID, Action: "edit", Reviewer: reviewer, Comment: comment, EditedEmail: text})
}

func (c *Client) review(ctx context.Context, a review.Action) error {
	_, err := c.svc.Review(ctx, a)
	return err
}

// Status returns the current review status of a trace.
func (c *Client) Status(ctx context.Context, traceID string) (string, error) {
	rec, err := c.svc.GetRecord(ctx, traceID)
	if err != nil {
		return "", err
	}
	return string(rec.ReviewStatus), nil
}

// Close releases the journals.
func (c *Client) Close() error {
	return c.svc.Close()
}
