// Package service exposes the rewrite, lookup, and review operations of one
// domain. It validates, classifies, rewrites and records. It also logs
// operator context for failures that callers only see generically.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ppiankov/redline/internal/alert"
	"github.com/ppiankov/redline/internal/logger"
	"github.com/ppiankov/redline/internal/metrics"
	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/policy"
	"github.com/ppiankov/redline/internal/requestctx"
	"github.com/ppiankov/redline/internal/review"
	"github.com/ppiankov/redline/internal/rewrite"
	"github.com/ppiankov/redline/internal/risk"
)

// RecordStore is the audit record journal.
type RecordStore interface {
	review.Records
	ListRecent(limit int) ([]model.AuditRecord, error)
	SearchByRisk(level model.RiskLevel) ([]model.AuditRecord, error)
}

// Config wires a Service.
type Config struct {
	Domain   string
	Policies *policy.Store
	Engine   *rewrite.Engine
	Records  RecordStore
	Events   review.Events
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// Alerts receives risky rewrites and review decisions; nil disables.
	Alerts *alert.Dispatcher
	// Clock stamps review actions; defaults to time.Now.
	Clock func() time.Time
}

// Service serves one domain.
type Service struct {
	domain   string
	policies *policy.Store
	engine   *rewrite.Engine
	records  RecordStore
	events   review.Events
	workflow *review.Workflow
	logger   *slog.Logger
	metrics  *metrics.Metrics
	alerts   *alert.Dispatcher
	now      func() time.Time

	closers []func() error
}

// New checks that the domain's policy loads and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Policies == nil || cfg.Records == nil || cfg.Events == nil {
		return nil, errors.New("service: policies, records and events are required")
	}
	p, err := cfg.Policies.Load(cfg.Domain)
	if err != nil {
		return nil, err
	}
	if cfg.Engine == nil {
		cfg.Engine = rewrite.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	log := logger.OrDiscard(cfg.Logger).With("domain", cfg.Domain)

	return &Service{
		domain:   cfg.Domain,
		policies: cfg.Policies,
		engine:   cfg.Engine,
		records:  cfg.Records,
		events:   cfg.Events,
		workflow: review.New(cfg.Records, cfg.Events,
			review.WithClock(cfg.Clock), review.WithMaxLength(p.MaxLength)),
		logger:  log,
		metrics: cfg.Metrics,
		alerts:  cfg.Alerts,
		now:     cfg.Clock,
	}, nil
}

// Domain returns the served domain name.
func (s *Service) Domain() string { return s.domain }

// Policy returns the domain's current policy.
func (s *Service) Policy() (*policy.Policy, error) {
	return s.policies.Load(s.domain)
}

// SubmitRewrite validates, classifies, rewrites and records req. A result is
// only returned once its audit record is durable.
func (s *Service) SubmitRewrite(ctx context.Context, req model.RewriteRequest) (model.RewriteResult, error) {
	start := time.Now()
	requestID := requestctx.RequestID(ctx)

	p, err := s.policies.Load(s.domain)
	if err != nil {
		s.fail(ctx, "rewrite failed", err, "request_id", requestID)
		return model.RewriteResult{}, err
	}

	req, err = rewrite.Validate(req, p)
	if err != nil {
		s.metrics.IncrementRewriteError(s.domain, Kind(err))
		return model.RewriteResult{}, err
	}

	assessment := risk.Classify(req.Email, p)
	res, err := s.engine.Rewrite(ctx, req, p, assessment)
	if err != nil {
		s.fail(ctx, "rewrite failed", err, "request_id", requestID, "risk_level", assessment.RiskLevel)
		return model.RewriteResult{}, err
	}

	rec := model.AuditRecord{
		TraceID:      res.TraceID,
		CreatedAt:    res.CreatedAt,
		ReviewStatus: res.ReviewStatus,
		Domain:       s.domain,
		PolicyHash:   p.Hash,
		Request:      req,
		Response:     res,
	}
	if err := s.records.Append(rec); err != nil {
		s.metrics.IncrementAppendFailure(s.domain, "records")
		s.fail(ctx, "audit append failed", err, "request_id", requestID, "trace_id", res.TraceID)
		return model.RewriteResult{}, err
	}

	mode := "local"
	if s.engine.Delegating() {
		mode = "generator"
	}
	s.metrics.ObserveRewrite(s.domain, string(res.RiskLevel), mode, res.FlaggedPhrases, time.Since(start))
	s.logger.InfoContext(ctx, "rewrite recorded",
		"request_id", requestID,
		"trace_id", res.TraceID,
		"risk_level", res.RiskLevel,
		"flagged", len(res.FlaggedPhrases),
		"disclaimer_added", res.DisclaimerAdded,
		"mode", mode,
	)
	s.alerts.Dispatch(alert.AlertEvent{
		Timestamp:  res.CreatedAt,
		Type:       alert.TypeRewrite,
		TraceID:    res.TraceID,
		Domain:     s.domain,
		RiskLevel:  string(res.RiskLevel),
		Flagged:    res.FlaggedPhrases,
		PolicyHash: p.Hash,
	})
	return res, nil
}

// GetRecord returns the current state of traceID.
func (s *Service) GetRecord(ctx context.Context, traceID string) (model.AuditRecord, error) {
	rec, err := s.records.Get(traceID)
	if err != nil {
		s.logStorage(ctx, err, "trace_id", traceID)
	}
	return rec, err
}

// ListRecords returns up to limit most recent record lines, newest last.
func (s *Service) ListRecords(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	recs, err := s.records.ListRecent(limit)
	if err != nil {
		s.logStorage(ctx, err)
	}
	return recs, err
}

// SearchByRisk returns current records at the given risk level.
func (s *Service) SearchByRisk(ctx context.Context, level string) ([]model.AuditRecord, error) {
	lvl, err := model.ParseRiskLevel(level)
	if err != nil {
		return nil, err
	}
	recs, err := s.records.SearchByRisk(lvl)
	if err != nil {
		s.logStorage(ctx, err)
	}
	return recs, err
}

// Review applies a reviewer action.
func (s *Service) Review(ctx context.Context, a review.Action) (review.Outcome, error) {
	out, err := s.workflow.Apply(ctx, a)
	if err != nil {
		var se *model.StorageError
		if errors.As(err, &se) {
			s.metrics.IncrementAppendFailure(s.domain, journalFor(se))
		}
		s.logStorage(ctx, err, "trace_id", a.TraceID)
		return review.Outcome{}, err
	}

	s.metrics.IncrementReview(s.domain, string(out.ReviewStatus))
	s.logger.InfoContext(ctx, "review recorded",
		"request_id", requestctx.RequestID(ctx),
		"trace_id", out.TraceID,
		"action", out.ReviewStatus,
		"reviewer", a.Reviewer,
	)
	s.alerts.Dispatch(alert.AlertEvent{
		Timestamp: model.FormatTime(s.now()),
		Type:      alert.TypeReview,
		TraceID:   out.TraceID,
		Domain:    s.domain,
		Action:    string(out.ReviewStatus),
		Reviewer:  a.Reviewer,
	})
	return out, nil
}

// ReviewHistory returns the review events of an existing trace.
func (s *Service) ReviewHistory(ctx context.Context, traceID string) ([]model.ReviewEvent, error) {
	events, err := s.workflow.History(traceID)
	if err != nil {
		s.logStorage(ctx, err, "trace_id", traceID)
	}
	return events, err
}

// Reconcile reports traces whose review events lag their record revisions.
func (s *Service) Reconcile(ctx context.Context) ([]review.Gap, error) {
	gaps, err := s.workflow.Reconcile()
	if err != nil {
		s.logStorage(ctx, err)
		return nil, err
	}
	for _, g := range gaps {
		s.logger.WarnContext(ctx, "review events missing", "trace_id", g.TraceID, "reviews", g.Reviews, "events", g.Events)
	}
	return gaps, nil
}

// Close releases stores opened by Open.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Service) fail(ctx context.Context, msg string, err error, attrs ...any) {
	s.metrics.IncrementRewriteError(s.domain, Kind(err))
	attrs = append(attrs, "kind", Kind(err), "error", err.Error())
	s.logger.ErrorContext(ctx, msg, attrs...)
}

func (s *Service) logStorage(ctx context.Context, err error, attrs ...any) {
	var se *model.StorageError
	if !errors.As(err, &se) {
		return
	}
	attrs = append(attrs, "request_id", requestctx.RequestID(ctx), "error", err.Error())
	s.logger.ErrorContext(ctx, "audit storage error", attrs...)
}

func journalFor(se *model.StorageError) string {
	if se.Op == "append review event" || se.Op == "read review events" {
		return "events"
	}
	return "records"
}

// Kind names the error class of err for metrics and logs.
func Kind(err error) string {
	var (
		ce *model.ConfigurationError
		ve *model.ValidationError
		ue *model.UpstreamServiceError
		nf *model.NotFoundError
		se *model.StorageError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &ue):
		return "upstream"
	case errors.As(err, &se):
		return "storage"
	case errors.As(err, &ce):
		return "configuration"
	default:
		return "internal"
	}
}
