package cli

import (
	"context"

	"github.com/ppiankov/redline/internal/alert"
	"github.com/ppiankov/redline/internal/client"
	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/review"
	"github.com/ppiankov/redline/internal/service"
)

// flagServer points record and review commands at a running server
// instead of the local journals.
var flagServer string

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Base URL of a redline server; empty uses local journals")
}

// backend is the subset of operations the CLI drives, served either by a
// local Service or by a remote server.
type backend interface {
	Rewrite(ctx context.Context, req model.RewriteRequest) (model.RewriteResult, error)
	Get(ctx context.Context, traceID string) (model.AuditRecord, error)
	List(ctx context.Context, limit int) ([]model.AuditRecord, error)
	Search(ctx context.Context, level string) ([]model.AuditRecord, error)
	Events(ctx context.Context, traceID string) ([]model.ReviewEvent, error)
	Review(ctx context.Context, a review.Action) (review.Outcome, error)
	Close() error
}

func openBackend() (backend, error) {
	if flagServer != "" {
		c, err := client.New(flagServer, 0, 0)
		if err != nil {
			return nil, err
		}
		return &remoteBackend{c: c, domain: flagDomain}, nil
	}
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	svc, alerts, err := openDomain(log)
	if err != nil {
		return nil, err
	}
	return &localBackend{svc: svc, alerts: alerts}, nil
}

type localBackend struct {
	svc    *service.Service
	alerts *alert.Dispatcher
}

func (b *localBackend) Rewrite(ctx context.Context, req model.RewriteRequest) (model.RewriteResult, error) {
	return b.svc.SubmitRewrite(ctx, req)
}

func (b *localBackend) Get(ctx context.Context, traceID string) (model.AuditRecord, error) {
	return b.svc.GetRecord(ctx, traceID)
}

func (b *localBackend) List(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	return b.svc.ListRecords(ctx, limit)
}

func (b *localBackend) Search(ctx context.Context, level string) ([]model.AuditRecord, error) {
	return b.svc.SearchByRisk(ctx, level)
}

func (b *localBackend) Events(ctx context.Context, traceID string) ([]model.ReviewEvent, error) {
	return b.svc.ReviewHistory(ctx, traceID)
}

func (b *localBackend) Review(ctx context.Context, a review.Action) (review.Outcome, error) {
	return b.svc.Review(ctx, a)
}

// Close waits for pending alerts so a short-lived command still delivers them.
func (b *localBackend) Close() error {
	b.alerts.Wait()
	return b.svc.Close()
}

type remoteBackend struct {
	c      *client.Client
	domain string
}

func (b *remoteBackend) Rewrite(ctx context.Context, req model.RewriteRequest) (model.RewriteResult, error) {
	return b.c.Rewrite(ctx, b.domain, req)
}

func (b *remoteBackend) Get(ctx context.Context, traceID string) (model.AuditRecord, error) {
	return b.c.Get(ctx, b.domain, traceID)
}

func (b *remoteBackend) List(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	return b.c.List(ctx, b.domain, limit)
}

func (b *remoteBackend) Search(ctx context.Context, level string) ([]model.AuditRecord, error) {
	return b.c.Search(ctx, b.domain, level)
}

func (b *remoteBackend) Events(ctx context.Context, traceID string) ([]model.ReviewEvent, error) {
	return b.c.Events(ctx, b.domain, traceID)
}

func (b *remoteBackend) Review(ctx context.Context, a review.Action) (review.Outcome, error) {
	return b.c.Review(ctx, b.domain, a)
}

func (b *remoteBackend) Close() error { return nil }
