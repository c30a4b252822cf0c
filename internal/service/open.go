package service

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/ppiankov/redline/internal/alert"
	"github.com/ppiankov/redline/internal/audit"
	"github.com/ppiankov/redline/internal/metrics"
	"github.com/ppiankov/redline/internal/policy"
	"github.com/ppiankov/redline/internal/rewrite"
)

// Options are shared by every domain opened with Open.
type Options struct {
	AuditDir string
	// Index attaches a SQLite sidecar index to each record journal.
	Index    bool
	Policies *policy.Store
	Engine   *rewrite.Engine
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Alerts   *alert.Dispatcher
}

// Paths returns the record journal, event journal and index paths of domain.
func Paths(auditDir, domain string) (records, events, index string) {
	return filepath.Join(auditDir, domain+"_rewrites.jsonl"),
		filepath.Join(auditDir, domain+"_review_events.jsonl"),
		filepath.Join(auditDir, domain+"_index.db")
}

// Open opens the journals of domain under o.AuditDir and returns a Service
// that owns them.
func Open(domain string, o Options) (*Service, error) {
	// Fail on a missing policy before creating any files.
	if _, err := o.Policies.Load(domain); err != nil {
		return nil, err
	}

	recordsPath, eventsPath, indexPath := Paths(o.AuditDir, domain)

	var opts []audit.Option
	if o.Logger != nil {
		opts = append(opts, audit.WithLogger(o.Logger))
	}
	if o.Index {
		x, err := audit.OpenIndex(indexPath)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", domain, err)
		}
		opts = append(opts, audit.WithIndex(x))
	}

	records, err := audit.Open(recordsPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", domain, err)
	}
	events, err := audit.OpenEvents(eventsPath)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("service %s: %w", domain, err)
	}

	svc, err := New(Config{
		Domain:   domain,
		Policies: o.Policies,
		Engine:   o.Engine,
		Records:  records,
		Events:   events,
		Logger:   o.Logger,
		Metrics:  o.Metrics,
		Alerts:   o.Alerts,
	})
	if err != nil {
		records.Close()
		events.Close()
		return nil, err
	}
	svc.closers = []func() error{records.Close, events.Close}
	return svc, nil
}

// Registry holds the services of every served domain.
type Registry struct {
	services map[string]*Service
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*Service)}
}

// OpenAll opens every domain and returns them in a Registry. On failure the
// domains opened so far are closed.
func OpenAll(domains []string, o Options) (*Registry, error) {
	r := NewRegistry()
	for _, d := range domains {
		svc, err := Open(d, o)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Add(svc)
	}
	return r, nil
}

// Add registers svc under its domain, replacing any previous one.
func (r *Registry) Add(svc *Service) {
	r.services[svc.Domain()] = svc
}

// Get returns the service for domain.
func (r *Registry) Get(domain string) (*Service, bool) {
	svc, ok := r.services[domain]
	return svc, ok
}

// Domains returns the served domain names, sorted.
func (r *Registry) Domains() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every service.
func (r *Registry) Close() error {
	var first error
	for _, svc := range r.services {
		if err := svc.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
