// Package review applies reviewer actions to audit records.
//
// Every action is valid from every state: a decided record can be reviewed
// again, which appends a new current state. A review is two durable writes,
// the updated record and then the review event. A crash between them leaves
// a record whose status moved without a matching event; Reconcile reports
// such traces.
package review

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/redline/internal/model"
)

// Records is the audit record store the workflow reads and appends to.
type Records interface {
	Get(traceID string) (model.AuditRecord, error)
	Append(rec model.AuditRecord) error
	Revisions() (map[string]int, error)
}

// Events is the review event store.
type Events interface {
	Append(ev model.ReviewEvent) error
	Events(traceID string) ([]model.ReviewEvent, error)
	Counts() (map[string]int, error)
}

// Action is one reviewer decision.
type Action struct {
	TraceID     string `json:"trace_id"`
	Action      string `json:"action"`
	Reviewer    string `json:"reviewer"`
	Comment     string `json:"comment,omitempty"`
	EditedEmail string `json:"edited_email,omitempty"`
}

// Outcome is returned for an applied action.
type Outcome struct {
	TraceID      string             `json:"trace_id"`
	ReviewStatus model.ReviewStatus `json:"review_status"`
}

// Gap is a trace whose record was re-appended by more reviews than there
// are review events.
type Gap struct {
	TraceID string `json:"trace_id"`
	Reviews int    `json:"reviews"`
	Events  int    `json:"events"`
}

// Workflow applies review actions. Actions are serialized so each one
// builds on the state the previous one appended.
type Workflow struct {
	records   Records
	events    Events
	now       func() time.Time
	maxLength int

	mu sync.Mutex
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithMaxLength bounds edited text, in code points. Zero means unbounded.
func WithMaxLength(n int) Option {
	return func(w *Workflow) { w.maxLength = n }
}

// New creates a Workflow over the given stores.
func New(records Records, events Events, opts ...Option) *Workflow {
	w := &Workflow{records: records, events: events, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Apply validates a and, if the trace exists, records the decision.
// Request shape is checked before the lookup.
func (w *Workflow) Apply(ctx context.Context, a Action) (Outcome, error) {
	status, err := w.validate(&a)
	if err != nil {
		return Outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	rec, err := w.records.Get(a.TraceID)
	if err != nil {
		return Outcome{}, err
	}

	ts := model.FormatTime(w.now())
	rec.ReviewStatus = status
	rec.Response.ReviewStatus = status
	rec.Reviewer = a.Reviewer
	rec.ReviewedAt = ts
	if status == model.StatusEdit {
		rec.Response.RewrittenEmail = a.EditedEmail
	}

	if err := w.records.Append(rec); err != nil {
		return Outcome{}, err
	}
	err = w.events.Append(model.ReviewEvent{
		TraceID:     a.TraceID,
		Action:      status,
		Reviewer:    a.Reviewer,
		Comment:     a.Comment,
		EditedEmail: a.EditedEmail,
		CreatedAt:   ts,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{TraceID: a.TraceID, ReviewStatus: status}, nil
}

func (w *Workflow) validate(a *Action) (model.ReviewStatus, error) {
	a.TraceID = strings.TrimSpace(a.TraceID)
	if a.TraceID == "" {
		return "", &model.ValidationError{Field: "trace_id", Reason: "must not be empty"}
	}
	status, err := model.ParseAction(a.Action)
	if err != nil {
		return "", err
	}
	a.Reviewer = strings.TrimSpace(a.Reviewer)
	if a.Reviewer == "" {
		return "", &model.ValidationError{Field: "reviewer", Reason: "must not be empty"}
	}
	a.Comment = strings.TrimSpace(a.Comment)

	if status == model.StatusEdit && strings.TrimSpace(a.EditedEmail) == "" {
		return "", &model.ValidationError{Field: "edited_email", Reason: "required for edit"}
	}
	if w.maxLength > 0 {
		if n := utf8.RuneCountInString(a.EditedEmail); n > w.maxLength {
			return "", &model.ValidationError{
				Field:  "edited_email",
				Reason: fmt.Sprintf("length %d exceeds maximum %d", n, w.maxLength),
			}
		}
	}
	return status, nil
}

// History returns the review events of an existing trace, oldest first.
func (w *Workflow) History(traceID string) ([]model.ReviewEvent, error) {
	if _, err := w.records.Get(traceID); err != nil {
		return nil, err
	}
	return w.events.Events(traceID)
}

// Reconcile compares record revisions with review events and returns every
// trace with fewer events than reviews, sorted by trace ID.
func (w *Workflow) Reconcile() ([]Gap, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	revisions, err := w.records.Revisions()
	if err != nil {
		return nil, err
	}
	counts, err := w.events.Counts()
	if err != nil {
		return nil, err
	}

	gaps := []Gap{}
	for id, n := range revisions {
		reviews := n - 1
		if counts[id] < reviews {
			gaps = append(gaps, Gap{TraceID: id, Reviews: reviews, Events: counts[id]})
		}
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].TraceID < gaps[j].TraceID })
	return gaps, nil
}
