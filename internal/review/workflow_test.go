package review

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/redline/internal/audit"
	"github.com/ppiankov/redline/internal/model"
)

var reviewTime = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type stores struct {
	records *audit.Log
	events  *audit.EventLog
}

func newStores(t *testing.T) stores {
	t.Helper()
	dir := t.TempDir()
	records, err := audit.Open(filepath.Join(dir, "banking_rewrites.jsonl"))
	require.NoError(t, err)
	events, err := audit.OpenEvents(filepath.Join(dir, "banking_review_events.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = records.Close()
		_ = events.Close()
	})
	return stores{records: records, events: events}
}

func seed(t *testing.T, s stores, id string) model.AuditRecord {
	t.Helper()
	rec := model.AuditRecord{
		TraceID:      id,
		CreatedAt:    "2026-03-01T10:00:00.000Z",
		ReviewStatus: model.StatusPending,
		Domain:       "banking",
		Request:      model.RewriteRequest{Email: "This is risk-free.", Audience: "client", Language: "en"},
		Response: model.RewriteResult{
			RewrittenEmail: "This is lower-risk.",
			RiskLevel:      model.RiskMedium,
			FlaggedPhrases: []string{"risk-free"},
			TraceID:        id,
			ReviewStatus:   model.StatusPending,
		},
	}
	require.NoError(t, s.records.Append(rec))
	return rec
}

func newWorkflow(s stores, opts ...Option) *Workflow {
	return New(s.records, s.events, append([]Option{WithClock(func() time.Time { return reviewTime })}, opts...)...)
}

func TestApplyEdit(t *testing.T) {
	s := newStores(t)
	seed(t, s, "t-1")
	w := newWorkflow(s)

	out, err := w.Apply(context.Background(), Action{
		TraceID: "t-1", Action: "edit", Reviewer: " alice ", Comment: "tone down", EditedEmail: "Reviewed text.",
	})
	require.NoError(t, err)
	assert.Equal(t, Outcome{TraceID: "t-1", ReviewStatus: model.StatusEdit}, out)

	rec, err := s.records.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusEdit, rec.ReviewStatus)
	assert.Equal(t, model.StatusEdit, rec.Response.ReviewStatus)
	assert.Equal(t, "Reviewed text.", rec.Response.RewrittenEmail)
	assert.Equal(t, "alice", rec.Reviewer)
	assert.Equal(t, "2026-03-02T09:30:00.000Z", rec.ReviewedAt)
	assert.Equal(t, "This is risk-free.", rec.Request.Email)

	events, err := w.History("t-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.ReviewEvent{
		TraceID:     "t-1",
		Action:      model.StatusEdit,
		Reviewer:    "alice",
		Comment:     "tone down",
		EditedEmail: "Reviewed text.",
		CreatedAt:   "2026-03-02T09:30:00.000Z",
		PrevHash:    audit.GenesisHash,
	}, events[0])
}

func TestApproveAndRejectKeepContent(t *testing.T) {
	for _, action := range []string{"approve", "reject", "APPROVE"} {
		t.Run(action, func(t *testing.T) {
			s := newStores(t)
			seed(t, s, "t-1")

			out, err := newWorkflow(s).Apply(context.Background(), Action{TraceID: "t-1", Action: action, Reviewer: "bob"})
			require.NoError(t, err)

			rec, err := s.records.Get("t-1")
			require.NoError(t, err)
			assert.Equal(t, out.ReviewStatus, rec.ReviewStatus)
			assert.Equal(t, "This is lower-risk.", rec.Response.RewrittenEmail)
		})
	}
}

func TestReReviewAppendsNewState(t *testing.T) {
	s := newStores(t)
	seed(t, s, "t-1")
	w := newWorkflow(s)
	ctx := context.Background()

	_, err := w.Apply(ctx, Action{TraceID: "t-1", Action: "reject", Reviewer: "bob"})
	require.NoError(t, err)
	_, err = w.Apply(ctx, Action{TraceID: "t-1", Action: "approve", Reviewer: "carol"})
	require.NoError(t, err)

	rec, err := s.records.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApprove, rec.ReviewStatus)
	assert.Equal(t, "carol", rec.Reviewer)

	events, err := w.History("t-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.StatusReject, events[0].Action)
	assert.Equal(t, model.StatusApprove, events[1].Action)
}

func TestApplyValidation(t *testing.T) {
	s := newStores(t)
	seed(t, s, "t-1")
	w := newWorkflow(s, WithMaxLength(10))

	tests := []struct {
		name  string
		a     Action
		field string
	}{
		{"edit without text", Action{TraceID: "t-1", Action: "edit", Reviewer: "alice"}, "edited_email"},
		{"edit with blank text", Action{TraceID: "t-1", Action: "edit", Reviewer: "alice", EditedEmail: "  "}, "edited_email"},
		{"edit too long", Action{TraceID: "t-1", Action: "edit", Reviewer: "alice", EditedEmail: "01234567890"}, "edited_email"},
		{"unknown action", Action{TraceID: "t-1", Action: "escalate", Reviewer: "alice"}, "action"},
		{"pending is not an action", Action{TraceID: "t-1", Action: "pending", Reviewer: "alice"}, "action"},
		{"no reviewer", Action{TraceID: "t-1", Action: "approve"}, "reviewer"},
		{"no trace", Action{Action: "approve", Reviewer: "alice"}, "trace_id"},
		{"validated before lookup", Action{TraceID: "t-missing", Action: "edit", Reviewer: "alice"}, "edited_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Apply(context.Background(), tt.a)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	rec, err := s.records.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, rec.ReviewStatus, "rejected actions change nothing")
	counts, err := s.records.Revisions()
	require.NoError(t, err)
	assert.Equal(t, 1, counts["t-1"])
}

func TestApplyUnknownTraceIsNotFound(t *testing.T) {
	s := newStores(t)
	_, err := newWorkflow(s).Apply(context.Background(), Action{TraceID: "t-missing", Action: "approve", Reviewer: "alice"})
	assert.True(t, model.IsNotFound(err))

	_, err = newWorkflow(s).History("t-missing")
	assert.True(t, model.IsNotFound(err))
}

func TestApplyHonorsCancelledContext(t *testing.T) {
	s := newStores(t)
	seed(t, s, "t-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newWorkflow(s).Apply(ctx, Action{TraceID: "t-1", Action: "approve", Reviewer: "alice"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentEditsAreSerialized(t *testing.T) {
	s := newStores(t)
	seed(t, s, "t-1")
	w := newWorkflow(s)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Apply(context.Background(), Action{TraceID: "t-1", Action: "approve", Reviewer: "alice"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	gaps, err := w.Reconcile()
	require.NoError(t, err)
	assert.Empty(t, gaps)

	events, err := w.History("t-1")
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

// failingEvents simulates a crash between the record and event appends.
type failingEvents struct {
	*audit.EventLog
}

func (f failingEvents) Append(model.ReviewEvent) error {
	return &model.StorageError{Op: "append review event", Err: errors.New("disk full")}
}

func TestReconcileReportsMissingEvents(t *testing.T) {
	s := newStores(t)
	seed(t, s, "t-1")
	seed(t, s, "t-2")
	ctx := context.Background()

	_, err := newWorkflow(s).Apply(ctx, Action{TraceID: "t-1", Action: "approve", Reviewer: "alice"})
	require.NoError(t, err)

	broken := New(s.records, failingEvents{s.events})
	_, err = broken.Apply(ctx, Action{TraceID: "t-2", Action: "reject", Reviewer: "bob"})
	var se *model.StorageError
	require.ErrorAs(t, err, &se)

	rec, err := s.records.Get("t-2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReject, rec.ReviewStatus, "record append happened first")

	gaps, err := newWorkflow(s).Reconcile()
	require.NoError(t, err)
	assert.Equal(t, []Gap{{TraceID: "t-2", Reviews: 1, Events: 0}}, gaps)
}
