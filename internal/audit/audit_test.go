package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/redline/internal/model"
)

func newTestLog(t *testing.T, opts ...Option) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "banking_rewrites.jsonl")
	l, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func testRecord(id string, level model.RiskLevel) model.AuditRecord {
	return model.AuditRecord{
		TraceID:      id,
		CreatedAt:    "2026-03-01T10:00:00.000Z",
		ReviewStatus: model.StatusPending,
		Domain:       "banking",
		PolicyHash:   "sha256:abc123",
		Request:      model.RewriteRequest{Email: "This is risk-free.", Audience: "client", Language: "en"},
		Response: model.RewriteResult{
			RewrittenEmail: "This is lower-risk.",
			RiskLevel:      level,
			FlaggedPhrases: []string{"risk-free"},
			TraceID:        id,
			ReviewStatus:   model.StatusPending,
		},
	}
}

func reviewed(rec model.AuditRecord, status model.ReviewStatus) model.AuditRecord {
	rec.ReviewStatus = status
	rec.Response.ReviewStatus = status
	return rec
}

func TestAppendAndGetRoundTrip(t *testing.T) {
	l, _ := newTestLog(t)
	require.NoError(t, l.Append(testRecord("t-1", model.RiskMedium)))

	got, err := l.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.TraceID)
	assert.Equal(t, model.StatusPending, got.ReviewStatus)
	assert.Equal(t, GenesisHash, got.PrevHash)
}

func TestGetUnknownIsNotFound(t *testing.T) {
	l, _ := newTestLog(t)
	require.NoError(t, l.Append(testRecord("t-1", model.RiskLow)))

	_, err := l.Get("t-missing")
	assert.True(t, model.IsNotFound(err))
}

func TestGetOnMissingFileIsNotFound(t *testing.T) {
	l, path := newTestLog(t)
	require.NoError(t, os.Remove(path))

	_, err := l.Get("t-1")
	assert.True(t, model.IsNotFound(err))
}

func TestLastWriteWinsAcrossReopen(t *testing.T) {
	l, path := newTestLog(t)
	rec := testRecord("t-1", model.RiskMedium)
	require.NoError(t, l.Append(rec))
	require.NoError(t, l.Append(testRecord("t-2", model.RiskLow)))
	require.NoError(t, l.Append(reviewed(rec, model.StatusApprove)))
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApprove, got.ReviewStatus)

	require.NoError(t, reopened.Append(reviewed(rec, model.StatusReject)))
	got, err = reopened.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReject, got.ReviewStatus)

	assert.True(t, Verify(path).Valid, "chain continues across reopen")
}

func TestMalformedLinesAreSkipped(t *testing.T) {
	l, path := newTestLog(t)
	require.NoError(t, l.Append(testRecord("t-1", model.RiskMedium)))
	require.NoError(t, l.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n\n{\"no_trace\":true}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Append(testRecord("t-2", model.RiskHigh)))

	got, err := reopened.Get("t-2")
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, got.Response.RiskLevel)

	recent, err := reopened.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestTornTailIsIgnoredAndTerminated(t *testing.T) {
	l, path := newTestLog(t)
	require.NoError(t, l.Append(testRecord("t-1", model.RiskMedium)))
	require.NoError(t, l.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"trace_id":"t-torn","created_at":"2026`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reader, err := Open(path)
	require.NoError(t, err)
	_, err = reader.Get("t-torn")
	assert.True(t, model.IsNotFound(err))

	require.NoError(t, reader.Append(testRecord("t-2", model.RiskLow)))
	require.NoError(t, reader.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], `"trace_id":"t-2"`)
}

func TestListRecent(t *testing.T) {
	l, _ := newTestLog(t)
	for i := 0; i < 7; i++ {
		require.NoError(t, l.Append(testRecord(fmt.Sprintf("t-%d", i), model.RiskLow)))
	}

	recent, err := l.ListRecent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"t-4", "t-5", "t-6"}, traceIDs(recent), "newest last")

	all, err := l.ListRecent(0)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestListRecentEmpty(t *testing.T) {
	l, _ := newTestLog(t)
	recent, err := l.ListRecent(5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestSearchByRiskUsesCurrentStateInFirstSeenOrder(t *testing.T) {
	l, _ := newTestLog(t)
	a := testRecord("t-a", model.RiskMedium)
	b := testRecord("t-b", model.RiskHigh)
	c := testRecord("t-c", model.RiskMedium)
	require.NoError(t, l.Append(a))
	require.NoError(t, l.Append(b))
	require.NoError(t, l.Append(c))

	// Re-appending a changes its current state but not its position.
	require.NoError(t, l.Append(reviewed(a, model.StatusApprove)))
	moved := b
	moved.Response.RiskLevel = model.RiskMedium
	require.NoError(t, l.Append(moved))

	got, err := l.SearchByRisk(model.RiskMedium)
	require.NoError(t, err)
	assert.Equal(t, []string{"t-a", "t-b", "t-c"}, traceIDs(got))
	assert.Equal(t, model.StatusApprove, got[0].ReviewStatus)

	high, err := l.SearchByRisk(model.RiskHigh)
	require.NoError(t, err)
	assert.Empty(t, high)
	assert.NotNil(t, high)
}

func TestRevisions(t *testing.T) {
	l, _ := newTestLog(t)
	rec := testRecord("t-1", model.RiskLow)
	require.NoError(t, l.Append(rec))
	require.NoError(t, l.Append(reviewed(rec, model.StatusEdit)))
	require.NoError(t, l.Append(testRecord("t-2", model.RiskLow)))

	counts, err := l.Revisions()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"t-1": 2, "t-2": 1}, counts)
}

func TestConcurrentAppendsKeepChainValid(t *testing.T) {
	l, path := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				assert.NoError(t, l.Append(testRecord(fmt.Sprintf("t-%d-%d", i, j), model.RiskLow)))
			}
		}(i)
	}
	wg.Wait()

	result := Verify(path)
	require.True(t, result.Valid, result.Error)
	assert.Equal(t, 100, result.Lines)

	counts, err := l.Revisions()
	require.NoError(t, err)
	assert.Len(t, counts, 100)
}

func TestAppendAfterCloseIsStorageError(t *testing.T) {
	l, _ := newTestLog(t)
	require.NoError(t, l.Close())

	err := l.Append(testRecord("t-1", model.RiskLow))
	var se *model.StorageError
	assert.ErrorAs(t, err, &se)
}

func TestEventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "banking_review_events.jsonl")
	ev, err := OpenEvents(path)
	require.NoError(t, err)
	defer ev.Close()

	require.NoError(t, ev.Append(model.ReviewEvent{TraceID: "t-1", Action: model.StatusEdit, Reviewer: "alice", EditedEmail: "x"}))
	require.NoError(t, ev.Append(model.ReviewEvent{TraceID: "t-2", Action: model.StatusApprove, Reviewer: "bob"}))
	require.NoError(t, ev.Append(model.ReviewEvent{TraceID: "t-1", Action: model.StatusApprove, Reviewer: "carol", Comment: "ok"}))

	events, err := ev.Events("t-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0].Reviewer)
	assert.Equal(t, "carol", events[1].Reviewer)

	none, err := ev.Events("t-9")
	require.NoError(t, err)
	assert.Empty(t, none)

	counts, err := ev.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"t-1": 2, "t-2": 1}, counts)

	assert.True(t, Verify(path).Valid)
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Append(testRecord(fmt.Sprintf("t-%d", i), model.RiskLow)))
	}
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"pending"`, `"approve"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))

	result := Verify(path)
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.ErrorLine)
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Append(testRecord(fmt.Sprintf("t-%d", i), model.RiskLow)))
	}
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NoError(t, os.WriteFile(path, []byte(lines[0]+"\n"+lines[2]+"\n"), 0600))

	result := Verify(path)
	assert.False(t, result.Valid)
	assert.Equal(t, 2, result.ErrorLine)
}

func TestVerifyRejectsBadGenesisAndGarbage(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte(`{"trace_id":"t","prev_hash":"sha256:nope"}`+"\n"), 0600))
	result := Verify(bad)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Error, "genesis")

	garbage := filepath.Join(dir, "garbage.jsonl")
	require.NoError(t, os.WriteFile(garbage, []byte("not json\n"), 0600))
	result = Verify(garbage)
	assert.False(t, result.Valid)
	assert.Equal(t, 1, result.ErrorLine)

	result = Verify(filepath.Join(dir, "missing.jsonl"))
	assert.False(t, result.Valid)
	assert.Contains(t, result.Error, "open")
}

func TestVerifyEmptyFileIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0600))
	result := Verify(path)
	assert.True(t, result.Valid)
	assert.Zero(t, result.Lines)
}

func traceIDs(recs []model.AuditRecord) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.TraceID
	}
	return ids
}
