package audit

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/redline/internal/model"
)

func testHistory() History {
	rec := reviewed(testRecord("t-aaa", model.RiskMedium), model.StatusApprove)
	return History{
		Record: rec,
		Events: []model.ReviewEvent{
			{TraceID: "t-aaa", Action: model.StatusEdit, Reviewer: "alice", Comment: "tone", EditedEmail: "x", CreatedAt: "2026-03-01T10:05:00.000Z"},
			{TraceID: "t-aaa", Action: model.StatusApprove, Reviewer: "bob", CreatedAt: "2026-03-01T10:07:30.000Z"},
		},
	}
}

func TestFormatTimeline(t *testing.T) {
	out := FormatTimeline(testHistory())

	assert.Contains(t, out, "Trace: t-aaa | banking | created 2026-03-01 10:00:00 UTC")
	assert.Contains(t, out, "Risk: MEDIUM | Flagged: risk-free | Status: approve")
	assert.Contains(t, out, "10:05:00")
	assert.Contains(t, out, "[edited]")
	assert.Contains(t, out, "Summary: 1 approve, 1 edit | 2 event(s)")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, separator, lines[2])
}

func TestFormatTimelineUnreviewed(t *testing.T) {
	out := FormatTimeline(History{Record: testRecord("t-bbb", model.RiskLow)})
	assert.Contains(t, out, "No review events.")
	assert.Contains(t, out, "Summary: unreviewed | 0 event(s)")
}

func TestFormatJSON(t *testing.T) {
	out, err := FormatJSON(testHistory())
	require.NoError(t, err)

	var decoded History
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "t-aaa", decoded.Record.TraceID)
	assert.Len(t, decoded.Events, 2)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
