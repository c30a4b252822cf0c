package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/redline/internal/model"
)

const separator = "──────────────────────────────────────────────────────────────────"

// History is a record's current state together with its review events.
type History struct {
	Record model.AuditRecord   `json:"record"`
	Events []model.ReviewEvent `json:"events"`
}

// FormatTimeline renders a History as a human-readable text timeline.
func FormatTimeline(h History) string {
	var b strings.Builder
	rec := h.Record

	fmt.Fprintf(&b, "Trace: %s | %s | created %s UTC\n", rec.TraceID, rec.Domain, formatDateTime(rec.CreatedAt))
	fmt.Fprintf(&b, "Risk: %s | Flagged: %s | Status: %s\n",
		strings.ToUpper(string(rec.Response.RiskLevel)), flaggedSummary(rec.Response.FlaggedPhrases), rec.ReviewStatus)
	b.WriteString(separator + "\n")

	if len(h.Events) == 0 {
		b.WriteString("No review events.\n")
	}
	for _, ev := range h.Events {
		tag := ""
		if ev.Action == model.StatusEdit {
			tag = "  [edited]"
		}
		fmt.Fprintf(&b, "%-10s %-8s %-20s %-40s%s\n",
			formatTimeOnly(ev.CreatedAt), strings.ToUpper(string(ev.Action)),
			truncate(ev.Reviewer, 20), truncate(ev.Comment, 40), tag)
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(h.Events))
	return b.String()
}

// FormatJSON renders a History as indented JSON.
func FormatJSON(h History) (string, error) {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	return string(data), nil
}

func flaggedSummary(phrases []string) string {
	if len(phrases) == 0 {
		return "none"
	}
	return truncate(strings.Join(phrases, ", "), 60)
}

func formatDateTime(ts string) string {
	t, err := time.Parse(model.TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(model.TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(events []model.ReviewEvent) string {
	counts := map[model.ReviewStatus]int{}
	for _, ev := range events {
		counts[ev.Action]++
	}
	parts := []string{}
	for _, a := range []model.ReviewStatus{model.StatusApprove, model.StatusReject, model.StatusEdit} {
		if counts[a] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[a], a))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "unreviewed")
	}
	return fmt.Sprintf("Summary: %s | %d event(s)\n", strings.Join(parts, ", "), len(events))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
