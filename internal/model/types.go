package model

import (
	"fmt"
	"strings"
	"time"
)

// TimestampFormat is the layout used for every persisted timestamp.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// DefaultLanguage is applied when a request leaves language empty.
const DefaultLanguage = "en"

// RiskLevel is the severity assigned to a piece of text by the classifier.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskRank maps risk levels to a comparable integer for monotonic escalation.
var RiskRank = map[RiskLevel]int{
	RiskLow:    0,
	RiskMedium: 1,
	RiskHigh:   2,
}

// ParseRiskLevel accepts a risk level in any letter case.
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := RiskRank[level]; !ok {
		return "", &ValidationError{Field: "risk", Reason: fmt.Sprintf("unknown risk level %q (want low, medium or high)", s)}
	}
	return level, nil
}

// ReviewStatus is the review state of an audit record. The non-pending
// values double as the reviewer actions that produce them.
type ReviewStatus string

const (
	StatusPending ReviewStatus = "pending"
	StatusApprove ReviewStatus = "approve"
	StatusReject  ReviewStatus = "reject"
	StatusEdit    ReviewStatus = "edit"
)

// ParseAction validates a reviewer action. Pending is not an action.
func ParseAction(s string) (ReviewStatus, error) {
	switch a := ReviewStatus(strings.ToLower(strings.TrimSpace(s))); a {
	case StatusApprove, StatusReject, StatusEdit:
		return a, nil
	default:
		return "", &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q (want approve, reject or edit)", s)}
	}
}

// RewriteRequest is a caller's request to rewrite one message.
type RewriteRequest struct {
	Email    string `json:"email"`
	Audience string `json:"audience"`
	Language string `json:"language"`
}

// RiskAssessment is the classifier output for one text.
type RiskAssessment struct {
	RiskLevel      RiskLevel `json:"risk_level"`
	FlaggedPhrases []string  `json:"flagged_phrases"`
}

// RewriteResult is the response produced for a successful rewrite.
type RewriteResult struct {
	RewrittenEmail  string       `json:"rewritten_email"`
	RiskLevel       RiskLevel    `json:"risk_level"`
	FlaggedPhrases  []string     `json:"flagged_phrases"`
	DisclaimerAdded bool         `json:"disclaimer_added"`
	Rationale       string       `json:"rationale"`
	TraceID         string       `json:"trace_id"`
	CreatedAt       string       `json:"created_at"`
	ReviewStatus    ReviewStatus `json:"review_status"`
}

// AuditRecord is one line of the audit log. Several lines may share a
// trace ID; the last one appended is the current state.
// All fields are structs or scalars so json.Marshal output is stable for
// hash chaining.
type AuditRecord struct {
	TraceID      string         `json:"trace_id"`
	CreatedAt    string         `json:"created_at"`
	ReviewStatus ReviewStatus   `json:"review_status"`
	Domain       string         `json:"domain"`
	PolicyHash   string         `json:"policy_hash"`
	Request      RewriteRequest `json:"request"`
	Response     RewriteResult  `json:"response"`
	Reviewer     string         `json:"reviewer,omitempty"`
	ReviewedAt   string         `json:"reviewed_at,omitempty"`
	PrevHash     string         `json:"prev_hash"`
}

// ReviewEvent is one immutable line of the review history.
type ReviewEvent struct {
	TraceID     string       `json:"trace_id"`
	Action      ReviewStatus `json:"action"`
	Reviewer    string       `json:"reviewer"`
	Comment     string       `json:"comment,omitempty"`
	EditedEmail string       `json:"edited_email,omitempty"`
	CreatedAt   string       `json:"created_at"`
	PrevHash    string       `json:"prev_hash"`
}

// FormatTime renders t in the persisted UTC layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
