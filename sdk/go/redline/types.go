package redline

import (
	"fmt"

	"github.com/ppiankov/redline/internal/model"
)

// RiskLevel is the classifier outcome.
type RiskLevel string

const (
	RiskLow    RiskLevel = RiskLevel(model.RiskLow)
	RiskMedium RiskLevel = RiskLevel(model.RiskMedium)
	RiskHigh   RiskLevel = RiskLevel(model.RiskHigh)
)

func (l RiskLevel) rank() int {
	r, ok := model.RiskRank[model.RiskLevel(l)]
	if !ok {
		return -1
	}
	return r
}

// Message is one outbound communication.
type Message struct {
	Body     string
	Audience string
	Language string
}

// Result is a recorded rewrite.
type Result struct {
	TraceID         string
	Text            string
	Risk            RiskLevel
	Flagged         []string
	DisclaimerAdded bool
	Rationale       string
}

// Assessment is a classification without rewriting or recording.
type Assessment struct {
	Risk    RiskLevel
	Flagged []string
}

// BlockedError is returned by a wrapped sender when the message is too risky
// to send. The rewrite was recorded under TraceID for review.
type BlockedError struct {
	TraceID string
	Risk    RiskLevel
	Flagged []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("redline blocked (%s risk, trace %s): %d flagged phrase(s)", e.Risk, e.TraceID, len(e.Flagged))
}

func toResult(r model.RewriteResult) Result {
	return Result{
		TraceID:         r.TraceID,
		Text:            r.RewrittenEmail,
		Risk:            RiskLevel(r.RiskLevel),
		Flagged:         r.FlaggedPhrases,
		DisclaimerAdded: r.DisclaimerAdded,
		Rationale:       r.Rationale,
	}
}
