package alert

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

func mrkdwn(label, value string) map[string]any {
	return map[string]any{"type": "mrkdwn", "text": "*" + label + ":* " + value}
}

func formatSlack(event AlertEvent) ([]byte, error) {
	fields := []any{mrkdwn("Domain", event.Domain), mrkdwn("Trace", event.TraceID)}
	if event.Type == TypeRewrite {
		fields = append(fields, mrkdwn("Risk", event.RiskLevel), mrkdwn("Flagged", flaggedText(event.Flagged)))
	} else {
		fields = append(fields, mrkdwn("Action", event.Action), mrkdwn("Reviewer", event.Reviewer))
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": "redline: " + headline(event),
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	severity := "info"
	switch {
	case event.RiskLevel == "high":
		severity = "critical"
	case event.RiskLevel == "medium" || event.Action == "reject":
		severity = "warning"
	}

	// One incident per trace and event type; a retry updates it.
	payload := map[string]any{
		"event_action": "trigger",
		"dedup_key":    event.TraceID + "/" + event.Type,
		"payload": map[string]any{
			"summary":  fmt.Sprintf("redline %s: %s", headline(event), event.TraceID),
			"severity": severity,
			"source":   "redline/" + event.Domain,
			"custom_details": map[string]any{
				"type":        event.Type,
				"risk_level":  event.RiskLevel,
				"flagged":     event.Flagged,
				"action":      event.Action,
				"reviewer":    event.Reviewer,
				"policy_hash": event.PolicyHash,
			},
		},
	}
	return json.Marshal(payload)
}

func headline(event AlertEvent) string {
	if event.Type == TypeRewrite {
		return event.RiskLevel + " risk rewrite"
	}
	return "review " + event.Action
}

func flaggedText(phrases []string) string {
	if len(phrases) == 0 {
		return "none"
	}
	return strings.Join(phrases, ", ")
}
