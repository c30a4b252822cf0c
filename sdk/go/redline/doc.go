// Package redline provides in-process compliance rewriting for Go services
// that send regulated communications. It classifies outbound text against a
// domain policy, rewrites it into measured language, appends the rewrite to
// the audit journals, and exposes the review workflow.
//
// Usage:
//
//	rl, err := redline.New(redline.WithDomain("banking"), redline.WithAuditDir("/var/lib/redline"))
//	send := rl.Wrap(mailer.Send, redline.BlockAtOrAbove(redline.RiskHigh))
//	err = send(ctx, redline.Message{Body: draft, Audience: "client"})
//
// The SDK links directly against internal packages. External users import
// github.com/ppiankov/redline/sdk/go/redline.
package redline
