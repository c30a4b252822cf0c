package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/redact"
)

// Redacting wraps g so personal data never leaves the process. Text is
// tokenized before the call and the reply is detokened after it. A reply
// that repeats a redacted value or drops a token is rejected as an
// upstream failure rather than passed on.
func Redacting(g Generator, cfg *redact.Config, extra []redact.ExtraPattern) Generator {
	return &redacting{next: g, cfg: cfg, extra: extra}
}

type redacting struct {
	next  Generator
	cfg   *redact.Config
	extra []redact.ExtraPattern
}

func (r *redacting) Generate(ctx context.Context, text, audience string) (Output, error) {
	tm := redact.NewTokenMap()
	masked := redact.RedactWithConfig(text, tm, r.cfg, r.extra)

	out, err := r.next.Generate(ctx, masked, audience)
	if err != nil || tm.Len() == 0 {
		return out, err
	}
	if out.Kind != Success {
		out.Raw = redact.Detoken(out.Raw, tm)
		return out, nil
	}

	if leaks := redact.CheckLeaks(out.RewrittenEmail, tm); len(leaks) > 0 {
		return Output{}, &model.UpstreamServiceError{
			Op:  "generate",
			Err: fmt.Errorf("reply contains %d redacted value(s)", len(leaks)),
		}
	}
	if missing := redact.MissingTokens(out.RewrittenEmail, tm); len(missing) > 0 {
		return Output{}, &model.UpstreamServiceError{
			Op:  "generate",
			Err: fmt.Errorf("reply dropped placeholders %s", strings.Join(missing, ", ")),
		}
	}
	return Succeeded(redact.Detoken(out.RewrittenEmail, tm)), nil
}
