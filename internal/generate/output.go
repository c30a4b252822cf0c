package generate

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformed is wrapped by callers that reject a Malformed output.
var ErrMalformed = errors.New("malformed generator output")

// Kind tags a generator reply.
type Kind int

const (
	// Malformed means the reply could not be decoded; Raw holds it.
	Malformed Kind = iota
	// Success means RewrittenEmail holds the decoded text.
	Success
)

func (k Kind) String() string {
	if k == Success {
		return "success"
	}
	return "malformed"
}

// Output is the decoded reply of a Generator.
type Output struct {
	Kind           Kind
	RewrittenEmail string
	Raw            string
}

// Succeeded returns a Success output carrying text.
func Succeeded(text string) Output {
	return Output{Kind: Success, RewrittenEmail: text, Raw: text}
}

type completion struct {
	RewrittenEmail *string `json:"rewritten_email"`
	RewrittenText  *string `json:"rewritten_text"`
}

// Decode parses a model reply of the form {"rewritten_email": "..."}.
// Markdown fences are stripped; "rewritten_text" is accepted as an alias.
// Anything else, including an empty rewrite, is Malformed.
func Decode(raw string) Output {
	cleaned := cleanJSON(raw)

	var c completion
	if err := json.Unmarshal([]byte(cleaned), &c); err != nil {
		return Output{Kind: Malformed, Raw: raw}
	}

	var text string
	switch {
	case c.RewrittenEmail != nil:
		text = *c.RewrittenEmail
	case c.RewrittenText != nil:
		text = *c.RewrittenText
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Output{Kind: Malformed, Raw: raw}
	}
	return Output{Kind: Success, RewrittenEmail: text, Raw: raw}
}

// cleanJSON strips markdown fences and leading/trailing whitespace.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
