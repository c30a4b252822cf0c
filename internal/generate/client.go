// Package generate calls an OpenAI-compatible chat-completions endpoint to
// produce a base rewrite of a message.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/redline/internal/model"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultMaxTokens      = 800

	maxResponseBytes = 1 << 20
)

// Generator produces a base rewrite for text aimed at audience.
// Transport and protocol failures are returned as *model.UpstreamServiceError.
// A reply that arrives but cannot be decoded is not an error at this level;
// it comes back as an Output of kind Malformed.
type Generator interface {
	Generate(ctx context.Context, text, audience string) (Output, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, text, audience string) (Output, error)

func (f Func) Generate(ctx context.Context, text, audience string) (Output, error) {
	return f(ctx, text, audience)
}

// Config holds parameters for the chat-completions client.
type Config struct {
	APIURL         string
	APIKey         string
	Model          string
	MaxTokens      int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// SystemPrompt overrides the default instructions.
	SystemPrompt string
}

const defaultSystemPrompt = `You rewrite outbound business messages so they are compliant and measured.

Rules:
- Keep the meaning and the factual content of the original.
- Remove promises of returns, certainty, or absence of risk.
- Replace directive advice ("you should", "I recommend") with neutral wording.
- Do not add a disclaimer; one is appended separately.
- Write for the audience named in the request.
- Keep placeholders like <<EMAIL_1>> exactly as written.

Return ONLY valid JSON, no markdown fences, no commentary:
{"rewritten_email":"<text>"}`

// Client is a Generator backed by an HTTP chat-completions API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a Client. Zero timeouts and token limits get defaults.
func NewClient(cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   4,
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
	}
}

// Generate sends text to the endpoint and decodes the reply.
func (c *Client) Generate(ctx context.Context, text, audience string) (Output, error) {
	messages := []map[string]string{
		{"role": "system", "content": c.cfg.SystemPrompt},
		{"role": "user", "content": fmt.Sprintf("Audience: %s\n\nMessage:\n%s", audience, text)},
	}

	body, err := json.Marshal(map[string]interface{}{
		"model":       c.cfg.Model,
		"messages":    messages,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": 0,
	})
	if err != nil {
		return Output{}, &model.UpstreamServiceError{Op: "generate", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return Output{}, &model.UpstreamServiceError{Op: "generate", Err: fmt.Errorf("create request: %w", err)}
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Output{}, &model.UpstreamServiceError{Op: "generate", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Output{}, &model.UpstreamServiceError{Op: "generate", Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return Output{}, &model.UpstreamServiceError{
			Op:  "generate",
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(respBody)), 200)),
		}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || len(result.Choices) == 0 {
		return Output{}, &model.UpstreamServiceError{Op: "generate", Err: fmt.Errorf("empty completion response")}
	}

	return Decode(result.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
