// Package client calls a remote redline server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/requestctx"
	"github.com/ppiankov/redline/internal/review"
)

// Timeouts applied when the caller does not override them.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

// RequestIDHeader carries the caller's request id. The server echoes it.
const RequestIDHeader = "X-Request-Id"

const maxResponseBytes = 4 << 20

// APIError is a non-2xx answer that does not map to a typed model error.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("redline server: %d %s: %s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("redline server: %d %s", e.Status, e.Code)
}

// Client connects to a redline HTTP server.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for baseURL. A URL without a scheme gets https://.
func New(baseURL string, connectTimeout, readTimeout time.Duration) (*Client, error) {
	base, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
	}
	return &Client{
		base: base,
		http: &http.Client{Transport: transport, Timeout: connectTimeout + readTimeout},
	}, nil
}

// NormalizeBaseURL adds a missing scheme and strips trailing slashes.
func NormalizeBaseURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("server URL is empty")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	return strings.TrimRight(s, "/"), nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string { return c.base }

// Rewrite submits req to domain.
func (c *Client) Rewrite(ctx context.Context, domain string, req model.RewriteRequest) (model.RewriteResult, error) {
	var res model.RewriteResult
	err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(domain)+"/rewrite", req, &res, "")
	return res, err
}

// Get returns the current record of traceID.
func (c *Client) Get(ctx context.Context, domain, traceID string) (model.AuditRecord, error) {
	var rec model.AuditRecord
	err := c.do(ctx, http.MethodGet, recordPath(domain, traceID), nil, &rec, traceID)
	return rec, err
}

// List returns up to limit recent records. limit <= 0 uses the server default.
func (c *Client) List(ctx context.Context, domain string, limit int) ([]model.AuditRecord, error) {
	path := "/" + url.PathEscape(domain) + "/records"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	recs := []model.AuditRecord{}
	err := c.do(ctx, http.MethodGet, path, nil, &recs, "")
	return recs, err
}

// Search returns current records at risk level.
func (c *Client) Search(ctx context.Context, domain, level string) ([]model.AuditRecord, error) {
	path := "/" + url.PathEscape(domain) + "/records/search?risk=" + url.QueryEscape(level)
	recs := []model.AuditRecord{}
	err := c.do(ctx, http.MethodGet, path, nil, &recs, "")
	return recs, err
}

// Events returns the review history of traceID.
func (c *Client) Events(ctx context.Context, domain, traceID string) ([]model.ReviewEvent, error) {
	events := []model.ReviewEvent{}
	err := c.do(ctx, http.MethodGet, recordPath(domain, traceID)+"/events", nil, &events, traceID)
	return events, err
}

// Review applies a reviewer action.
func (c *Client) Review(ctx context.Context, domain string, a review.Action) (review.Outcome, error) {
	body := map[string]string{
		"action":       a.Action,
		"reviewer":     a.Reviewer,
		"comment":      a.Comment,
		"edited_email": a.EditedEmail,
	}
	var out review.Outcome
	err := c.do(ctx, http.MethodPost, recordPath(domain, a.TraceID)+"/review", body, &out, a.TraceID)
	return out, err
}

func recordPath(domain, traceID string) string {
	return "/" + url.PathEscape(domain) + "/records/" + url.PathEscape(traceID)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, traceID string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	id := requestctx.RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, id)

	resp, err := c.http.Do(req)
	if err != nil {
		return &model.UpstreamServiceError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &model.UpstreamServiceError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, data, traceID)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &model.UpstreamServiceError{Op: method + " " + path, Err: fmt.Errorf("invalid response body: %w", err)}
	}
	return nil
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Field       string `json:"field"`
}

// decodeError maps the server's error envelope back to typed errors.
func decodeError(status int, data []byte, traceID string) error {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil || eb.Error == "" {
		eb = errorBody{Error: http.StatusText(status), Description: strings.TrimSpace(string(data))}
	}
	apiErr := &APIError{Status: status, Code: eb.Error, Description: eb.Description}

	switch {
	case status == http.StatusUnprocessableEntity && eb.Field != "":
		reason := strings.TrimPrefix(eb.Description, "invalid "+eb.Field+": ")
		return &model.ValidationError{Field: eb.Field, Reason: reason}
	case status == http.StatusNotFound && eb.Error == "not_found" && traceID != "":
		return &model.NotFoundError{TraceID: traceID}
	case status == http.StatusBadGateway:
		return &model.UpstreamServiceError{Op: "generate", Err: apiErr}
	default:
		return apiErr
	}
}

// IsAPIError reports whether err carries an unmapped server answer.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}
