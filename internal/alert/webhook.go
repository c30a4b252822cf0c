package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	deliveryTimeout = 5 * time.Second
	deliveryTries   = 3

	// TraceHeader lets receivers deduplicate retried deliveries.
	TraceHeader = "X-Redline-Trace"
)

var (
	webhookClient = &http.Client{Timeout: deliveryTimeout}
	// retryBackoff grows linearly with the attempt number.
	retryBackoff = time.Second
)

// Send delivers event to one webhook. Server errors and transport failures
// are retried; a 4xx is final.
func Send(cfg AlertConfig, event AlertEvent) error {
	return SendContext(context.Background(), cfg, event)
}

// SendContext is Send bounded by ctx, including the waits between tries.
func SendContext(ctx context.Context, cfg AlertConfig, event AlertEvent) error {
	payload, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("alert: format %s payload: %w", cfg.Format, err)
	}

	var last error
	for try := 1; try <= deliveryTries; try++ {
		if try > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(try-1) * retryBackoff):
			}
		}

		retry, err := post(ctx, cfg, event.TraceID, payload)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		last = err
	}
	return fmt.Errorf("alert: %s unreachable after %d tries: %w", cfg.URL, deliveryTries, last)
}

// post makes one delivery attempt and reports whether a failure is worth retrying.
func post(ctx context.Context, cfg AlertConfig, traceID string, payload []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("alert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID != "" {
		req.Header.Set(TraceHeader, traceID)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := webhookClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode < 500:
		return false, fmt.Errorf("alert: webhook rejected delivery: HTTP %d", resp.StatusCode)
	default:
		return true, fmt.Errorf("alert: webhook server error: HTTP %d", resp.StatusCode)
	}
}
