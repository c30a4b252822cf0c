package redline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestWrapSendsRewrittenText(t *testing.T) {
	c := newTestClient(t)
	var sent Message
	send := c.Wrap(func(ctx context.Context, msg Message) error {
		sent = msg
		return nil
	})

	if err := send(context.Background(), Message{Body: "You will see guaranteed returns."}); err != nil {
		t.Fatal(err)
	}
	if sent.Audience != "client" {
		t.Errorf("expected default audience client, got %q", sent.Audience)
	}
	if strings.Contains(strings.ToLower(sent.Body), "guaranteed returns") {
		t.Errorf("risky phrase reached sender: %q", sent.Body)
	}
	if !strings.Contains(sent.Body, "Disclaimer:") {
		t.Errorf("expected disclaimer in %q", sent.Body)
	}
}

func TestWrapBlocksHighRisk(t *testing.T) {
	c := newTestClient(t)
	send := c.Wrap(func(ctx context.Context, msg Message) error {
		t.Fatal("sender should not be called")
		return nil
	}, BlockAtOrAbove(RiskHigh), WrapWithAudience("external"))

	err := send(context.Background(), Message{Body: "This fund will outperform, you cannot lose."})
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if blocked.Risk != RiskHigh || blocked.TraceID == "" {
		t.Errorf("unexpected block: %+v", blocked)
	}

	status, err := c.Status(context.Background(), blocked.TraceID)
	if err != nil {
		t.Fatal(err)
	}
	if status != "pending" {
		t.Errorf("blocked rewrite should be recorded pending, got %s", status)
	}
}

func TestWrapPassesValidationErrors(t *testing.T) {
	c := newTestClient(t)
	send := c.Wrap(func(ctx context.Context, msg Message) error { return nil })
	if err := send(context.Background(), Message{Body: "   "}); err == nil {
		t.Fatal("expected validation error for blank body")
	}
}

func TestWrapConcurrent(t *testing.T) {
	c := newTestClient(t)
	var mu sync.Mutex
	count := 0
	send := c.Wrap(func(ctx context.Context, msg Message) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := send(context.Background(), Message{Body: "Quarterly update."}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if count != 20 {
		t.Errorf("expected 20 sends, got %d", count)
	}
}
