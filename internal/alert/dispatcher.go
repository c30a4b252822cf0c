package alert

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/ppiankov/redline/internal/logger"
)

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []AlertConfig
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty; a nil Dispatcher drops every event.
func NewDispatcher(configs []AlertConfig, log *slog.Logger) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs, logger: logger.OrDiscard(log)}
}

// Dispatch sends the event to all webhooks whose Events and Domains match.
// Sends run in the background; Wait blocks until they finish.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	if d == nil {
		return
	}
	for _, cfg := range d.configs {
		if !matches(cfg, event) {
			continue
		}
		d.wg.Add(1)
		go func(cfg AlertConfig) {
			defer d.wg.Done()
			if err := Send(cfg, event); err != nil {
				d.logger.Warn("alert delivery failed", "trace_id", event.TraceID, "type", event.Type, "error", err)
			}
		}(cfg)
	}
}

// Wait blocks until in-flight sends finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// matches checks the risk level of rewrite events and the action of
// review events against the configured event names.
func matches(cfg AlertConfig, event AlertEvent) bool {
	if len(cfg.Domains) > 0 && !slices.Contains(cfg.Domains, event.Domain) {
		return false
	}
	switch event.Type {
	case TypeRewrite:
		return slices.Contains(cfg.Events, event.RiskLevel)
	case TypeReview:
		return slices.Contains(cfg.Events, event.Action)
	}
	return false
}
