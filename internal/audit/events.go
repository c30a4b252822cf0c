package audit

import (
	"encoding/json"

	"github.com/ppiankov/redline/internal/model"
)

// EventLog is the review event journal. Events are never rewritten or
// collapsed; every line is history.
type EventLog struct {
	j *journal
}

// OpenEvents opens (or creates) the review event journal at path.
func OpenEvents(path string) (*EventLog, error) {
	j, err := openJournal(path)
	if err != nil {
		return nil, err
	}
	return &EventLog{j: j}, nil
}

// Path returns the journal file path.
func (e *EventLog) Path() string { return e.j.path }

// Append writes ev, setting its PrevHash. Failures are *model.StorageError.
func (e *EventLog) Append(ev model.ReviewEvent) error {
	_, err := e.j.append(func(prevHash string) ([]byte, error) {
		ev.PrevHash = prevHash
		return json.Marshal(ev)
	})
	if err != nil {
		return &model.StorageError{Op: "append review event", Err: err}
	}
	return nil
}

// Events returns every event for traceID in append order.
func (e *EventLog) Events(traceID string) ([]model.ReviewEvent, error) {
	out := []model.ReviewEvent{}
	err := e.scan(func(ev model.ReviewEvent) {
		if ev.TraceID == traceID {
			out = append(out, ev)
		}
	})
	if err != nil {
		return nil, &model.StorageError{Op: "read review events", Err: err}
	}
	return out, nil
}

// Counts returns the number of events per trace ID.
func (e *EventLog) Counts() (map[string]int, error) {
	counts := make(map[string]int)
	err := e.scan(func(ev model.ReviewEvent) {
		counts[ev.TraceID]++
	})
	if err != nil {
		return nil, &model.StorageError{Op: "read review events", Err: err}
	}
	return counts, nil
}

// Close closes the journal.
func (e *EventLog) Close() error { return e.j.close() }

func (e *EventLog) scan(fn func(model.ReviewEvent)) error {
	return scanLines(e.j.path, func(_ int64, line []byte) error {
		var ev model.ReviewEvent
		if err := json.Unmarshal(line, &ev); err != nil || ev.TraceID == "" {
			return nil
		}
		fn(ev)
		return nil
	})
}
