// Package audit persists rewrite records and review events as append-only,
// hash-chained JSONL journals. Reads scan the journal; the last line for a
// trace ID is its current state.
package audit

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ppiankov/redline/internal/model"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Log is the audit record journal.
type Log struct {
	j      *journal
	index  *Index
	logger *slog.Logger

	// mu orders journal appends with index updates so the index never
	// points at an older line than the journal's last.
	mu      sync.Mutex
	indexOK atomic.Bool
}

// Option configures a Log.
type Option func(*Log)

// WithIndex attaches a sidecar index. The Log takes ownership and closes it.
func WithIndex(x *Index) Option {
	return func(l *Log) { l.index = x }
}

// WithLogger sets the logger used for index degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// Open opens (or creates) the record journal at path. With an index, the
// index is rebuilt from the journal before Open returns.
func Open(path string, opts ...Option) (*Log, error) {
	j, err := openJournal(path)
	if err != nil {
		return nil, err
	}
	l := &Log{j: j, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(l)
	}

	if l.index != nil {
		offsets := make(map[string]int64)
		err := l.scan(func(offset int64, rec model.AuditRecord) error {
			offsets[rec.TraceID] = offset
			return nil
		})
		if err == nil {
			err = l.index.Reset(offsets)
		}
		if err != nil {
			l.logger.Warn("audit index rebuild failed, reads will scan", "path", path, "error", err)
		} else {
			l.indexOK.Store(true)
		}
	}
	return l, nil
}

// Path returns the journal file path.
func (l *Log) Path() string { return l.j.path }

// Append writes rec as a new line, setting its PrevHash.
// Failures are *model.StorageError.
func (l *Log) Append(rec model.AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	offset, err := l.j.append(func(prevHash string) ([]byte, error) {
		rec.PrevHash = prevHash
		return json.Marshal(rec)
	})
	if err != nil {
		return &model.StorageError{Op: "append record", Err: err}
	}

	if l.index != nil && l.indexOK.Load() {
		if err := l.index.Put(rec.TraceID, offset); err != nil {
			l.indexOK.Store(false)
			l.logger.Warn("audit index disabled, reads will scan", "path", l.j.path, "error", err)
		}
	}
	return nil
}

// Get returns the current state of traceID: its last appended line.
func (l *Log) Get(traceID string) (model.AuditRecord, error) {
	if rec, ok := l.getIndexed(traceID); ok {
		return rec, nil
	}

	var found *model.AuditRecord
	err := l.scan(func(_ int64, rec model.AuditRecord) error {
		if rec.TraceID == traceID {
			r := rec
			found = &r
		}
		return nil
	})
	if err != nil {
		return model.AuditRecord{}, &model.StorageError{Op: "read records", Err: err}
	}
	if found == nil {
		return model.AuditRecord{}, &model.NotFoundError{TraceID: traceID}
	}
	return *found, nil
}

func (l *Log) getIndexed(traceID string) (model.AuditRecord, bool) {
	if l.index == nil || !l.indexOK.Load() {
		return model.AuditRecord{}, false
	}
	offset, ok, err := l.index.Lookup(traceID)
	if err != nil || !ok {
		// A miss still falls through to the scan so the journal decides.
		return model.AuditRecord{}, false
	}
	line, err := readLineAt(l.j.path, offset)
	if err != nil {
		return model.AuditRecord{}, false
	}
	var rec model.AuditRecord
	if err := json.Unmarshal(line, &rec); err != nil || rec.TraceID != traceID {
		return model.AuditRecord{}, false
	}
	return rec, true
}

// ListRecent returns up to limit most recently appended lines, oldest first.
// limit <= 0 means DefaultListLimit; larger values are capped at MaxListLimit.
func (l *Log) ListRecent(limit int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	ring := make([]model.AuditRecord, limit)
	n := 0
	err := l.scan(func(_ int64, rec model.AuditRecord) error {
		ring[n%limit] = rec
		n++
		return nil
	})
	if err != nil {
		return nil, &model.StorageError{Op: "read records", Err: err}
	}

	count := min(n, limit)
	out := make([]model.AuditRecord, 0, count)
	for i := n - count; i < n; i++ {
		out = append(out, ring[i%limit])
	}
	return out, nil
}

// SearchByRisk returns the current state of every trace whose risk level is
// level, in order of each trace's first appearance.
func (l *Log) SearchByRisk(level model.RiskLevel) ([]model.AuditRecord, error) {
	var order []string
	current := make(map[string]model.AuditRecord)
	err := l.scan(func(_ int64, rec model.AuditRecord) error {
		if _, seen := current[rec.TraceID]; !seen {
			order = append(order, rec.TraceID)
		}
		current[rec.TraceID] = rec
		return nil
	})
	if err != nil {
		return nil, &model.StorageError{Op: "read records", Err: err}
	}

	out := []model.AuditRecord{}
	for _, id := range order {
		if rec := current[id]; rec.Response.RiskLevel == level {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Revisions counts lines per trace ID. A trace reviewed n times has n+1.
func (l *Log) Revisions() (map[string]int, error) {
	counts := make(map[string]int)
	err := l.scan(func(_ int64, rec model.AuditRecord) error {
		counts[rec.TraceID]++
		return nil
	})
	if err != nil {
		return nil, &model.StorageError{Op: "read records", Err: err}
	}
	return counts, nil
}

// Close closes the journal and the index, if any.
func (l *Log) Close() error {
	err := l.j.close()
	if l.index != nil {
		if ierr := l.index.Close(); err == nil {
			err = ierr
		}
	}
	return err
}

// scan decodes every well-formed record line. Malformed lines and lines
// without a trace ID are skipped.
func (l *Log) scan(fn func(offset int64, rec model.AuditRecord) error) error {
	return scanLines(l.j.path, func(offset int64, line []byte) error {
		var rec model.AuditRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.TraceID == "" {
			return nil
		}
		return fn(offset, rec)
	})
}
