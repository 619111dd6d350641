// Package events records UI-facing state changes so a dashboard can poll
// them instead of being driven by blocking alerts.
package events

import (
	"sync"
	"time"
)

// Type identifies an event.
type Type string

const (
	RowProcessing    Type = "row_processing"
	RowIdle          Type = "row_idle"
	ProgressShown    Type = "progress_shown"
	ProgressUpdated  Type = "progress_updated"
	ProgressHidden   Type = "progress_hidden"
	JobCompleted     Type = "job_completed"
	JobStalled       Type = "job_stalled"
	JobRecovered     Type = "job_recovered"
	SubmissionFailed Type = "submission_failed"
	LineageRefreshed Type = "lineage_refreshed"
)

// Event is one state change. Seq increases monotonically per Log.
type Event struct {
	Seq    uint64         `json:"seq" yaml:"seq"`
	Type   Type           `json:"type" yaml:"type"`
	BookID string         `json:"book_id,omitempty" yaml:"book_id,omitempty"`
	Time   time.Time      `json:"time" yaml:"time"`
	Data   map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(typ Type, bookID string, data map[string]any) Event
}

// DefaultCapacity is the number of events retained by NewLog(0).
const DefaultCapacity = 1000

// Log is a bounded in-memory event ring with per-book row state.
type Log struct {
	mu       sync.RWMutex
	capacity int
	events   []Event
	seq      uint64
	rows     map[string]RowState
	now      func() time.Time
}

// RowState is the derived dashboard state of a book row.
type RowState struct {
	Processing bool   `json:"processing" yaml:"processing"`
	Badge      string `json:"badge,omitempty" yaml:"badge,omitempty"`
	Stalled    bool   `json:"stalled,omitempty" yaml:"stalled,omitempty"`
}

// NewLog creates a log that keeps the most recent capacity events.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		rows:     make(map[string]RowState),
		now:      time.Now,
	}
}

// Publish appends an event and updates row state.
func (l *Log) Publish(typ Type, bookID string, data map[string]any) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	ev := Event{Seq: l.seq, Type: typ, BookID: bookID, Time: l.now().UTC(), Data: data}
	l.events = append(l.events, ev)
	if over := len(l.events) - l.capacity; over > 0 {
		l.events = append(l.events[:0:0], l.events[over:]...)
	}
	l.applyRow(ev)
	return ev
}

func (l *Log) applyRow(ev Event) {
	if ev.BookID == "" {
		return
	}
	row := l.rows[ev.BookID]
	switch ev.Type {
	case RowProcessing:
		row = RowState{Processing: true, Badge: "processing"}
	case RowIdle:
		row.Processing = false
		row.Stalled = false
		row.Badge = ""
	case JobCompleted:
		if status, ok := ev.Data["status"].(string); ok {
			row.Badge = status
		}
	case JobStalled:
		row.Stalled = true
		row.Badge = "stalled"
	case JobRecovered:
		row.Stalled = false
		if row.Processing {
			row.Badge = "processing"
		}
	default:
		return
	}
	l.rows[ev.BookID] = row
}

// Since returns retained events with Seq greater than seq, oldest first.
func (l *Log) Since(seq uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []Event{}
	for _, ev := range l.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// LastSeq returns the sequence number of the newest event.
func (l *Log) LastSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// Row returns the row state for a book.
func (l *Log) Row(bookID string) RowState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rows[bookID]
}
