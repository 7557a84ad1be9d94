// Package changelog keeps the bounded, versioned history of queue mutations
// that lets clients catch up incrementally instead of reloading the queue.
package changelog

import (
	"encmirror/internal/event"
	"encmirror/internal/model"
)

// DefaultCapacity is the number of records retained when none is configured.
const DefaultCapacity = 1000

// Change is one queue mutation as replayed by clients.
type Change struct {
	Type     event.UpdateType `json:"type"`
	ID       int64            `json:"id"`
	Position int              `json:"position,omitempty"`
	Job      *model.Job       `json:"job,omitempty"`
}

// Record pairs a change with the version it produced.
type Record struct {
	Version uint64 `json:"version"`
	Change  Change `json:"change"`
}

func (r Record) clone() Record {
	if r.Change.Job != nil {
		job := r.Change.Job.Clone()
		r.Change.Job = &job
	}
	return r
}

// Log is a bounded FIFO of records with strictly consecutive versions. It is
// not safe for concurrent use.
type Log struct {
	capacity int
	records  []Record
}

// New returns an empty log retaining at most capacity records.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Append records change at version. The caller guarantees version is exactly
// one past the previous record; anything else restarts the log so it never
// holds a gap.
func (l *Log) Append(version uint64, change Change) {
	if n := len(l.records); n > 0 && l.records[n-1].Version+1 != version {
		l.Reset()
	}
	l.records = append(l.records, Record{Version: version, Change: change}.clone())
	if over := len(l.records) - l.capacity; over > 0 {
		n := copy(l.records, l.records[over:])
		clear(l.records[n:])
		l.records = l.records[:n]
	}
}

// Reset drops every record.
func (l *Log) Reset() {
	clear(l.records)
	l.records = l.records[:0]
}

// Len reports the number of retained records.
func (l *Log) Len() int { return len(l.records) }

// Oldest returns the version of the oldest retained record.
func (l *Log) Oldest() (uint64, bool) {
	if len(l.records) == 0 {
		return 0, false
	}
	return l.records[0].Version, true
}

// Newest returns the version of the newest retained record.
func (l *Log) Newest() (uint64, bool) {
	if len(l.records) == 0 {
		return 0, false
	}
	return l.records[len(l.records)-1].Version, true
}

// Base returns the version the retained history starts from: a client at
// Base or later can be brought current from the log alone.
func (l *Log) Base() (uint64, bool) {
	oldest, ok := l.Oldest()
	if !ok {
		return 0, false
	}
	return oldest - 1, true
}

// Since returns copies of every record with a version greater than since,
// oldest first. ok is false when records the caller needs have been evicted,
// so the caller must resync from a snapshot instead.
func (l *Log) Since(since uint64) (records []Record, ok bool) {
	base, has := l.Base()
	if !has || since < base {
		return nil, false
	}
	for _, rec := range l.records {
		if rec.Version > since {
			records = append(records, rec.clone())
		}
	}
	return records, true
}
