// control/journal.go
// Author: momentics <momentics@gmail.com>
//
// Bounded, oldest-first record of recent requests.

package control

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// RequestRecord captures one request as seen by the handler loop.
type RequestRecord struct {
	Peer     string        `json:"peer"`
	Request  string        `json:"request"`
	Response string        `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

// Journal keeps the last capacity request records.
type Journal struct {
	mu       sync.Mutex
	q        *queue.Queue
	capacity int
	dropped  uint64
}

// NewJournal creates a journal; capacity <= 0 disables recording.
func NewJournal(capacity int) *Journal {
	return &Journal{q: queue.New(), capacity: capacity}
}

// Record appends rec, evicting the oldest entry when full.
func (j *Journal) Record(rec RequestRecord) {
	if j.capacity <= 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.q.Length() >= j.capacity {
		j.q.Remove()
		j.dropped++
	}
	j.q.Add(rec)
}

// Snapshot returns a copy of the records, oldest first.
func (j *Journal) Snapshot() []RequestRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]RequestRecord, j.q.Length())
	for i := range out {
		out[i] = j.q.Get(i).(RequestRecord)
	}
	return out
}

// Len returns the number of retained records.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.q.Length()
}

// Dropped returns how many records were evicted.
func (j *Journal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}
