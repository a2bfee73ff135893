// Package domain defines the core persistence models for the application.
// This file implements the in-memory dedup set used by the notification
// response dispatcher.
package domain

import "sync"

// DedupSet remembers recently handled notification response identifiers so
// that a redelivered response (cold-start replay plus live listener firing
// for the same physical tap) produces exactly one domain side effect.
//
// It is a bounded FIFO set: once Capacity identifiers are held, marking a new
// one evicts the oldest. The zero value is not usable; construct with
// NewDedupSet. Safe for concurrent use; responses can arrive on both the
// scheduler subscription goroutine and the HTTP webhook.
type DedupSet struct {
	mu    sync.Mutex
	cap   int
	seen  map[string]struct{}
	order []string
}

// NewDedupSet returns a DedupSet holding at most capacity identifiers.
// A capacity below 1 defaults to 64.
func NewDedupSet(capacity int) *DedupSet {
	if capacity < 1 {
		capacity = 64
	}
	return &DedupSet{
		cap:  capacity,
		seen: make(map[string]struct{}, capacity),
	}
}

// MarkHandled records id as handled and reports whether it was newly added.
// A false return means the identifier was already present (a duplicate
// delivery) and the caller should discard the event. Empty identifiers are
// never deduplicated.
func (d *DedupSet) MarkHandled(id string) bool {
	if id == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.seen[id]; dup {
		return false
	}
	if len(d.order) >= d.cap {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	return true
}

// Handled reports whether id has been marked without mutating the set.
func (d *DedupSet) Handled(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

// Len returns the number of identifiers currently held.
func (d *DedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}
