package watcher

import (
	"sync"
	"time"
)

// Queue is the shared list of coalesced events waiting for dispatch. Every
// watcher pushes into it and the dispatcher drains it; one mutex covers both.
type Queue struct {
	mu     sync.Mutex
	events []Event
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Push adds e, merging it with a pending event for the same file where the
// coalescing rules allow:
//   - a MODIFY refreshes the timestamp of a pending CREATE or MODIFY
//   - a DELETE cancels a pending CREATE outright
//   - a MOVE onto its own path is dropped
//
// It reports whether the queue changed.
func (q *Queue) Push(e Event) bool {
	if e.Kind == KindMove && e.Path() == e.NewPath() {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	switch e.Kind {
	case KindModify:
		if i := q.latest(e); i >= 0 {
			if k := q.events[i].Kind; k == KindCreate || k == KindModify {
				q.events[i].At = e.At
				return true
			}
		}
	case KindDelete:
		if i := q.latest(e); i >= 0 && q.events[i].Kind == KindCreate {
			q.events = append(q.events[:i], q.events[i+1:]...)
			return true
		}
	}
	q.events = append(q.events, e)
	return true
}

// latest returns the index of the newest queued event for e's file, or -1.
// Anything queued after it for the same file would have been found first.
func (q *Queue) latest(e Event) int {
	for i := len(q.events) - 1; i >= 0; i-- {
		if sameSubject(q.events[i], e) {
			return i
		}
	}
	return -1
}

// DrainStable removes and returns, in queue order, every event older than
// debounce. An event also waits while an earlier event for the same file is
// still debouncing, so one file's changes never overtake each other.
func (q *Queue) DrainStable(now time.Time, debounce time.Duration) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []Event
	kept := q.events[:0]
	for _, e := range q.events {
		if now.Sub(e.At) < debounce || heldBack(kept, e) {
			kept = append(kept, e)
			continue
		}
		ready = append(ready, e)
	}
	clear(q.events[len(kept):])
	q.events = kept
	return ready
}

// Requeue puts events that could not be delivered back at the front of the
// queue, ahead of anything pushed since they were drained
func (q *Queue) Requeue(events []Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(append(make([]Event, 0, len(events)+len(q.events)), events...), q.events...)
}

func heldBack(kept []Event, e Event) bool {
	for _, k := range kept {
		if sameSubject(k, e) {
			return true
		}
	}
	return false
}

// Len returns the number of queued events
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Snapshot returns a copy of the queued events
func (q *Queue) Snapshot() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Event(nil), q.events...)
}
