package watcher

import (
	"context"
	"slices"
	"testing"
	"time"
)

func ev(kind Kind, name string, at time.Time) Event {
	return Event{Kind: kind, Root: p(), Dir: p("d"), Name: name, At: at}
}

// =============================================================================
// Coalescing
// =============================================================================

func TestQueueModifyRefreshesPending(t *testing.T) {
	tests := []struct {
		name  string
		first Kind
	}{
		{"after create", KindCreate},
		{"after modify", KindModify},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			q.Push(ev(tt.first, "f", t0))
			q.Push(ev(KindModify, "f", t0.Add(time.Second)))

			got := q.Snapshot()
			if len(got) != 1 {
				t.Fatalf("queue = %v, want one event", got)
			}
			if got[0].Kind != tt.first || !got[0].At.Equal(t0.Add(time.Second)) {
				t.Errorf("got %v at %v", got[0].Kind, got[0].At)
			}
		})
	}
}

func TestQueueNameCase(t *testing.T) {
	tests := []struct {
		name   string
		fold   bool
		events []Event
		want   int
	}{
		{"modify folds on case-insensitive systems", true, []Event{
			ev(KindModify, "Report.PDF", t0),
			ev(KindModify, "report.pdf", t0.Add(time.Second)),
		}, 1},
		{"modify keeps distinct names apart", false, []Event{
			ev(KindModify, "Report.PDF", t0),
			ev(KindModify, "report.pdf", t0.Add(time.Second)),
		}, 2},
		{"delete cancels create on case-insensitive systems", true, []Event{
			ev(KindCreate, "a.txt", t0),
			ev(KindDelete, "A.TXT", t0),
		}, 0},
		{"delete of another file leaves create alone", false, []Event{
			ev(KindCreate, "a.txt", t0),
			ev(KindDelete, "A.TXT", t0),
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func(old bool) { foldCase = old }(foldCase)
			foldCase = tt.fold

			q := NewQueue()
			for _, e := range tt.events {
				q.Push(e)
			}
			if q.Len() != tt.want {
				t.Errorf("len = %d, want %d: %v", q.Len(), tt.want, q.Snapshot())
			}
		})
	}
}

func TestQueueModifyAfterDeleteIsKept(t *testing.T) {
	q := NewQueue()
	q.Push(ev(KindModify, "f", t0))
	q.Push(ev(KindDelete, "f", t0))
	q.Push(ev(KindModify, "f", t0))
	if q.Len() != 3 {
		t.Errorf("len = %d, a modify after a delete starts a new change", q.Len())
	}
}

func TestQueueDeleteCancelsCreate(t *testing.T) {
	q := NewQueue()
	q.Push(ev(KindCreate, "tmp", t0))
	q.Push(ev(KindModify, "tmp", t0))
	q.Push(ev(KindDelete, "tmp", t0))
	if q.Len() != 0 {
		t.Errorf("create then delete should leave nothing, got %v", q.Snapshot())
	}
}

func TestQueueDeleteAfterModifyIsQueued(t *testing.T) {
	q := NewQueue()
	q.Push(ev(KindModify, "f", t0))
	q.Push(ev(KindDelete, "f", t0))

	if got := kinds(q.Snapshot()); !sameKinds(got, []Kind{KindModify, KindDelete}) {
		t.Errorf("kinds = %v", got)
	}
}

func TestQueueDropsMoveOntoItself(t *testing.T) {
	q := NewQueue()
	e := ev(KindMove, "f", t0)
	e.NewDir, e.NewName = e.Dir, e.Name
	if q.Push(e) || q.Len() != 0 {
		t.Error("a move onto the same path should be dropped")
	}
}

func TestQueueSeparatesRoots(t *testing.T) {
	q := NewQueue()
	a := ev(KindCreate, "f", t0)
	b := a
	b.Root = p("other")
	q.Push(a)
	q.Push(b)
	if q.Len() != 2 {
		t.Errorf("events from different roots must not merge, len = %d", q.Len())
	}
}

// =============================================================================
// Draining
// =============================================================================

func TestDrainStableKeepsYoungEvents(t *testing.T) {
	debounce := 500 * time.Millisecond
	q := NewQueue()
	q.Push(ev(KindCreate, "old", t0))
	q.Push(ev(KindCreate, "young", t0.Add(400*time.Millisecond)))
	q.Push(ev(KindDelete, "gone", t0.Add(450*time.Millisecond)))
	q.Push(ev(KindModify, "edited", t0.Add(100*time.Millisecond)))
	q.Push(ev(KindDelete, "removed", t0.Add(50*time.Millisecond)))

	ready := q.DrainStable(t0.Add(600*time.Millisecond), debounce)
	if got := names(ready); !slices.Equal(got, []string{"old", "edited", "removed"}) {
		t.Errorf("ready = %v, want [old edited removed] in queue order", got)
	}
	if got := names(q.Snapshot()); !slices.Equal(got, []string{"young", "gone"}) {
		t.Errorf("left = %v, want [young gone]", got)
	}
}

func TestDrainStableKeepsFileOrder(t *testing.T) {
	debounce := 500 * time.Millisecond
	q := NewQueue()
	q.Push(ev(KindModify, "f", t0))
	q.Push(ev(KindDelete, "f", t0.Add(100*time.Millisecond)))

	if ready := q.DrainStable(t0.Add(200*time.Millisecond), debounce); len(ready) != 0 {
		t.Fatalf("nothing is stable yet, got %v", ready)
	}
	ready := q.DrainStable(t0.Add(time.Second), debounce)
	if got := kinds(ready); !sameKinds(got, []Kind{KindModify, KindDelete}) {
		t.Errorf("kinds = %v, want [MODIFY DELETE]", got)
	}
}

func TestDrainStableHoldsBehindDebouncingEvent(t *testing.T) {
	debounce := 500 * time.Millisecond
	q := NewQueue()
	q.Push(ev(KindCreate, "other", t0))
	q.Push(ev(KindModify, "f", t0.Add(300*time.Millisecond)))
	// stamped earlier than the modify it follows
	q.Push(ev(KindDelete, "f", t0.Add(100*time.Millisecond)))

	ready := q.DrainStable(t0.Add(700*time.Millisecond), debounce)
	if got := names(ready); !slices.Equal(got, []string{"other"}) {
		t.Errorf("ready = %v, want [other]", got)
	}
	if got := kinds(q.Snapshot()); !sameKinds(got, []Kind{KindModify, KindDelete}) {
		t.Errorf("left = %v, want [MODIFY DELETE]", got)
	}

	ready = q.DrainStable(t0.Add(900*time.Millisecond), debounce)
	if got := kinds(ready); !sameKinds(got, []Kind{KindModify, KindDelete}) {
		t.Errorf("kinds = %v, want [MODIFY DELETE]", got)
	}
}

func TestQueueRequeue(t *testing.T) {
	q := NewQueue()
	q.Push(ev(KindCreate, "a", t0))
	q.Push(ev(KindCreate, "b", t0))
	batch := q.DrainStable(t0.Add(time.Second), 0)
	q.Push(ev(KindCreate, "c", t0.Add(time.Second)))

	q.Requeue(batch)
	if got := names(q.Snapshot()); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("queue = %v, want [a b c]", got)
	}
	q.Requeue(nil)
	if q.Len() != 3 {
		t.Errorf("len = %d after empty requeue", q.Len())
	}
}

func names(events []Event) []string {
	var out []string
	for _, e := range events {
		out = append(out, e.Name)
	}
	return out
}

func TestDebounceIdempotence(t *testing.T) {
	q := NewQueue()
	sink := NewChannelSink(4)
	d := NewDispatcher(q, sink, 100*time.Millisecond, 500*time.Millisecond, nil)

	now := t0
	d.SetClock(func() time.Time { return now })

	q.Push(ev(KindModify, "f", t0))
	q.Push(ev(KindModify, "f", t0.Add(100*time.Millisecond)))

	now = t0.Add(550 * time.Millisecond)
	if n, err := d.Pass(context.Background()); err != nil || n != 0 {
		t.Fatalf("refreshed modify should still be debouncing, dispatched %d (%v)", n, err)
	}

	now = t0.Add(700 * time.Millisecond)
	n, err := d.Pass(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("dispatched %d (%v), want 1", n, err)
	}
	batch, ok := sink.TryNext()
	if !ok || len(batch) != 1 {
		t.Fatalf("sink batch = %v", batch)
	}
	if !batch[0].At.Equal(t0.Add(100 * time.Millisecond)) {
		t.Errorf("dispatched modify should carry the later timestamp, got %v", batch[0].At)
	}
}

func TestDispatcherRun(t *testing.T) {
	q := NewQueue()
	sink := NewChannelSink(4)
	d := NewDispatcher(q, sink, 10*time.Millisecond, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	q.Push(Event{Kind: KindCreate, Root: p(), Dir: p(), Name: "f", At: time.Now()})

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	batch, err := sink.Next(waitCtx)
	if err != nil {
		t.Fatalf("no batch dispatched: %v", err)
	}
	if len(batch) != 1 || batch[0].Name != "f" {
		t.Errorf("batch = %v", batch)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestDispatcherSinkError(t *testing.T) {
	q := NewQueue()
	failing := SinkFunc(func(context.Context, []Event) error { return context.DeadlineExceeded })
	d := NewDispatcher(q, failing, time.Second, 0, nil)

	q.Push(ev(KindDelete, "f", t0))
	if _, err := d.Pass(context.Background()); err == nil {
		t.Error("expected the sink error to surface")
	}
	if q.Len() != 1 {
		t.Fatalf("undelivered event should stay queued, len = %d", q.Len())
	}

	sink := NewChannelSink(1)
	d = NewDispatcher(q, sink, time.Second, 0, nil)
	if n, err := d.Pass(context.Background()); err != nil || n != 1 {
		t.Fatalf("retry dispatched %d (%v), want 1", n, err)
	}
	if batch, ok := sink.TryNext(); !ok || batch[0].Name != "f" {
		t.Errorf("retried batch = %v", batch)
	}
}

func TestDispatcherCancelledDeliveryKeepsEvents(t *testing.T) {
	q := NewQueue()
	sink := NewChannelSink(1)
	sink.Deliver(context.Background(), []Event{ev(KindCreate, "pending", t0)})
	d := NewDispatcher(q, sink, time.Second, 0, nil)

	q.Push(ev(KindModify, "f", t0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Pass(ctx); err == nil {
		t.Fatal("delivery into a full sink should fail once ctx ends")
	}
	if got := names(q.Snapshot()); !slices.Equal(got, []string{"f"}) {
		t.Errorf("queue = %v, want [f]", got)
	}
}
