package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fenilsonani/dataguard/internal/watcher"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleEvents(at time.Time) []watcher.Event {
	return []watcher.Event{
		{Kind: watcher.KindCreate, Root: "/r", Dir: "/r/a", Name: "new.txt", At: at},
		{Kind: watcher.KindMove, Root: "/r", Dir: "/r/a", Name: "x", NewDir: "/r/b", NewName: "x", At: at.Add(time.Second)},
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	j := openTestJournal(t)

	var count int
	err := j.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='events'`).Scan(&count)
	if err != nil || count != 1 {
		t.Fatalf("events table missing: %d, %v", count, err)
	}

	// Reopening an existing journal must not fail
	path := j.Path()
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	again.Close()
}

func TestAppendAndPending(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)

	batchID, err := j.Append(ctx, sampleEvents(at))
	if err != nil {
		t.Fatal(err)
	}
	if batchID == "" {
		t.Fatal("expected a batch ID")
	}

	pending, err := j.Pending(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	first, second := pending[0], pending[1]
	if first.BatchID != batchID || second.BatchID != batchID {
		t.Error("both rows should share the batch ID")
	}
	if first.Event.Kind != watcher.KindCreate || first.Event.Path() != filepath.Join("/r/a", "new.txt") {
		t.Errorf("first = %+v", first.Event)
	}
	if !first.Event.At.Equal(at) {
		t.Errorf("timestamp round trip lost precision: %v", first.Event.At)
	}
	if second.Event.Kind != watcher.KindMove || second.Event.NewDir != "/r/b" {
		t.Errorf("second = %+v", second.Event)
	}
	if !first.AckedAt.IsZero() {
		t.Error("new entries should be pending")
	}

	limited, err := j.Pending(ctx, 1)
	if err != nil || len(limited) != 1 || limited[0].ID != first.ID {
		t.Errorf("limited = %v, %v", limited, err)
	}
}

func TestDeliverImplementsSink(t *testing.T) {
	j := openTestJournal(t)
	var sink watcher.Sink = j

	if err := sink.Deliver(context.Background(), sampleEvents(time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := sink.Deliver(context.Background(), nil); err != nil {
		t.Errorf("empty batch should be a no-op: %v", err)
	}
	pending, total, err := j.Counts(context.Background())
	if err != nil || pending != 2 || total != 2 {
		t.Errorf("counts = %d/%d, %v", pending, total, err)
	}
}

func TestAckAndPrune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	first, err := j.Append(ctx, sampleEvents(now))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Append(ctx, sampleEvents(now)); err != nil {
		t.Fatal(err)
	}

	n, err := j.AckBatch(ctx, first)
	if err != nil || n != 2 {
		t.Fatalf("AckBatch = %d, %v", n, err)
	}
	pending, _ := j.Pending(ctx, 0)
	if len(pending) != 2 {
		t.Fatalf("pending after batch ack = %d", len(pending))
	}

	n, err = j.Ack(ctx, pending[0].ID, pending[0].ID)
	if err != nil || n != 1 {
		t.Errorf("Ack = %d, %v", n, err)
	}
	if n, _ := j.Ack(ctx, pending[0].ID); n != 0 {
		t.Errorf("acking twice should change nothing, got %d", n)
	}

	acked, err := j.Batch(ctx, first)
	if err != nil || len(acked) != 2 || !acked[0].AckedAt.Equal(now) {
		t.Errorf("batch = %+v, %v", acked, err)
	}

	pruned, err := j.Prune(ctx, now.Add(time.Minute))
	if err != nil || pruned != 3 {
		t.Errorf("Prune = %d, %v", pruned, err)
	}
	p, total, _ := j.Counts(ctx)
	if p != 1 || total != 1 {
		t.Errorf("counts after prune = %d/%d", p, total)
	}
}
