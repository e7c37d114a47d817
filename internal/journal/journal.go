// Package journal records dispatched change events in an embedded SQLite
// database so the backup pipeline can consume them at its own pace.
//
// Each dispatcher pass is stored as one batch with a random batch ID. Rows
// stay pending until acknowledged; acknowledged rows can be pruned.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/fenilsonani/dataguard/internal/watcher"
)

// Entry is one journaled event
type Entry struct {
	ID           int64
	BatchID      string
	Event        watcher.Event
	DispatchedAt time.Time
	AckedAt      time.Time // zero while pending
}

// Journal wraps the SQLite connection
type Journal struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the journal at path and ensures the schema exists.
// The caller must Close it.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	j := &Journal{conn: conn, path: path, now: time.Now}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := j.initSchema(context.Background()); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database file
func (j *Journal) Path() string {
	return j.path
}

// Close checkpoints the WAL and closes the connection
func (j *Journal) Close() error {
	if j.conn == nil {
		return nil
	}
	_, _ = j.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := j.conn.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	j.conn = nil
	return nil
}

func (j *Journal) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		root TEXT NOT NULL,
		dir TEXT NOT NULL,
		name TEXT NOT NULL,
		new_dir TEXT NOT NULL DEFAULT '',
		new_name TEXT NOT NULL DEFAULT '',
		changed_at TEXT NOT NULL,
		dispatched_at TEXT NOT NULL,
		acked_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_pending ON events(acked_at, id);
	CREATE INDEX IF NOT EXISTS idx_events_batch ON events(batch_id);
	`
	if _, err := j.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return nil
}

// Deliver stores events as one batch. It implements watcher.Sink.
func (j *Journal) Deliver(ctx context.Context, events []watcher.Event) error {
	_, err := j.Append(ctx, events)
	return err
}

// Append stores events as one batch and returns the batch ID
func (j *Journal) Append(ctx context.Context, events []watcher.Event) (string, error) {
	if len(events) == 0 {
		return "", nil
	}

	tx, err := j.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO events (batch_id, kind, root, dir, name, new_dir, new_name, changed_at, dispatched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	batchID := uuid.New().String()
	dispatched := formatTime(j.now())
	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			batchID,
			e.Kind.String(),
			e.Root,
			e.Dir,
			e.Name,
			e.NewDir,
			e.NewName,
			formatTime(e.At),
			dispatched,
		); err != nil {
			return "", fmt.Errorf("failed to insert event %s: %w", e, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit batch: %w", err)
	}
	return batchID, nil
}

// Pending returns unacknowledged entries oldest first. A limit <= 0 returns all.
func (j *Journal) Pending(ctx context.Context, limit int) ([]Entry, error) {
	query := `
	SELECT id, batch_id, kind, root, dir, name, new_dir, new_name, changed_at, dispatched_at, acked_at
	FROM events WHERE acked_at IS NULL ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return j.query(ctx, query, args...)
}

// Batch returns every entry of one batch in insertion order
func (j *Journal) Batch(ctx context.Context, batchID string) ([]Entry, error) {
	return j.query(ctx, `
	SELECT id, batch_id, kind, root, dir, name, new_dir, new_name, changed_at, dispatched_at, acked_at
	FROM events WHERE batch_id = ? ORDER BY id`, batchID)
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                         Entry
			kind, changed, dispatched string
			acked                     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &kind, &e.Event.Root, &e.Event.Dir, &e.Event.Name,
			&e.Event.NewDir, &e.Event.NewName, &changed, &dispatched, &acked); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		if e.Event.Kind, err = watcher.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("journal row %d: %w", e.ID, err)
		}
		e.Event.At = parseTime(changed)
		e.DispatchedAt = parseTime(dispatched)
		if acked.Valid {
			e.AckedAt = parseTime(acked.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

// Ack marks the given entries consumed and returns how many were pending
func (j *Journal) Ack(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{formatTime(j.now())}
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := j.conn.ExecContext(ctx,
		`UPDATE events SET acked_at = ? WHERE acked_at IS NULL AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge events: %w", err)
	}
	return res.RowsAffected()
}

// AckBatch marks every entry of a batch consumed
func (j *Journal) AckBatch(ctx context.Context, batchID string) (int64, error) {
	res, err := j.conn.ExecContext(ctx,
		`UPDATE events SET acked_at = ? WHERE acked_at IS NULL AND batch_id = ?`,
		formatTime(j.now()), batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge batch %s: %w", batchID, err)
	}
	return res.RowsAffected()
}

// Prune deletes acknowledged entries dispatched before cutoff
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.conn.ExecContext(ctx,
		`DELETE FROM events WHERE acked_at IS NOT NULL AND dispatched_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Counts returns the number of pending and total entries
func (j *Journal) Counts(ctx context.Context) (pending, total int, err error) {
	err = j.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FILTER (WHERE acked_at IS NULL), COUNT(*) FROM events`).Scan(&pending, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return pending, total, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
