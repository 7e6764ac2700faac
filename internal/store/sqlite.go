package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"otodo-go/internal/otodo"
	"otodo-go/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// timeLayout is how timestamps are stored; RFC 3339 with sub-second
// precision keeps updated_at comparisons exact across the wire.
const timeLayout = time.RFC3339Nano

// SQLiteStore implements otodo.Store on a local SQLite database. A single
// connection is used so concurrent logical callers within the process are
// serialized: last full write wins per record, never interleaved.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (and migrates) a store at path. path can be a file
// path or ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection only: with a pool, each :memory: connection would be
	// a separate database, and the single connection doubles as the
	// process-wide write lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	return db, nil
}

// Task operations

func (s *SQLiteStore) GetAllTasks() ([]otodo.Task, error) {
	rows, err := s.db.Query(`SELECT id, title, description, priority, start_date, due_date,
		completed, starred, created_at, updated_at FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []otodo.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) GetTask(id string) (*otodo.Task, error) {
	row := s.db.QueryRow(`SELECT id, title, description, priority, start_date, due_date,
		completed, starred, created_at, updated_at FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // absent
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) PutTask(task *otodo.Task) error {
	_, err := s.db.Exec(`INSERT INTO tasks
		(id, title, description, priority, start_date, due_date, completed, starred, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			priority = excluded.priority,
			start_date = excluded.start_date,
			due_date = excluded.due_date,
			completed = excluded.completed,
			starred = excluded.starred,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		task.ID, task.Title, task.Description, string(task.Priority),
		task.StartDate, task.DueDate, boolInt(task.Completed), boolInt(task.Starred),
		task.CreatedAt.UTC().Format(timeLayout), task.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upserting task %s: %w", task.ID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTask(id string) error {
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

// Outbox operations

func (s *SQLiteStore) EnqueueOp(entry *otodo.OutboxEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding outbox entry: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if entry.DedupeKey != "" {
		// Supersede in place: the pending entry with the same key keeps
		// its queue position but takes the new op id and payload.
		res, err := tx.Exec(`UPDATE outbox SET op_id = ?, client_id = ?, type = ?, task_id = ?, payload = ?
			WHERE dedupe_key = ?`,
			entry.OpID, entry.ClientID, string(entry.Type), entry.TaskRef(), string(payload), entry.DedupeKey)
		if err != nil {
			return fmt.Errorf("superseding outbox entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("superseding outbox entry: %w", err)
		}
		if n > 0 {
			return tx.Commit()
		}
	}

	dedupe := sql.NullString{String: entry.DedupeKey, Valid: entry.DedupeKey != ""}
	_, err = tx.Exec(`INSERT INTO outbox (op_id, client_id, type, task_id, dedupe_key, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.OpID, entry.ClientID, string(entry.Type), entry.TaskRef(), dedupe, string(payload))
	if err != nil {
		return fmt.Errorf("appending outbox entry: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListOps() ([]otodo.OutboxEntry, error) {
	rows, err := s.db.Query(`SELECT seq, dedupe_key, payload FROM outbox ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var entries []otodo.OutboxEntry
	for rows.Next() {
		var (
			seq     int64
			dedupe  sql.NullString
			payload string
		)
		if err := rows.Scan(&seq, &dedupe, &payload); err != nil {
			return nil, fmt.Errorf("scanning outbox entry: %w", err)
		}
		var entry otodo.OutboxEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("decoding outbox entry: %w", err)
		}
		entry.Seq = seq
		entry.DedupeKey = dedupe.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading outbox: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) ClearOps(opIDs []string) error {
	if len(opIDs) == 0 {
		return nil
	}
	query, args := opIDDelete(opIDs)
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("clearing outbox entries: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountOps() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting outbox entries: %w", err)
	}
	return n, nil
}

// Metadata operations

func (s *SQLiteStore) MetaGet(key string) (json.RawMessage, bool, error) {
	var value sql.NullString
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil // never initialized
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading meta %s: %w", key, err)
	}
	if !value.Valid {
		return nil, true, nil // explicit null
	}
	return json.RawMessage(value.String), true, nil
}

func (s *SQLiteStore) MetaSet(key string, value json.RawMessage) error {
	stored := sql.NullString{String: string(value), Valid: value != nil}
	_, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, stored)
	if err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}

// Sync composite

// ApplySyncResult replaces the whole task collection with the authority's
// returned set and clears the acknowledged outbox entries in one
// transaction, so a failure leaves both untouched.
func (s *SQLiteStore) ApplySyncResult(tasks []otodo.Task, opIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clearing tasks: %w", err)
	}
	for i := range tasks {
		t := &tasks[i]
		_, err := tx.Exec(`INSERT INTO tasks
			(id, title, description, priority, start_date, due_date, completed, starred, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Description, string(t.Priority),
			t.StartDate, t.DueDate, boolInt(t.Completed), boolInt(t.Starred),
			t.CreatedAt.UTC().Format(timeLayout), t.UpdatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", t.ID, err)
		}
	}

	if len(opIDs) > 0 {
		query, args := opIDDelete(opIDs)
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("clearing acknowledged entries: %w", err)
		}
	}
	return tx.Commit()
}

// SnapshotTo creates a complete copy of the store at destPath using
// VACUUM INTO.
func (s *SQLiteStore) SnapshotTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("snapshotting store: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*otodo.Task, error) {
	var (
		t                    otodo.Task
		priority             string
		completed, starred   int
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &t.StartDate, &t.DueDate,
		&completed, &starred, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	t.Priority = otodo.Priority(priority)
	t.Completed = completed != 0
	t.Starred = starred != 0
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}

func opIDDelete(opIDs []string) (string, []any) {
	placeholders := make([]string, len(opIDs))
	args := make([]any, len(opIDs))
	for i, id := range opIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	return "DELETE FROM outbox WHERE op_id IN (" + strings.Join(placeholders, ", ") + ")", args
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time check that SQLiteStore implements otodo.Store.
var _ otodo.Store = (*SQLiteStore)(nil)
