// Package journal persists an audit trail of provisioning and excision
// operations in SQLite: one row per operation, updated in place when the
// operation finishes. The engine itself keeps no state between requests;
// the journal exists for the service surfaces that want history.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	_ "github.com/mattn/go-sqlite3"
)

// Kind classifies an operation.
type Kind string

const (
	KindProvision Kind = "provision"
	KindExcision  Kind = "excision"
)

// Status tracks an operation's lifecycle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry is one journaled operation. Target is whatever the operation
// acted on: the working copy root for an excision, the repository URL
// for a provisioning run.
type Entry struct {
	ID            string
	Kind          Kind
	Target        string
	Module        string
	AffectedFiles []string
	Status        Status
	Error         string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// Journal is the SQLite-backed operation log.
type Journal struct {
	db  *sql.DB
	clk clock.Clock
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock substitutes the clock used for operation timestamps.
func WithClock(clk clock.Clock) Option {
	return func(j *Journal) {
		j.clk = clk
	}
}

// Open opens the journal database at path with WAL mode enabled and
// ensures the schema exists.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}
	j := &Journal{db: db, clk: clock.WallClock}
	for _, opt := range opts {
		opt(j)
	}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	if _, err := j.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS operations (
  id             TEXT PRIMARY KEY,
  kind           TEXT NOT NULL,
  target         TEXT NOT NULL,
  module         TEXT,
  affected_files TEXT,
  status         TEXT NOT NULL,
  error          TEXT,
  started_at     TIMESTAMP NOT NULL,
  finished_at    TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_operations_target ON operations(target);
CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_at);
`

// Begin records the start of an operation and returns its ID.
func (j *Journal) Begin(kind Kind, target, module string) (string, error) {
	id := uuid.NewString()
	now := j.clk.Now().UTC()
	_, err := j.db.Exec(
		`INSERT INTO operations (id, kind, target, module, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(kind), target, module, string(StatusRunning), now,
	)
	if err != nil {
		return "", fmt.Errorf("journal begin: %w", err)
	}
	return id, nil
}

// Finish closes out an operation: succeeded with its affected files, or
// failed with the error's text.
func (j *Journal) Finish(id string, affected []string, opErr error) error {
	status := StatusSucceeded
	errText := ""
	if opErr != nil {
		status = StatusFailed
		errText = opErr.Error()
	}
	filesJSON, err := json.Marshal(affected)
	if err != nil {
		return fmt.Errorf("journal marshal affected files: %w", err)
	}
	now := j.clk.Now().UTC()
	res, err := j.db.Exec(
		`UPDATE operations SET affected_files = ?, status = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		string(filesJSON), string(status), errText, now, id,
	)
	if err != nil {
		return fmt.Errorf("journal finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal finish rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("journal finish: no operation with id %s", id)
	}
	return nil
}

// Get returns one entry by ID, or nil when it does not exist.
func (j *Journal) Get(id string) (*Entry, error) {
	rows, err := j.db.Query(selectColumns+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("journal get: %w", err)
	}
	defer rows.Close()
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// List returns the most recent operations, newest first. A non-positive
// limit means no limit.
func (j *Journal) List(limit int) ([]Entry, error) {
	query := selectColumns + " ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal list: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListByTarget returns the operations recorded against one target,
// newest first.
func (j *Journal) ListByTarget(target string) ([]Entry, error) {
	rows, err := j.db.Query(selectColumns+" WHERE target = ? ORDER BY started_at DESC, id", target)
	if err != nil {
		return nil, fmt.Errorf("journal list by target: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

const selectColumns = `SELECT id, kind, target, module, affected_files, status, error, started_at, finished_at
FROM operations`

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			module   sql.NullString
			files    sql.NullString
			errText  sql.NullString
			finished sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Target, &module, &files,
			&e.Status, &errText, &e.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("journal scan entry: %w", err)
		}
		e.Module = module.String
		e.Error = errText.String
		if files.Valid && files.String != "" {
			if err := json.Unmarshal([]byte(files.String), &e.AffectedFiles); err != nil {
				return nil, fmt.Errorf("journal decode affected files: %w", err)
			}
		}
		if finished.Valid {
			t := finished.Time
			e.FinishedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
