// Package history keeps a local ledger of submitted jobs so they can be listed
// and resumed later. It never feeds job state back into the store.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/observability"
)

// ErrNotFound is returned when no matching entry exists.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id          TEXT PRIMARY KEY,
	source_filename TEXT NOT NULL,
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	submitted_at    INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_submitted_at ON jobs (submitted_at);
`

// Entry is one ledger row.
type Entry struct {
	JobID          string        `json:"job_id"`
	SourceFilename string        `json:"source_filename"`
	Status         domain.Status `json:"status"`
	Error          string        `json:"error,omitempty"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Ledger is a SQLite-backed job ledger.
type Ledger struct {
	db     *sql.DB
	now    func() time.Time
	logger *observability.Logger
}

// Open opens or creates the ledger at path. ":memory:" gives a private
// in-memory ledger.
func Open(path string, logger *observability.Logger) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, domain.IOError("Cannot create history directory", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: sqlite serializes writers and :memory: is per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}

	return &Ledger{
		db:     db,
		now:    time.Now,
		logger: observability.OrNop(logger).WithOperation("history"),
	}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record adds a freshly submitted job in the queued state. Recording the
// same id twice keeps the first entry.
func (l *Ledger) Record(ctx context.Context, jobID, sourceFilename string) error {
	now := l.now().UnixNano()
	query := `
		INSERT OR IGNORE INTO jobs (job_id, source_filename, status, error, submitted_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?)
	`
	if _, err := l.db.ExecContext(ctx, query, jobID, sourceFilename, string(domain.StatusQueued), now, now); err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	l.logger.Debug().Str("job_id", jobID).Str("file", sourceFilename).Msg("Job recorded")
	return nil
}

// MarkStatus stores the latest observed status and failure text for jobID.
// sourceFilename fills in the name of a job recorded without one (a resumed
// id); a known name is kept. A terminal entry is never moved back to a
// non-terminal one.
func (l *Ledger) MarkStatus(ctx context.Context, jobID string, status domain.Status, errText, sourceFilename string) error {
	query := `
		UPDATE jobs SET
			status = ?,
			error = ?,
			source_filename = CASE WHEN source_filename = '' THEN ? ELSE source_filename END,
			updated_at = ?
		WHERE job_id = ? AND status NOT IN (?, ?)
	`
	res, err := l.db.ExecContext(ctx, query,
		string(status), errText, sourceFilename, l.now().UnixNano(), jobID,
		string(domain.StatusCompleted), string(domain.StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n == 0 {
		if _, err := l.Get(ctx, jobID); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the entry for jobID.
func (l *Ledger) Get(ctx context.Context, jobID string) (*Entry, error) {
	query := `
		SELECT job_id, source_filename, status, error, submitted_at, updated_at
		FROM jobs WHERE job_id = ?
	`
	return scanEntry(l.db.QueryRowContext(ctx, query, jobID))
}

// Latest returns the most recently submitted job that has not reached a
// terminal state.
func (l *Ledger) Latest(ctx context.Context) (*Entry, error) {
	query := `
		SELECT job_id, source_filename, status, error, submitted_at, updated_at
		FROM jobs WHERE status NOT IN (?, ?)
		ORDER BY submitted_at DESC, rowid DESC LIMIT 1
	`
	return scanEntry(l.db.QueryRowContext(ctx, query,
		string(domain.StatusCompleted), string(domain.StatusFailed)))
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT job_id, source_filename, status, error, submitted_at, updated_at
		FROM jobs ORDER BY submitted_at DESC, rowid DESC LIMIT ?
	`
	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                    Entry
		status               string
		submitted, updatedAt int64
	)
	err := row.Scan(&e.JobID, &e.SourceFilename, &status, &e.Error, &submitted, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	e.Status = domain.Status(status)
	e.SubmittedAt = time.Unix(0, submitted)
	e.UpdatedAt = time.Unix(0, updatedAt)
	return &e, nil
}
