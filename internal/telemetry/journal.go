package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"browserprofiles/internal/mutator"

	_ "modernc.org/sqlite"
)

// Entry is one journaled outcome.
type Entry struct {
	ID         int64
	ProfileID  string
	PageID     string
	Mutator    string
	Status     mutator.Status
	Reason     string
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}

// Journal persists outcomes in SQLite.
type Journal struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// OpenJournal opens or creates the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, path: path, now: time.Now}
	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS mutation_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id TEXT NOT NULL,
		page_id TEXT NOT NULL,
		mutator TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_profile ON mutation_outcomes(profile_id, id);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// Append stores one outcome of profileID.
func (j *Journal) Append(ctx context.Context, profileID string, o mutator.Outcome) error {
	errText := ""
	if o.Err != nil {
		errText = o.Err.Error()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO mutation_outcomes (profile_id, page_id, mutator, status, reason, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		profileID, o.PageID, o.Mutator, string(o.Status), o.Reason, errText,
		o.Duration.Milliseconds(), j.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// ListByProfile returns the latest limit outcomes of profileID, oldest
// first. limit <= 0 returns all of them.
func (j *Journal) ListByProfile(ctx context.Context, profileID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, profile_id, page_id, mutator, status, COALESCE(reason, ''), COALESCE(error, ''), duration_ms, created_at
		FROM (
			SELECT * FROM mutation_outcomes WHERE profile_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status, created string
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.PageID, &e.Mutator, &status,
			&e.Reason, &e.Error, &e.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		e.Status = mutator.Status(status)
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Path is the database file.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) Close() error {
	return j.db.Close()
}
