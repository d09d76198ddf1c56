package audit

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists events to a SQLite database so decision
// histories survive across runs and can be queried per run id.
type SQLiteRecorder struct {
	mu    sync.Mutex
	db    *sql.DB
	runID string
	seq   int64
	err   error
}

// NewSQLiteRecorder opens or creates the database at path and ensures
// the schema exists.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteRecorder{db: db, runID: uuid.NewString()}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		run_id         TEXT NOT NULL,
		seq            INTEGER NOT NULL,
		time           TEXT NOT NULL,
		stage          TEXT NOT NULL,
		line_index     INTEGER NOT NULL,
		classification TEXT NOT NULL,
		rationale      TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating audit schema: %w", err)
	}
	return nil
}

// Record inserts the event. Insert errors are remembered and reported
// by Close rather than interrupting extraction.
func (r *SQLiteRecorder) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT INTO decisions (run_id, seq, time, stage, line_index, classification, rationale)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.runID, r.seq, ev.Time.Format(time.RFC3339Nano),
		ev.Stage, ev.LineIndex, ev.Classification, ev.Rationale,
	)
	if err != nil && r.err == nil {
		r.err = err
	}
}

// Close closes the database handle.
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.db.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

// RunID returns the identifier stamped on this recorder's events.
func (r *SQLiteRecorder) RunID() string { return r.runID }
