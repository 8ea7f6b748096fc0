// Package ledger keeps a SQLite journal of orchestration sessions and
// every attempt made within them.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/signalnine/flakebench/internal/runner"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id   TEXT PRIMARY KEY,
	eval         TEXT NOT NULL,
	runs         INTEGER NOT NULL,
	max_attempts INTEGER NOT NULL,
	status       TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS attempts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	run_index   INTEGER NOT NULL,
	attempt     INTEGER NOT NULL,
	exit_code   INTEGER NOT NULL,
	timed_out   INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	recorded_at TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
`

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Store wraps the ledger database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Session is one orchestration. It implements runner.Recorder.
type Session struct {
	ID    string
	store *Store
}

// Begin records a new running session.
func (s *Store) Begin(eval string, runs, maxAttempts int) (*Session, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, eval, runs, max_attempts, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, eval, runs, maxAttempts, StatusRunning, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &Session{ID: id, store: s}, nil
}

func (s *Session) RecordAttempt(o runner.AttemptOutcome) error {
	timedOut := 0
	if o.TimedOut {
		timedOut = 1
	}
	_, err := s.store.db.Exec(
		`INSERT INTO attempts (session_id, run_index, attempt, exit_code, timed_out, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, o.RunIndex, o.Attempt, o.ExitCode, timedOut, o.Duration.Milliseconds(), now(),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Finish stamps the session's final status.
func (s *Session) Finish(status string) error {
	_, err := s.store.db.Exec(
		`UPDATE sessions SET status = ?, finished_at = ? WHERE session_id = ?`,
		status, now(), s.ID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

type SessionRow struct {
	ID          string
	Eval        string
	Runs        int
	MaxAttempts int
	Status      string
	StartedAt   time.Time
	Attempts    int
	Failures    int
}

// Sessions lists sessions newest first with attempt and failure counts.
func (s *Store) Sessions() ([]SessionRow, error) {
	rows, err := s.db.Query(`
		SELECT s.session_id, s.eval, s.runs, s.max_attempts, s.status, s.started_at,
		       COUNT(a.id), COALESCE(SUM(CASE WHEN a.exit_code != 0 THEN 1 ELSE 0 END), 0)
		FROM sessions s
		LEFT JOIN attempts a ON a.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at DESC, s.session_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var started string
		if err := rows.Scan(&r.ID, &r.Eval, &r.Runs, &r.MaxAttempts, &r.Status, &started, &r.Attempts, &r.Failures); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Attempts returns a session's attempts in execution order.
func (s *Store) Attempts(sessionID string) ([]runner.AttemptOutcome, error) {
	rows, err := s.db.Query(
		`SELECT run_index, attempt, exit_code, timed_out, duration_ms
		 FROM attempts WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []runner.AttemptOutcome
	for rows.Next() {
		var o runner.AttemptOutcome
		var timedOut int
		var ms int64
		if err := rows.Scan(&o.RunIndex, &o.Attempt, &o.ExitCode, &timedOut, &ms); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		o.TimedOut = timedOut != 0
		o.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

// timeLayout is fixed width so that text order in SQLite is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var clock = time.Now

func now() string {
	return clock().UTC().Format(timeLayout)
}
