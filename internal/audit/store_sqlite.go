package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the embedded default. A single write mutex on top of the
// driver keeps inserts serialized so AUTOINCREMENT IDs stay strictly
// increasing under concurrent handlers.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS decoy_sessions (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	first_ip   TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS decoy_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         TIMESTAMP NOT NULL,
	session_id TEXT NOT NULL,
	ip         TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	method     TEXT NOT NULL DEFAULT '',
	path       TEXT NOT NULL DEFAULT '',
	action     TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL DEFAULT '',
	referer    TEXT NOT NULL DEFAULT '',
	note       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_decoy_events_session ON decoy_events(session_id);
`

// OpenSQLite opens (and if needed creates) the sqlite database at the given
// path. A "file:" prefix is accepted for parity with the config default.
func OpenSQLite(path string) (*SQLiteStore, error) {
	path = strings.TrimPrefix(path, "file:")
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RecordSession(ctx context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO decoy_sessions (id, created_at, first_ip, user_agent)
		 VALUES (?, ?, ?, ?)`,
		sess.ID, sess.CreatedAt, sess.FirstIP, sess.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, e Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO decoy_events (ts, session_id, ip, user_agent, method, path, action, payload, referer, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TS, e.SessionID, e.IP, e.UserAgent, e.Method, e.Path, e.Action, e.Payload, e.Referer, e.Note,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read event id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, filter string, limit, offset int) ([]Event, error) {
	query := `SELECT id, ts, session_id, ip, user_agent, method, path, action, payload, referer, note
		FROM decoy_events` + sqliteFilterClause(filter) + `
		ORDER BY id DESC LIMIT ? OFFSET ?`

	args := sqliteFilterArgs(filter)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *SQLiteStore) CountEvents(ctx context.Context, filter string) (int64, error) {
	query := `SELECT COUNT(*) FROM decoy_events` + sqliteFilterClause(filter)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, sqliteFilterArgs(filter)...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	// MAX(ts) loses the column's time affinity in sqlite, so the roll-up
	// reads it back as unix seconds instead of relying on driver conversion.
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.created_at, s.first_ip, s.user_agent,
		       CAST(strftime('%s', MAX(e.ts)) AS INTEGER) AS last_event_unix,
		       COUNT(e.id) AS event_count
		FROM decoy_sessions s
		LEFT JOIN decoy_events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY (MAX(e.ts) IS NULL), MAX(e.ts) DESC, s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var (
			summary  SessionSummary
			lastUnix sql.NullInt64
		)
		err := rows.Scan(&summary.ID, &summary.CreatedAt, &summary.FirstIP,
			&summary.UserAgent, &lastUnix, &summary.EventCount)
		if err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		if lastUnix.Valid {
			ts := time.Unix(lastUnix.Int64, 0)
			summary.LastEventAt = &ts
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session summaries: %w", err)
	}
	return summaries, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteFilterClause(filter string) string {
	if filter == "" {
		return ""
	}
	return ` WHERE lower(action) LIKE ? OR lower(path) LIKE ? OR lower(payload) LIKE ? OR lower(ip) LIKE ?`
}

func sqliteFilterArgs(filter string) []any {
	if filter == "" {
		return nil
	}
	needle := "%" + strings.ToLower(filter) + "%"
	return []any{needle, needle, needle, needle}
}

// scanEvents scans event rows in the fixed column order shared by both SQL
// stores.
func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		err := rows.Scan(&e.ID, &e.TS, &e.SessionID, &e.IP, &e.UserAgent,
			&e.Method, &e.Path, &e.Action, &e.Payload, &e.Referer, &e.Note)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
