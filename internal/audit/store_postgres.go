package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore backs deployments where the decoy shares a database server
// with other infrastructure. BIGSERIAL keeps event IDs strictly increasing
// and never reused; concurrency is serialized by the database itself.
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS decoy_sessions (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	first_ip   TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS decoy_events (
	id         BIGSERIAL PRIMARY KEY,
	ts         TIMESTAMPTZ NOT NULL,
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

// OpenPostgres connects with lib/pq and applies the schema.
func OpenPostgres(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres database: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) RecordSession(ctx context.Context, sess Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decoy_sessions (id, created_at, first_ip, user_agent)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.CreatedAt, sess.FirstIP, sess.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordEvent(ctx context.Context, e Event) (int64, error) {
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO decoy_events (ts, session_id, ip, user_agent, method, path, action, payload, referer, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		e.TS, e.SessionID, e.IP, e.UserAgent, e.Method, e.Path, e.Action, e.Payload, e.Referer, e.Note,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter string, limit, offset int) ([]Event, error) {
	query := `SELECT id, ts, session_id, ip, user_agent, method, path, action, payload, referer, note
		FROM decoy_events` + postgresFilterClause(filter)

	args := postgresFilterArgs(filter)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *PostgresStore) CountEvents(ctx context.Context, filter string) (int64, error) {
	query := `SELECT COUNT(*) FROM decoy_events` + postgresFilterClause(filter)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, postgresFilterArgs(filter)...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.created_at, s.first_ip, s.user_agent,
		       MAX(e.ts) AS last_event_at, COUNT(e.id) AS event_count
		FROM decoy_sessions s
		LEFT JOIN decoy_events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY MAX(e.ts) DESC NULLS LAST, s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var (
			summary SessionSummary
			lastAt  sql.NullTime
		)
		err := rows.Scan(&summary.ID, &summary.CreatedAt, &summary.FirstIP,
			&summary.UserAgent, &lastAt, &summary.EventCount)
		if err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		if lastAt.Valid {
			ts := lastAt.Time
			summary.LastEventAt = &ts
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session summaries: %w", err)
	}
	return summaries, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func postgresFilterClause(filter string) string {
	if filter == "" {
		return ""
	}
	return ` WHERE action ILIKE $1 OR path ILIKE $1 OR payload ILIKE $1 OR ip ILIKE $1`
}

func postgresFilterArgs(filter string) []any {
	if filter == "" {
		return nil
	}
	return []any{"%" + strings.ToLower(filter) + "%"}
}
