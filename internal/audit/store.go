package audit

import (
	"context"
	"strings"
)

// Store persists sessions and events. Implementations must keep events
// append-only and assign strictly increasing IDs even under concurrent
// writers; there is deliberately no update or delete operation.
type Store interface {
	// RecordSession inserts the session if absent. Re-recording an existing
	// session is a no-op, preserving first-contact data.
	RecordSession(ctx context.Context, s Session) error

	// RecordEvent appends the event and returns the assigned ID.
	RecordEvent(ctx context.Context, e Event) (int64, error)

	// ListEvents returns newest-first events matching the filter, a
	// case-insensitive substring applied across action, path, payload, and
	// ip. An empty filter matches everything.
	ListEvents(ctx context.Context, filter string, limit, offset int) ([]Event, error)

	// CountEvents returns the total number of events matching the filter.
	CountEvents(ctx context.Context, filter string) (int64, error)

	// ListSessions returns one summary per session, most recent activity
	// first; sessions with no events sort last.
	ListSessions(ctx context.Context) ([]SessionSummary, error)

	// Close releases the underlying storage handle.
	Close() error
}

// Open selects a store implementation from the database URL. Postgres URLs go
// to lib/pq; everything else is treated as a sqlite path, the embedded
// default.
func Open(databaseURL string) (Store, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return OpenPostgres(databaseURL)
	}
	return OpenSQLite(databaseURL)
}

func matchesFilter(e Event, filter string) bool {
	if filter == "" {
		return true
	}
	needle := strings.ToLower(filter)
	for _, field := range []string{e.Action, e.Path, e.Payload, e.IP} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
