package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirage/internal/platform/metrics"
	"mirage/internal/platform/middleware"
)

// failingStore errors on every write so recorder behavior under storage
// failure can be observed.
type failingStore struct {
	InMemoryStore
}

func (f *failingStore) RecordSession(context.Context, Session) error {
	return errors.New("disk full")
}

func (f *failingStore) RecordEvent(context.Context, Event) (int64, error) {
	return 0, errors.New("disk full")
}

func TestRecorderSwallowsStoreFailures(t *testing.T) {
	m := metrics.NewForTest()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	rec := NewRecorder(&failingStore{}, logger, m)

	req := httptest.NewRequest("POST", "/admin/action", nil)
	req = req.WithContext(middleware.WithSessionID(req.Context(), "sess-1"))

	// Must not panic or surface anything; failures only show up in metrics.
	rec.TouchSession(req)
	rec.Record(req, "probe", "payload", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuditWriteFailures))
}

func TestRecorderWritesRequestFields(t *testing.T) {
	store := NewInMemoryStore()
	m := metrics.NewForTest()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	rec := NewRecorder(store, logger, m)

	req := httptest.NewRequest("POST", "/admin/fake/users?src=panel", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Referer", "http://target/admin")
	req = req.WithContext(middleware.WithSessionID(req.Context(), "sess-9"))

	rec.TouchSession(req)
	rec.Record(req, "fake_user_add", `{"username":"eve"}`, "")

	events, err := store.ListEvents(context.Background(), "", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "sess-9", e.SessionID)
	assert.Equal(t, "203.0.113.7", e.IP)
	assert.Equal(t, "curl/8.0", e.UserAgent)
	assert.Equal(t, "POST", e.Method)
	assert.Equal(t, "/admin/fake/users", e.Path)
	assert.Equal(t, "fake_user_add", e.Action)
	assert.Equal(t, `{"username":"eve"}`, e.Payload)
	assert.Equal(t, "http://target/admin", e.Referer)

	summaries, err := store.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "203.0.113.7", summaries[0].FirstIP)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr only", "198.51.100.4:443", "", "198.51.100.4"},
		{"single forwarded", "10.0.0.1:80", "203.0.113.9", "203.0.113.9"},
		{"forwarded chain takes first", "10.0.0.1:80", "203.0.113.9, 10.0.0.2", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
