package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mirage/internal/platform/metrics"
	"mirage/internal/platform/middleware"
)

// Recorder writes audit data on behalf of decoy handlers. Every write is
// fire-and-forget: a storage failure is logged for the operator and counted,
// but must never change the HTTP response a probing caller sees.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRecorder(store Store, logger *slog.Logger, m *metrics.Metrics) *Recorder {
	return &Recorder{store: store, logger: logger, metrics: m}
}

// TouchSession makes sure a session record exists for the caller. Insertion
// is idempotent, so calling it on every decoy request is fine.
func (r *Recorder) TouchSession(req *http.Request) {
	sid := middleware.GetSessionID(req.Context())
	if sid == "" {
		return
	}

	// Detached from the request context so a caller hanging up does not
	// cancel the write mid-flight.
	ctx := context.WithoutCancel(req.Context())
	err := r.store.RecordSession(ctx, Session{
		ID:        sid,
		CreatedAt: time.Now(),
		FirstIP:   ClientIP(req),
		UserAgent: req.UserAgent(),
	})
	if err != nil {
		r.fail(req, "session", err)
	}
}

// Record appends one event describing the raw request. action is the
// caller-declared intent, payload the captured body or query, note is
// reserved for system annotations.
func (r *Recorder) Record(req *http.Request, action, payload, note string) {
	ctx := context.WithoutCancel(req.Context())
	_, err := r.store.RecordEvent(ctx, Event{
		TS:        time.Now(),
		SessionID: middleware.GetSessionID(req.Context()),
		IP:        ClientIP(req),
		UserAgent: req.UserAgent(),
		Method:    req.Method,
		Path:      req.URL.Path,
		Action:    action,
		Payload:   payload,
		Referer:   req.Referer(),
		Note:      note,
	})
	if err != nil {
		r.fail(req, "event", err)
	}
}

func (r *Recorder) fail(req *http.Request, kind string, err error) {
	r.metrics.AuditWriteFailures.Inc()
	r.logger.ErrorContext(req.Context(), "audit write dropped",
		"kind", kind,
		"path", req.URL.Path,
		"error", err,
		"request_id", middleware.GetRequestID(req.Context()),
	)
}

// ClientIP extracts the caller address, preferring the first entry of
// X-Forwarded-For when a reverse proxy is in front.
func ClientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := req.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
