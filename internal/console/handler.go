// Package console serves the real administrator's view of the audit store:
// paginated logs, CSV export, and the per-session roll-up. Every route is
// mounted behind the admin gate.
package console

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mirage/internal/audit"
	"mirage/internal/platform/middleware"
	dErrors "mirage/pkg/domainerrors"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

const (
	logsPageSize = 50
	exportBatch  = 500
)

// Handler implements the query surface over the audit store.
type Handler struct {
	logger    *slog.Logger
	store     audit.Store
	dashboard *template.Template
}

func New(logger *slog.Logger, store audit.Store) *Handler {
	return &Handler{
		logger:    logger,
		store:     store,
		dashboard: template.Must(template.ParseFS(templateFS, "templates/dashboard.html")),
	}
}

// Register mounts the console under its path prefix behind the admin gate.
func (h *Handler) Register(r chi.Router, prefix string) {
	r.Route(prefix, func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.logger))
		r.Get("/", h.handleDashboard)
		r.Get("/logs", h.handleLogs)
		r.Get("/logs/export", h.handleExport)
		r.Get("/sessions", h.handleSessions)
		r.Handle("/metrics", promhttp.Handler())
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventCount, err := h.store.CountEvents(ctx, "")
	if err != nil {
		h.fail(w, r, "count events", err)
		return
	}
	sessions, err := h.store.ListSessions(ctx)
	if err != nil {
		h.fail(w, r, "list sessions", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = h.dashboard.Execute(w, map[string]any{
		"EventCount":   eventCount,
		"SessionCount": len(sessions),
	})
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := r.URL.Query().Get("filter")
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	events, err := h.store.ListEvents(ctx, filter, logsPageSize, (page-1)*logsPageSize)
	if err != nil {
		h.fail(w, r, "list events", err)
		return
	}
	total, err := h.store.CountEvents(ctx, filter)
	if err != nil {
		h.fail(w, r, "count events", err)
		return
	}

	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, map[string]any{
		"events":    events,
		"total":     total,
		"page":      page,
		"page_size": logsPageSize,
	})
}

// handleExport streams the full filtered result set as CSV. Rows come out of
// the store in pages so a large log never sits in memory at once.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := r.URL.Query().Get("filter")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="decoy-audit.csv"`)

	cw := newCSVWriter(w)
	cw.writeRow(csvHeader)

	for offset := 0; ; offset += exportBatch {
		events, err := h.store.ListEvents(ctx, filter, exportBatch, offset)
		if err != nil {
			// Headers are gone already; log and stop the stream.
			h.logger.ErrorContext(ctx, "csv export aborted", "error", err,
				"request_id", middleware.GetRequestID(ctx))
			return
		}
		for _, e := range events {
			cw.writeRow(csvRecord(e))
		}
		if len(events) < exportBatch {
			break
		}
	}
	cw.flush()
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListSessions(r.Context())
	if err != nil {
		h.fail(w, r, "list sessions", err)
		return
	}

	rows := make([]sessionRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, sessionRow{
			SessionSummary: s,
			Device:         deviceLabel(s.UserAgent),
		})
	}
	writeJSON(w, map[string]any{"sessions": rows})
}

type sessionRow struct {
	audit.SessionSummary
	Device string `json:"device"`
}

// deviceLabel condenses a raw user-agent into a short browser/OS label for
// the roll-up view.
func deviceLabel(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	label := name
	if version != "" {
		label += " " + version
	}
	if os := ua.OS(); os != "" {
		label += " / " + os
	}
	if ua.Bot() {
		label += " (bot)"
	}
	if label == "" {
		return "unknown"
	}
	return label
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "console query failed",
		"op", op,
		"error", err,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	dErrors.WriteJSON(w, dErrors.New(dErrors.CodeInternal, "query failed"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
