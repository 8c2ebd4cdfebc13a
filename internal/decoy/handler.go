// Package decoy serves the fake administrative console shown to every caller
// who is not an authenticated administrator. Each handler mutates only the
// caller's own shadow state and records the raw request for forensic review.
package decoy

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mirage/internal/audit"
	"mirage/internal/platform/metrics"
	"mirage/internal/platform/middleware"
	"mirage/internal/shadow"
	dErrors "mirage/pkg/domainerrors"
)

//go:embed templates/console.html
var templateFS embed.FS

// payloadCap bounds how much of a request body is copied into the audit log.
const payloadCap = 8 << 10

// Handler wires the decoy routes to the shadow state manager and the audit
// recorder.
type Handler struct {
	logger      *slog.Logger
	shadow      *shadow.Manager
	recorder    *audit.Recorder
	metrics     *metrics.Metrics
	archive     ArchiveConfig
	consolePath string
	console     *template.Template
}

// New creates the decoy handler. consolePath is where authenticated admins
// get redirected from the administrative root.
func New(
	logger *slog.Logger,
	shadowMgr *shadow.Manager,
	recorder *audit.Recorder,
	m *metrics.Metrics,
	archive ArchiveConfig,
	consolePath string,
) *Handler {
	return &Handler{
		logger:      logger,
		shadow:      shadowMgr,
		recorder:    recorder,
		metrics:     m,
		archive:     archive,
		consolePath: consolePath,
		console:     template.Must(template.ParseFS(templateFS, "templates/console.html")),
	}
}

// Register mounts the decoy surface under /admin.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.observe)
		r.Get("/", h.handleConsole)
		r.Post("/action", h.handleAction)
		r.Post("/build", h.handleBuildQueue)
		r.Get("/build/{jobID}/status", h.handleBuildStatus)
		r.Get("/build/{jobID}/download", h.handleBuildDownload)
		r.Route("/fake", func(r chi.Router) {
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleAddUser)
			r.Post("/users/{id}/toggle", h.handleToggleUser)
			r.Delete("/users/{id}", h.handleDeleteUser)
			r.Get("/ads", h.handleListAds)
			r.Post("/ads", h.handleAddAd)
			r.Post("/ads/{id}/toggle", h.handleToggleAd)
			r.Delete("/ads/{id}", h.handleDeleteAd)
			r.Post("/home", h.handleUpdateHome)
			r.Post("/theme", h.handleUpdateTheme)
			r.Post("/query", h.handleQuery)
		})
	})
}

// observe registers the visitor session before any decoy handler runs.
// Authenticated admins pass through untouched; their traffic belongs to the
// real console, not the forensic log.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !middleware.IsAdmin(r.Context()) {
			h.metrics.DecoyRequests.Inc()
			h.recorder.TouchSession(r)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleConsole(w http.ResponseWriter, r *http.Request) {
	if middleware.IsAdmin(r.Context()) {
		http.Redirect(w, r, h.consolePath, http.StatusFound)
		return
	}

	sid := middleware.GetSessionID(r.Context())
	h.shadow.Ensure(sid)
	h.recorder.Record(r, "console_view", r.URL.RawQuery, "")

	data := map[string]any{
		"Title":        h.shadow.Home(sid).Title,
		"HomeTitle":    h.shadow.Home(sid).Title,
		"Version":      "4.2.1",
		"Themes":       shadow.ValidThemes,
		"CurrentTheme": h.shadow.Theme(sid).Current,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.console.Execute(w, data); err != nil {
		h.logger.ErrorContext(r.Context(), "decoy console render failed", "error", err)
	}
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	payload, form := h.bind(r)
	action := form.get("action")
	if action == "" {
		action = "action"
	}
	h.recorder.Record(r, action, payload, "")
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) handleBuildQueue(w http.ResponseWriter, r *http.Request) {
	payload, _ := h.bind(r)
	jobID := uuid.NewString()
	h.recorder.Record(r, "build_queue", payload, "simulated build task queued")
	writeJSON(w, map[string]any{
		"ok":     true,
		"job_id": jobID,
		"status": "queued",
	})
}

// handleBuildStatus always reports success with plausible metadata; there is
// no background job to inspect.
func (h *Handler) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	h.recorder.Record(r, "build_status", "", "simulated build status served")
	writeJSON(w, map[string]any{
		"job_id":      jobID,
		"status":      "completed",
		"artifact":    "release_" + jobID + ".tar.gz",
		"size_bytes":  h.archive.TotalBytes(),
		"finished_at": time.Now().Add(-2 * time.Minute).UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleBuildDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	h.recorder.Record(r, "build_download", "", "synthetic archive streamed")
	h.metrics.ArchiveDownloads.Inc()

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="release_`+jobID+`.tar.gz"`)
	if err := WriteArchive(r.Context(), w, jobID, h.archive); err != nil {
		// Usually the caller hanging up mid-stream. Log and move on; there
		// is nothing useful to send at this point.
		h.logger.DebugContext(r.Context(), "archive stream aborted", "error", err)
	}
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	sid := middleware.GetSessionID(r.Context())
	h.recorder.Record(r, "fake_user_list", "", "")
	writeJSON(w, h.shadow.ListUsers(sid))
}

func (h *Handler) handleAddUser(w http.ResponseWriter, r *http.Request) {
	payload, form := h.bind(r)
	h.recorder.Record(r, "fake_user_add", payload, "")

	user, err := h.shadow.AddUser(middleware.GetSessionID(r.Context()), form.get("username"), form.get("role"))
	if err != nil {
		dErrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, user)
}

func (h *Handler) handleToggleUser(w http.ResponseWriter, r *http.Request) {
	h.recorder.Record(r, "fake_user_toggle", chi.URLParam(r, "id"), "")

	user, err := h.shadow.ToggleUser(middleware.GetSessionID(r.Context()), pathID(r))
	if err != nil {
		dErrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, user)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.recorder.Record(r, "fake_user_delete", chi.URLParam(r, "id"), "")

	removed := h.shadow.DeleteUser(middleware.GetSessionID(r.Context()), pathID(r))
	writeJSON(w, map[string]any{"removed": removed})
}

func (h *Handler) handleListAds(w http.ResponseWriter, r *http.Request) {
	sid := middleware.GetSessionID(r.Context())
	h.recorder.Record(r, "fake_ad_list", "", "")
	writeJSON(w, h.shadow.ListAds(sid))
}

func (h *Handler) handleAddAd(w http.ResponseWriter, r *http.Request) {
	payload, form := h.bind(r)
	h.recorder.Record(r, "fake_ad_add", payload, "")

	ad, err := h.shadow.AddAd(middleware.GetSessionID(r.Context()), form.get("slot"), form.get("url"))
	if err != nil {
		dErrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, ad)
}

func (h *Handler) handleToggleAd(w http.ResponseWriter, r *http.Request) {
	h.recorder.Record(r, "fake_ad_toggle", chi.URLParam(r, "id"), "")

	ad, err := h.shadow.ToggleAd(middleware.GetSessionID(r.Context()), pathID(r))
	if err != nil {
		dErrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, ad)
}

func (h *Handler) handleDeleteAd(w http.ResponseWriter, r *http.Request) {
	h.recorder.Record(r, "fake_ad_delete", chi.URLParam(r, "id"), "")

	removed := h.shadow.DeleteAd(middleware.GetSessionID(r.Context()), pathID(r))
	writeJSON(w, map[string]any{"removed": removed})
}

func (h *Handler) handleUpdateHome(w http.ResponseWriter, r *http.Request) {
	payload, form := h.bind(r)
	h.recorder.Record(r, "fake_home_update", payload, "")

	home, err := h.shadow.UpdateHome(middleware.GetSessionID(r.Context()), form.get("title"))
	if err != nil {
		dErrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, home)
}

func (h *Handler) handleUpdateTheme(w http.ResponseWriter, r *http.Request) {
	payload, form := h.bind(r)
	h.recorder.Record(r, "fake_theme_update", payload, "")

	theme := h.shadow.SetTheme(middleware.GetSessionID(r.Context()), form.get("theme"))
	writeJSON(w, theme)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	payload, form := h.bind(r)
	h.recorder.Record(r, "fake_db_query", payload, "")
	writeJSON(w, h.shadow.RunQuery(form.get("query")))
}

// bind captures the raw request payload for the audit log and exposes the
// submitted fields, accepting either a JSON object or form encoding. Malformed
// input yields empty fields; validation downstream turns those into the
// standard failure envelope.
func (h *Handler) bind(r *http.Request) (string, formValues) {
	raw := capturePayload(r)

	values := formValues{}
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			for k, v := range decoded {
				switch tv := v.(type) {
				case string:
					values[k] = tv
				case float64:
					values[k] = strconv.FormatFloat(tv, 'f', -1, 64)
				case bool:
					values[k] = strconv.FormatBool(tv)
				}
			}
		}
		return raw, values
	}

	if parsed, err := url.ParseQuery(raw); err == nil {
		for k := range parsed {
			values[k] = parsed.Get(k)
		}
	}
	return raw, values
}

type formValues map[string]string

func (f formValues) get(key string) string { return f[key] }

// capturePayload reads up to payloadCap bytes of the body (restoring it for
// any later reader) and falls back to the query string for bodyless requests.
func capturePayload(r *http.Request) string {
	if r.Body == nil {
		return r.URL.RawQuery
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, payloadCap))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(buf))
	if err != nil || len(buf) == 0 {
		return r.URL.RawQuery
	}
	return string(buf)
}

func pathID(r *http.Request) int64 {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
