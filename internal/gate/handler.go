// Package gate implements the access decision at the administrative entry
// point: the login flow that promotes a session to administrator and the
// logout that revokes it. Login traffic is deliberately never written to the
// decoy audit log so credential material stays out of it.
package gate

import (
	"crypto/subtle"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"mirage/internal/platform/metrics"
	"mirage/internal/platform/middleware"
	"mirage/internal/session"
)

//go:embed templates/login.html
var templateFS embed.FS

// genericLoginError is the only failure text a caller ever sees; it does not
// distinguish between an unknown operator and a wrong secret.
const genericLoginError = "Invalid access key."

// Handler serves login and logout.
type Handler struct {
	logger      *slog.Logger
	sessions    *session.Manager
	metrics     *metrics.Metrics
	adminSecret string
	consolePath string
	login       *template.Template
}

func New(
	logger *slog.Logger,
	sessions *session.Manager,
	m *metrics.Metrics,
	adminSecret, consolePath string,
) *Handler {
	return &Handler{
		logger:      logger,
		sessions:    sessions,
		metrics:     m,
		adminSecret: adminSecret,
		consolePath: consolePath,
		login:       template.Must(template.ParseFS(templateFS, "templates/login.html")),
	}
}

// Register mounts the login routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/login", h.handleLoginForm)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, "")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, genericLoginError)
		return
	}

	if !h.secretMatches(r.PostFormValue("secret")) {
		h.metrics.AdminLogins.WithLabelValues("failure").Inc()
		h.logger.WarnContext(r.Context(), "admin login failed",
			"ip", r.RemoteAddr,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		h.renderLogin(w, genericLoginError)
		return
	}

	h.metrics.AdminLogins.WithLabelValues("success").Inc()
	h.sessions.Promote(w, r)
	h.logger.InfoContext(r.Context(), "admin login succeeded",
		"request_id", middleware.GetRequestID(r.Context()),
	)
	http.Redirect(w, r, h.consolePath, http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Demote(w, r)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// secretMatches compares the submitted secret against the configured one.
// A secret configured as a bcrypt hash is verified as such; otherwise a
// constant-time equality check is used.
func (h *Handler) secretMatches(submitted string) bool {
	if submitted == "" || h.adminSecret == "" {
		return false
	}
	if strings.HasPrefix(h.adminSecret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(h.adminSecret), []byte(submitted)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(h.adminSecret)) == 1
}

func (h *Handler) renderLogin(w http.ResponseWriter, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if errMsg != "" {
		w.WriteHeader(http.StatusUnauthorized)
	}
	_ = h.login.Execute(w, map[string]string{"Error": errMsg})
}
