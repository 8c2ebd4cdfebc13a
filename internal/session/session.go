// Package session implements the signed-cookie session layer. Every visitor,
// hostile or not, gets an opaque session ID in an HMAC-signed token; the admin
// flag lives in the same token and is only ever set by a successful login.
package session

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mirage/internal/platform/middleware"
)

const (
	// CookieName is the session cookie issued to every visitor.
	CookieName = "mirage_session"

	sessionTTL = 7 * 24 * time.Hour
)

// Claims are the JWT claims carried by the session cookie.
type Claims struct {
	SessionID string `json:"sid"`
	Admin     bool   `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs, verifies, and rotates session cookies.
type Manager struct {
	signingKey []byte
}

func NewManager(signingKey string) *Manager {
	return &Manager{signingKey: []byte(signingKey)}
}

// Middleware resolves the caller's session. A missing, expired, or tampered
// cookie silently becomes a fresh anonymous session; the visitor never sees a
// session-layer error.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := m.resolve(r)
		if claims == nil {
			claims = &Claims{SessionID: uuid.NewString()}
			m.issue(w, claims.SessionID, false)
		}

		ctx := middleware.WithSessionID(r.Context(), claims.SessionID)
		ctx = middleware.WithAdmin(ctx, claims.Admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Promote re-issues the caller's session with the admin flag set. The session
// ID rotates so a pre-login cookie can never be replayed as an admin one.
func (m *Manager) Promote(w http.ResponseWriter, r *http.Request) string {
	sid := uuid.NewString()
	m.issue(w, sid, true)
	return sid
}

// Demote strips the admin flag, keeping the caller as an anonymous visitor.
func (m *Manager) Demote(w http.ResponseWriter, r *http.Request) {
	sid := middleware.GetSessionID(r.Context())
	if sid == "" {
		sid = uuid.NewString()
	}
	m.issue(w, sid, false)
}

func (m *Manager) resolve(r *http.Request) *Claims {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	parsed, err := jwt.ParseWithClaims(cookie.Value, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.SessionID == "" {
		return nil
	}
	return claims
}

func (m *Manager) issue(w http.ResponseWriter, sessionID string, admin bool) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID,
		Admin:     admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		// Signing only fails on a broken key; leave the caller cookieless and
		// let the next request mint a fresh session.
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
