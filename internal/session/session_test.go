package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirage/internal/platform/middleware"
)

const testKey = "unit-test-key"

// runThrough sends a request through the session middleware and captures the
// identity the downstream handler observed.
func runThrough(t *testing.T, m *Manager, cookie *http.Cookie) (sid string, admin bool, rec *httptest.ResponseRecorder) {
	t.Helper()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid = middleware.GetSessionID(r.Context())
		admin = middleware.IsAdmin(r.Context())
	}))

	req := httptest.NewRequest("GET", "/admin", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return sid, admin, rec
}

func issuedCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func TestMiddlewareMintsAnonymousSession(t *testing.T) {
	m := NewManager(testKey)

	sid, admin, rec := runThrough(t, m, nil)
	assert.NotEmpty(t, sid)
	assert.False(t, admin)

	cookie := issuedCookie(t, rec)
	require.NotNil(t, cookie, "a fresh visitor must receive a session cookie")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestMiddlewareKeepsValidSession(t *testing.T) {
	m := NewManager(testKey)

	_, _, first := runThrough(t, m, nil)
	cookie := issuedCookie(t, first)
	require.NotNil(t, cookie)

	sid1, _, _ := runThrough(t, m, cookie)
	sid2, _, _ := runThrough(t, m, cookie)
	assert.Equal(t, sid1, sid2, "a valid cookie keeps its session ID across requests")
}

func TestMiddlewareDiscardsBadCookies(t *testing.T) {
	m := NewManager(testKey)
	_, _, first := runThrough(t, m, nil)
	good := issuedCookie(t, first)
	require.NotNil(t, good)

	forge := func(key string, claims Claims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(key))
		require.NoError(t, err)
		return signed
	}

	tests := []struct {
		name  string
		value string
	}{
		{"garbage", "not-a-token"},
		{"tampered signature", good.Value[:len(good.Value)-4] + "AAAA"},
		{"wrong signing key", forge("other-key", Claims{SessionID: uuid.NewString()})},
		{"expired token", forge(testKey, Claims{
			SessionID: uuid.NewString(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})},
		{"missing session id", forge(testKey, Claims{})},
		{"forged admin flag wrong key", forge("other-key", Claims{SessionID: uuid.NewString(), Admin: true})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sid, admin, rec := runThrough(t, m, &http.Cookie{Name: CookieName, Value: tt.value})
			assert.NotEmpty(t, sid, "a bad cookie still yields a working anonymous session")
			assert.False(t, admin)
			assert.NotNil(t, issuedCookie(t, rec), "a replacement cookie is issued")
		})
	}
}

func TestPromoteRotatesAndSetsAdmin(t *testing.T) {
	m := NewManager(testKey)

	_, _, first := runThrough(t, m, nil)
	before := issuedCookie(t, first)
	require.NotNil(t, before)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", nil)
	newSID := m.Promote(rec, req)
	assert.NotEmpty(t, newSID)

	promoted := issuedCookie(t, rec)
	require.NotNil(t, promoted)
	assert.NotEqual(t, before.Value, promoted.Value)

	sid, admin, _ := runThrough(t, m, promoted)
	assert.Equal(t, newSID, sid)
	assert.True(t, admin)
}

func TestDemoteClearsAdmin(t *testing.T) {
	m := NewManager(testKey)

	rec := httptest.NewRecorder()
	m.Promote(rec, httptest.NewRequest("POST", "/login", nil))
	adminCookie := issuedCookie(t, rec)
	require.NotNil(t, adminCookie)

	demoteRec := httptest.NewRecorder()
	demoteReq := httptest.NewRequest("POST", "/logout", nil)
	m.Demote(demoteRec, demoteReq)
	demoted := issuedCookie(t, demoteRec)
	require.NotNil(t, demoted)

	_, admin, _ := runThrough(t, m, demoted)
	assert.False(t, admin)
}

func TestCookieValueLooksLikeJWT(t *testing.T) {
	m := NewManager(testKey)
	_, _, rec := runThrough(t, m, nil)
	cookie := issuedCookie(t, rec)
	require.NotNil(t, cookie)
	assert.Len(t, strings.Split(cookie.Value, "."), 3)
}
