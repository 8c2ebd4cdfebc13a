package test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirage/internal/audit"
	"mirage/internal/console"
	"mirage/internal/decoy"
	"mirage/internal/gate"
	"mirage/internal/platform/metrics"
	"mirage/internal/platform/middleware"
	"mirage/internal/session"
	"mirage/internal/shadow"
	"mirage/pkg/testutil"
)

const (
	testAdminSecret = "correct-horse"
	consolePath     = "/real-console"
)

// newApp assembles the full router the way the server binary does, backed by
// an in-memory audit store the test can inspect.
func newApp() (chi.Router, *audit.InMemoryStore) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	store := audit.NewInMemoryStore()
	m := metrics.NewForTest()
	recorder := audit.NewRecorder(store, logger, m)
	shadowMgr := shadow.NewManager()
	sessions := session.NewManager("flow-test-signing-key")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(sessions.Middleware)

	gate.New(logger, sessions, m, testAdminSecret, consolePath).Register(r)
	decoy.New(logger, shadowMgr, recorder, m, decoy.NewArchiveConfig(false, 0), consolePath).Register(r)
	console.New(logger, store).Register(r, consolePath)
	return r, store
}

// visitor plays one browser: it carries its session cookie across requests.
type visitor struct {
	router chi.Router
	cookie *http.Cookie
}

func (v *visitor) do(req *http.Request) *httptest.ResponseRecorder {
	if v.cookie != nil {
		req.AddCookie(v.cookie)
	}
	rr := testutil.DoRequest(v.router, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName {
			v.cookie = c
		}
	}
	return rr
}

func (v *visitor) get(path string) *httptest.ResponseRecorder {
	return v.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (v *visitor) postForm(t *testing.T, path, form string) *httptest.ResponseRecorder {
	t.Helper()
	return v.do(testutil.NewFormRequest(t, path, form))
}

func TestDeceptionFlow(t *testing.T) {
	router, store := newApp()
	prober := &visitor{router: router}
	operator := &visitor{router: router}

	testutil.Given(t, "a fully wired gateway", func(t *testing.T) {
		testutil.When(t, "an anonymous prober explores the admin surface", func(t *testing.T) {
			rr := prober.get("/admin/")
			testutil.AssertStatus(t, rr, http.StatusOK)
			assert.Contains(t, rr.Body.String(), "Welcome to the Portal",
				"the decoy console renders as if it were real")

			rr = prober.postForm(t, "/admin/fake/query", "query=select+*+from+users")
			testutil.AssertStatus(t, rr, http.StatusOK)

			rr = prober.get(consolePath)
			testutil.AssertStatus(t, rr, http.StatusNotFound)
		})

		testutil.Then(t, "every probe lands in the audit log", func(t *testing.T) {
			events, err := store.ListEvents(context.Background(), "", 100, 0)
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, "fake_db_query", events[0].Action)
			assert.Equal(t, "console_view", events[1].Action)

			sessions, err := store.ListSessions(context.Background())
			require.NoError(t, err)
			assert.Len(t, sessions, 1)
		})

		testutil.When(t, "the operator logs in with the admin secret", func(t *testing.T) {
			rr := operator.postForm(t, "/login", "secret="+testAdminSecret)
			testutil.AssertStatus(t, rr, http.StatusFound)
			assert.Equal(t, consolePath, rr.Header().Get("Location"))
		})

		testutil.Then(t, "the real console shows the prober's trail", func(t *testing.T) {
			rr := operator.get(consolePath + "/logs")
			testutil.AssertStatus(t, rr, http.StatusOK)
			assert.Contains(t, rr.Body.String(), "fake_db_query")

			rr = operator.get(consolePath + "/sessions")
			testutil.AssertStatus(t, rr, http.StatusOK)
		})

		testutil.Then(t, "operator browsing never pollutes the decoy log", func(t *testing.T) {
			before, err := store.CountEvents(context.Background(), "")
			require.NoError(t, err)

			rr := operator.get("/admin/")
			testutil.AssertStatus(t, rr, http.StatusFound)
			assert.Equal(t, consolePath, rr.Header().Get("Location"))

			after, err := store.CountEvents(context.Background(), "")
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	})
}
