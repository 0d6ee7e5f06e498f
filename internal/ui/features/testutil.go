// Package features provides shared test utilities for UI feature tests.
package features

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/authoring"
	"github.com/leapstack-labs/querydesk/internal/catalog"
	"github.com/leapstack-labs/querydesk/internal/testutil"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
	"github.com/leapstack-labs/querydesk/internal/ui/notifier"
	"github.com/leapstack-labs/querydesk/internal/ui/viewstate"
)

// TestFixture holds all dependencies needed for UI handler tests. Requests
// sent through Do share one browser's cookies.
type TestFixture struct {
	Backend      *testutil.Backend
	Client       *api.Client
	Env          *common.Env
	Notifier     *notifier.Notifier
	SessionStore *sessions.CookieStore
	Limits       *authoring.LimitsHolder

	t       *testing.T
	cookies map[string]*http.Cookie
}

// SetupTestFixture wires a fake backend, cookie sessions and view state.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	backend := testutil.NewBackend(t)
	client := api.New(api.Config{BaseURL: backend.URL, Logger: logger})
	limits := authoring.NewLimitsHolder(authoring.DefaultLimits())
	store := NewTestSessionStore()
	notify := NewTestNotifier()

	env := &common.Env{
		Sessions: appctx.NewStore(store, appctx.Defaults{Market: "US", Project: "alpha"}),
		Views: viewstate.New(viewstate.Deps{
			Client:  client,
			Limits:  limits,
			Catalog: catalog.Options{Location: time.UTC},
			Logger:  logger,
		}, time.Minute),
		Notifier:  notify,
		Limits:    limits,
		Projects:  []string{"alpha", "beta"},
		PageSizes: []int{5, 10, 25},
		LoginURL:  "/login",
		IsDev:     true,
		Logger:    logger,
	}

	return &TestFixture{
		Backend:      backend,
		Client:       client,
		Env:          env,
		Notifier:     notify,
		SessionStore: store,
		Limits:       limits,
		t:            t,
		cookies:      map[string]*http.Cookie{},
	}
}

// Do serves req with the fixture's cookies and keeps any cookies set.
func (f *TestFixture) Do(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	f.t.Helper()
	for _, c := range f.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(f.cookies, c.Name)
			continue
		}
		f.cookies[c.Name] = c
	}
	return rec
}

// HasSession reports whether the browser still holds a console cookie.
func (f *TestFixture) HasSession() bool {
	_, ok := f.cookies[appctx.SessionName]
	return ok
}

// Cookies returns the cookies the browser currently holds.
func (f *TestFixture) Cookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(f.cookies))
	for _, c := range f.cookies {
		out = append(out, c)
	}
	return out
}

// SignalsRequest builds a datastar action carrying signals as its body.
func SignalsRequest(t *testing.T, method, target string, signals any) *http.Request {
	t.Helper()
	if signals == nil {
		signals = map[string]any{}
	}
	body, err := json.Marshal(signals)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Datastar-Request", "true")
	return req
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, params ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewTestNotifier creates a notifier for testing.
func NewTestNotifier() *notifier.Notifier {
	return notifier.New()
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return appctx.NewCookieStore("test-secret-key-32-bytes-long!!")
}
