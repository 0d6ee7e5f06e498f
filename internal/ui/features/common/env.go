// Package common provides what every console feature shares: the
// dependencies handlers are built from and the per-request view context.
package common

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/authoring"
	"github.com/leapstack-labs/querydesk/internal/catalog"
	"github.com/leapstack-labs/querydesk/internal/optimize"
	"github.com/leapstack-labs/querydesk/internal/recommend"
	"github.com/leapstack-labs/querydesk/internal/ui/notifier"
	"github.com/leapstack-labs/querydesk/internal/ui/viewstate"
)

// DefaultLoginURL is where a signed-out browser is sent.
const DefaultLoginURL = "/login"

// Env holds the dependencies shared by every feature.
type Env struct {
	Sessions  *appctx.Store
	Views     *viewstate.Store
	Notifier  *notifier.Notifier
	Limits    *authoring.LimitsHolder
	Projects  []string
	PageSizes []int
	LoginURL  string
	IsDev     bool
	Logger    *slog.Logger
}

// Request is the view context of one console request.
type Request struct {
	App       appctx.Context
	SessionID string
	Views     *viewstate.Views

	// Ctx carries the sign-out hook into every API call.
	Ctx context.Context

	signedOut atomic.Bool
}

// SignedOut reports whether the backend rejected the session during this
// request.
func (r *Request) SignedOut() bool {
	return r.signedOut.Load()
}

// Begin loads the app context and view state for r. API calls made with
// the returned Ctx sign the browser out on a 401, so handlers must finish
// their backend work before opening the SSE stream.
func (e *Env) Begin(w http.ResponseWriter, r *http.Request) (*Request, error) {
	id, err := e.Sessions.SessionID(w, r)
	if err != nil {
		return nil, err
	}
	req := &Request{
		App:       e.Sessions.Load(r),
		SessionID: id,
		Views:     e.Views.Get(id),
	}
	req.Views.SetApp(req.App)
	req.Ctx = api.WithUnauthorizedHandler(r.Context(), func() {
		req.signedOut.Store(true)
		e.SignOut(w, r)
	})
	return req, nil
}

// SaveApp persists req.App and pings the session's update streams.
func (e *Env) SaveApp(w http.ResponseWriter, r *http.Request, req *Request) error {
	if err := e.Sessions.Save(w, r, req.App); err != nil {
		return err
	}
	req.Views.SetApp(req.App)
	e.Notifier.Notify(req.SessionID)
	return nil
}

// CurrentApp returns the newest app context known for a session, falling
// back to the cookie on r.
func (e *Env) CurrentApp(r *http.Request, sessionID string) appctx.Context {
	if app, ok := e.Views.Get(sessionID).App(); ok {
		return app
	}
	return e.Sessions.Load(r)
}

// SignOut clears the browser session and its view state.
func (e *Env) SignOut(w http.ResponseWriter, r *http.Request) {
	id, err := e.Sessions.Invalidate(w, r)
	if err != nil {
		e.Logger.Warn("failed to invalidate session", "error", err)
	}
	e.Views.Drop(id)
	e.Logger.Info("session signed out", "session", id)
}

// Login returns the sign-in location.
func (e *Env) Login() string {
	if e.LoginURL == "" {
		return DefaultLoginURL
	}
	return e.LoginURL
}

// Done handles the outcomes every action shares. It redirects a signed-out
// browser and swallows superseded responses. It returns true when the
// caller should not patch the view.
func (e *Env) Done(sse *datastar.ServerSentEventGenerator, req *Request, err error) bool {
	if req.SignedOut() {
		_ = sse.Redirect(e.Login())
		return true
	}
	if isStale(err) {
		return true
	}
	return false
}

// Fail writes a handler error to the browser console.
func (e *Env) Fail(w http.ResponseWriter, r *http.Request, err error) {
	e.Logger.Error("request failed", "path", r.URL.Path, "error", err)
	sse := datastar.NewSSE(w, r)
	_ = sse.ConsoleError(err)
}

// RedirectIfSignedOut answers a page request for a signed-out browser.
func (e *Env) RedirectIfSignedOut(w http.ResponseWriter, r *http.Request, req *Request) bool {
	if !req.SignedOut() {
		return false
	}
	http.Redirect(w, r, e.Login(), http.StatusSeeOther)
	return true
}

// Sizes returns the page sizes offered by pagers.
func (e *Env) Sizes() []int {
	if len(e.PageSizes) == 0 {
		return []int{5, 10, 25}
	}
	return e.PageSizes
}

func isStale(err error) bool {
	return errors.Is(err, authoring.ErrStale) ||
		errors.Is(err, optimize.ErrStale) ||
		errors.Is(err, recommend.ErrStale) ||
		errors.Is(err, catalog.ErrStale)
}

// PageParams reads the pager query parameters of an action URL. A missing
// parameter is reported as not set.
func PageParams(r *http.Request) (page int, hasPage bool, size int, hasSize bool) {
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		page, hasPage = v, true
	}
	if v, err := strconv.Atoi(q.Get("size")); err == nil {
		size, hasSize = v, true
	}
	return page, hasPage, size, hasSize
}
