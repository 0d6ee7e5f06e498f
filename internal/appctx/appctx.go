// Package appctx holds the per-browser application context: the selected
// market and project and the project id resolved by the backend. Views get
// a Context value; only the shell and the recommendation view write it.
package appctx

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

// SessionName is the cookie name used for the console session.
const SessionName = "querydesk"

const (
	keySessionID   = "sid"
	keyMarket      = "market"
	keyProjectName = "project_name"
	keyProjectID   = "project_id"
)

// Context is the application context threaded into every view.
type Context struct {
	Market      string
	ProjectName string
	ProjectID   string
}

// Defaults fill a Context for a visitor that has not chosen anything yet.
type Defaults struct {
	Market  string
	Project string
}

// Store reads and writes Context on top of a gorilla session.
type Store struct {
	sessions sessions.Store
	defaults Defaults
}

// NewStore wraps a session store.
func NewStore(s sessions.Store, d Defaults) *Store {
	return &Store{sessions: s, defaults: d}
}

// NewCookieStore builds the cookie store used by the console.
func NewCookieStore(secret string) *sessions.CookieStore {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.MaxAge(86400) // 1 day
	cs.Options.Path = "/"
	cs.Options.HttpOnly = true
	cs.Options.SameSite = http.SameSiteLaxMode
	return cs
}

// Load returns the Context for r, falling back to defaults for unset values.
func (s *Store) Load(r *http.Request) Context {
	c := Context{
		Market:      s.defaults.Market,
		ProjectName: s.defaults.Project,
	}
	sess, err := s.sessions.Get(r, SessionName)
	if err != nil {
		return c
	}
	if v, ok := sess.Values[keyMarket].(string); ok && v != "" {
		c.Market = v
	}
	if v, ok := sess.Values[keyProjectName].(string); ok && v != "" {
		c.ProjectName = v
	}
	if v, ok := sess.Values[keyProjectID].(string); ok {
		c.ProjectID = v
	}
	return c
}

// Save writes c into the session.
func (s *Store) Save(w http.ResponseWriter, r *http.Request, c Context) error {
	sess, err := s.get(r)
	if err != nil {
		return err
	}
	sess.Values[keyMarket] = c.Market
	sess.Values[keyProjectName] = c.ProjectName
	sess.Values[keyProjectID] = c.ProjectID
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SessionID returns the id that keys server-side view state, creating and
// persisting one on first use.
func (s *Store) SessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := s.get(r)
	if err != nil {
		return "", err
	}
	if id, ok := sess.Values[keySessionID].(string); ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	sess.Values[keySessionID] = id
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return id, nil
}

// Invalidate is the single sign-out point: it clears every value and expires
// the cookie. It returns the session id that was dropped, if any.
func (s *Store) Invalidate(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := s.get(r)
	if err != nil {
		return "", err
	}
	id := sessString(sess, keySessionID)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return id, fmt.Errorf("invalidate session: %w", err)
	}
	return id, nil
}

// get returns the session. A cookie that no longer decodes (rotated secret)
// yields a fresh session rather than an error.
func (s *Store) get(r *http.Request) (*sessions.Session, error) {
	sess, err := s.sessions.Get(r, SessionName)
	if sess != nil {
		return sess, nil
	}
	return nil, fmt.Errorf("get session: %w", err)
}

func sessString(sess *sessions.Session, key string) string {
	v, _ := sess.Values[key].(string)
	return v
}
