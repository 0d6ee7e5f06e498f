// Package viewstate keeps the server-side state of every open console,
// keyed by browser session id. Entries expire after a period of inactivity.
package viewstate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/authoring"
	"github.com/leapstack-labs/querydesk/internal/catalog"
	"github.com/leapstack-labs/querydesk/internal/optimize"
	"github.com/leapstack-labs/querydesk/internal/paging"
	"github.com/leapstack-labs/querydesk/internal/recommend"
)

// DefaultTTL is how long an idle session's views are kept.
const DefaultTTL = 2 * time.Hour

// Views is the state behind one browser session.
type Views struct {
	Authoring *authoring.Session
	Optimize  *optimize.Session
	Board     *recommend.Board
	Drill     *recommend.DrillDown
	Details   *recommend.DrillDown
	Tables    *catalog.TableForm
	Columns   *catalog.ColumnForm

	mu  sync.Mutex
	app *appctx.Context
}

// SetApp records the session's latest app context. Long-lived requests read
// it instead of the cookie they were opened with.
func (v *Views) SetApp(c appctx.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.app = &c
}

// App returns the latest recorded app context.
func (v *Views) App() (appctx.Context, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.app == nil {
		return appctx.Context{}, false
	}
	return *v.app, true
}

// Deps are shared by every session's views.
type Deps struct {
	Client   *api.Client
	Limits   *authoring.LimitsHolder
	Registry *recommend.Registry
	Catalog  catalog.Options
	PageSize int
	Logger   *slog.Logger
}

// Store hands out Views per session id.
type Store struct {
	deps  Deps
	cache *cache.Cache
	mu    sync.Mutex
}

// New creates a store whose entries expire after ttl without use.
func New(deps Deps, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Limits == nil {
		deps.Limits = authoring.NewLimitsHolder(authoring.DefaultLimits())
	}
	if deps.Registry == nil {
		deps.Registry = recommend.DefaultRegistry()
	}
	if deps.PageSize == 0 {
		deps.PageSize = paging.DefaultSize
	}
	deps.Catalog.Logger = deps.Logger
	return &Store{deps: deps, cache: cache.New(ttl, ttl/2)}
}

// Get returns the views for id, creating them on first use. Every call
// extends the entry's lifetime.
func (s *Store) Get(id string) *Views {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(id); ok {
		views := v.(*Views)
		s.cache.SetDefault(id, views)
		return views
	}
	views := s.newViews()
	s.cache.SetDefault(id, views)
	s.deps.Logger.Debug("view state created", "sessions", s.cache.ItemCount())
	return views
}

// Drop forgets the views for id.
func (s *Store) Drop(id string) {
	if id == "" {
		return
	}
	s.cache.Delete(id)
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

func (s *Store) newViews() *Views {
	d := s.deps
	return &Views{
		Authoring: authoring.NewSession(d.Client, d.Limits, d.Logger),
		Optimize:  optimize.NewSession(d.Client, d.Logger),
		Board:     recommend.NewBoard(d.Client, d.PageSize),
		Drill:     recommend.NewDrillDown(d.Client, d.Registry),
		Details:   recommend.NewDrillDown(d.Client, d.Registry),
		Tables:    catalog.NewTableForm(d.Client, d.Catalog),
		Columns:   catalog.NewColumnForm(d.Client, d.Catalog),
	}
}
