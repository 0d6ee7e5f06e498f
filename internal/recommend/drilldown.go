package recommend

import (
	"context"
	"errors"
	"sync"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/paging"
)

// ErrStale is returned when a newer drill-down request superseded this one.
var ErrStale = errors.New("recommend: response superseded")

// ErrClosed is returned when paging a drill-down that was never opened.
var ErrClosed = errors.New("recommend: drill-down not open")

// Target identifies the rule being drilled into.
type Target struct {
	RuleID         int
	Recommendation string
	Title          string
}

// DrillState is a point-in-time copy of a drill-down.
type DrillState struct {
	Open    bool
	Target  Target
	Layout  Layout
	Pager   paging.Pager
	Rows    api.ResultSet
	Total   int
	Loading bool
	Error   string

	// ProjectName comes from the first returned row when present.
	ProjectName string
}

// Offset is the absolute index of the first row on the page.
func (s DrillState) Offset() int {
	if s.Pager.IsAll() {
		return 0
	}
	return s.Pager.Page * s.Pager.Size
}

// Cells renders row i of the current page.
func (s DrillState) Cells(i int) []Cell {
	return s.Layout.Cells(s.Rows, i, s.Offset())
}

// Label is the pager caption for the current page.
func (s DrillState) Label() string {
	return s.Pager.Label(s.Total)
}

// DrillDown pages through the queries matched by one rule. Pages come from
// the server and are never cached across rule switches.
type DrillDown struct {
	backend  Backend
	registry *Registry

	mu  sync.Mutex
	st  DrillState
	seq uint64
}

// NewDrillDown returns a closed drill-down.
func NewDrillDown(backend Backend, registry *Registry) *DrillDown {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &DrillDown{backend: backend, registry: registry}
}

// Snapshot returns a copy of the current state.
func (d *DrillDown) Snapshot() DrillState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.st
}

// Open starts a drill-down on the first page with the given page size.
func (d *DrillDown) Open(ctx context.Context, app appctx.Context, target Target, size int) (DrillState, error) {
	d.mu.Lock()
	d.st = DrillState{
		Open:        true,
		Target:      target,
		Layout:      d.registry.For(target.RuleID),
		Pager:       paging.New(size),
		ProjectName: app.ProjectName,
	}
	d.mu.Unlock()
	return d.fetch(ctx, app)
}

// SetPage fetches page (0-indexed).
func (d *DrillDown) SetPage(ctx context.Context, app appctx.Context, page int) (DrillState, error) {
	d.mu.Lock()
	if !d.st.Open {
		d.mu.Unlock()
		return DrillState{}, ErrClosed
	}
	d.st.Pager = d.st.Pager.SetPage(page, d.st.Total)
	d.mu.Unlock()
	return d.fetch(ctx, app)
}

// SetPageSize changes the page size, returns to the first page and fetches.
func (d *DrillDown) SetPageSize(ctx context.Context, app appctx.Context, size int) (DrillState, error) {
	d.mu.Lock()
	if !d.st.Open {
		d.mu.Unlock()
		return DrillState{}, ErrClosed
	}
	d.st.Pager = d.st.Pager.SetSize(size)
	d.mu.Unlock()
	return d.fetch(ctx, app)
}

// Close hides the drill-down and discards any in-flight page.
func (d *DrillDown) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.st = DrillState{}
}

func (d *DrillDown) fetch(ctx context.Context, app appctx.Context) (DrillState, error) {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.st.Loading = true
	d.st.Error = ""
	req := api.RuleRequest{
		RuleID:      api.RuleID(d.st.Target.RuleID),
		Market:      app.Market,
		ProjectName: app.ProjectName,
		Page:        d.st.Pager.WirePage(),
		PageSize:    d.st.Pager.Size,
	}
	d.mu.Unlock()

	page, err := d.backend.RuleDetails(ctx, req)

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		return d.st, ErrStale
	}
	d.st.Loading = false
	if err != nil {
		d.st.Rows = api.ResultSet{}
		d.st.Total = 0
		if !errors.Is(err, api.ErrUnauthorized) {
			d.st.Error = api.Message(err, "Failed to fetch rule details.")
		}
		return d.st, err
	}

	d.st.Rows = page.Rows
	d.st.Total = page.TotalCount
	if page.Rows.Len() > 0 {
		if name := page.Rows.Field(0, "project_name"); name != "" {
			d.st.ProjectName = name
		}
	}
	return d.st, nil
}
