package recommend

import (
	"context"
	"errors"
	"sync"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/paging"
)

// ErrUnknownRule is returned when selecting a rule that is not in the report.
var ErrUnknownRule = errors.New("recommend: rule not in report")

// BoardState is a point-in-time copy of the recommendation view.
type BoardState struct {
	Report  Report
	Loaded  bool
	Loading bool
	Error   string
	Pager   paging.Pager

	// Market and Project are what the loaded report was fetched for.
	Market  string
	Project string

	// Applying is the recommendation whose preview dialog is open.
	Applying *Recommendation
}

// Current reports whether the loaded report matches app's market and
// project.
func (s BoardState) Current(app appctx.Context) bool {
	return s.Loaded && s.Market == app.Market && s.Project == app.ProjectName
}

// Page returns the report rows on the current page.
func (s BoardState) Page() []Recommendation {
	lo, hi := s.Pager.Slice(len(s.Report.Items))
	return s.Report.Items[lo:hi]
}

// Offset is the index of the first row on the current page.
func (s BoardState) Offset() int {
	lo, _ := s.Pager.Slice(len(s.Report.Items))
	return lo
}

// Board holds the report for one browser session.
type Board struct {
	backend Backend

	mu  sync.Mutex
	st  BoardState
	seq uint64
}

// NewBoard returns an empty board; call Refresh to load it.
func NewBoard(b Backend, size int) *Board {
	return &Board{backend: b, st: BoardState{Pager: paging.New(size)}}
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() BoardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() BoardState {
	st := b.st
	st.Report.Items = append([]Recommendation(nil), b.st.Report.Items...)
	if b.st.Applying != nil {
		r := *b.st.Applying
		st.Applying = &r
	}
	return st
}

// Refresh reloads the report. A superseded load returns ErrStale and leaves
// the newer result in place.
func (b *Board) Refresh(ctx context.Context, app appctx.Context) (BoardState, error) {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.st.Loading = true
	b.st.Error = ""
	b.mu.Unlock()

	report, err := LoadReport(ctx, b.backend, app)

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.seq {
		return b.snapshotLocked(), ErrStale
	}
	b.st.Loading = false
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			b.st.Error = FailureMessage(err)
		}
		return b.snapshotLocked(), err
	}
	b.st.Report = report
	b.st.Loaded = true
	b.st.Market = app.Market
	b.st.Project = app.ProjectName
	b.st.Applying = nil
	b.st.Pager = paging.New(b.st.Pager.Size)
	return b.snapshotLocked(), nil
}

// SetPage moves the report table to page.
func (b *Board) SetPage(page int) BoardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.Pager = b.st.Pager.SetPage(page, len(b.st.Report.Items))
	return b.snapshotLocked()
}

// SetPageSize changes the report page size.
func (b *Board) SetPageSize(size int) BoardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.Pager = b.st.Pager.SetSize(size)
	return b.snapshotLocked()
}

// Find returns the loaded recommendation for ruleID.
func (b *Board) Find(ruleID int) (Recommendation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st.Report.Find(ruleID)
}

// OpenApply opens the preview dialog for ruleID. Rules that need no query
// change cannot be applied.
func (b *Board) OpenApply(ruleID int) (BoardState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.st.Report.Find(ruleID)
	if !ok || !rec.CanApply() {
		b.st.Applying = nil
		return b.snapshotLocked(), ErrUnknownRule
	}
	b.st.Applying = &rec
	return b.snapshotLocked(), nil
}

// CloseApply closes the preview dialog.
func (b *Board) CloseApply() BoardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.Applying = nil
	return b.snapshotLocked()
}
