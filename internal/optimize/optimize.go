// Package optimize is the Optimize view: prompt to optimized query, an
// informational cost estimate and results from the insights service. Unlike
// authoring it applies no cost guard.
package optimize

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/paging"
)

// ErrStale is returned when a response belongs to a superseded request.
var ErrStale = errors.New("optimize: response superseded")

// ErrNoQuery is returned when an action needs an optimized query first.
var ErrNoQuery = errors.New("optimize: no optimized query")

const failedQuery = "Error generating query."

// Backend is the subset of the API gateway the view needs.
type Backend interface {
	OptimiseQuery(ctx context.Context, prompt string) (api.QueryResponse, error)
	Estimate(ctx context.Context, query, market string) (api.CostEstimate, error)
	GenerateInsights(ctx context.Context, query string) (api.ExecuteResponse, error)
}

// State is a point-in-time copy of the view.
type State struct {
	Prompt string
	Query  string

	// ResultsReady enables the results action; false after a failed optimize.
	ResultsReady bool

	Optimizing bool
	Estimating bool
	Loading    bool

	Estimate      *api.CostEstimate
	EstimateError string

	Results  api.ResultSet
	Insights []string
	Error    string

	Pager paging.Pager
}

// Page returns the result rows on the current page.
func (s State) Page() []api.Row {
	lo, hi := s.Pager.Slice(s.Results.Len())
	return s.Results.Rows[lo:hi]
}

// Session is one user's Optimize view.
type Session struct {
	backend Backend
	logger  *slog.Logger

	mu  sync.Mutex
	st  State
	seq uint64
}

// NewSession returns an empty view.
func NewSession(backend Backend, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{backend: backend, logger: logger, st: State{Pager: paging.New(5)}}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Optimize replaces every downstream value with a fresh optimization of
// prompt.
func (s *Session) Optimize(ctx context.Context, prompt string) (State, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.st = State{Prompt: prompt, Optimizing: true, Pager: paging.New(s.st.Pager.Size)}
	s.mu.Unlock()

	res, err := s.backend.OptimiseQuery(ctx, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return s.st, ErrStale
	}
	s.st.Optimizing = false
	if err != nil {
		s.logger.Warn("optimize failed", "error", err)
		if !errors.Is(err, api.ErrUnauthorized) {
			s.st.Query = failedQuery
		}
		return s.st, err
	}

	s.st.Query = res.SQL
	if strings.TrimSpace(s.st.Query) == "" && len(res.TextualSummary) > 0 {
		s.st.Query = res.TextualSummary[0]
	}
	s.st.ResultsReady = s.st.Query != ""
	return s.st, nil
}

// Estimate dry-runs the optimized query for display only.
func (s *Session) Estimate(ctx context.Context, app appctx.Context) (State, error) {
	s.mu.Lock()
	if !s.st.ResultsReady {
		st := s.st
		s.mu.Unlock()
		return st, ErrNoQuery
	}
	seq := s.seq
	query := s.st.Query
	s.st.Estimating = true
	s.st.Estimate = nil
	s.st.EstimateError = ""
	s.mu.Unlock()

	est, err := s.backend.Estimate(ctx, query, app.Market)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return s.st, ErrStale
	}
	s.st.Estimating = false
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			s.st.EstimateError = api.Message(err, "Dry run failed")
		}
		return s.st, err
	}
	s.st.Estimate = &est
	return s.st, nil
}

// Results fetches rows and insights for the optimized query.
func (s *Session) Results(ctx context.Context) (State, error) {
	s.mu.Lock()
	if !s.st.ResultsReady {
		st := s.st
		s.mu.Unlock()
		return st, ErrNoQuery
	}
	seq := s.seq
	query := s.st.Query
	s.st.Loading = true
	s.st.Error = ""
	s.mu.Unlock()

	res, err := s.backend.GenerateInsights(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return s.st, ErrStale
	}
	s.st.Loading = false
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			s.st.Error = api.Message(err, "Insight API failed")
		}
		return s.st, err
	}
	s.st.Results = res.Result
	s.st.Insights = res.TextualSummary
	s.st.Pager = paging.New(s.st.Pager.Size)
	return s.st, nil
}

// SetPage moves the results table to page.
func (s *Session) SetPage(page int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Pager = s.st.Pager.SetPage(page, s.st.Results.Len())
	return s.st
}

// SetPageSize changes the results page size.
func (s *Session) SetPageSize(size int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Pager = s.st.Pager.SetSize(size)
	return s.st
}
