// Package authoring implements the query authoring workflow: prompt,
// generated query, cost estimate, execution and results.
//
// Every operation captures a token when it starts. A response that arrives
// after a newer generate, a new prompt, or an edit of the query text is
// discarded with ErrStale instead of overwriting newer state.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/paging"
)

var (
	// ErrStale is returned when a response belongs to a superseded cycle.
	ErrStale = errors.New("authoring: response superseded")

	// ErrNotEditable is returned when the query text cannot be edited.
	ErrNotEditable = errors.New("authoring: query is not editable")

	// ErrExecuteBlocked is returned when execution is disabled.
	ErrExecuteBlocked = errors.New("authoring: execution blocked")

	// ErrEmptyPrompt is returned by Generate for a blank prompt.
	ErrEmptyPrompt = errors.New("authoring: prompt is empty")

	// ErrNoQuery is returned by Estimate when there is nothing to estimate.
	ErrNoQuery = errors.New("authoring: no query to estimate")
)

const (
	fallbackFailure  = "API request failed"
	noQueryGenerated = "No query generated."
)

// Backend is the subset of the API gateway the workflow needs.
type Backend interface {
	GenerateQuery(ctx context.Context, prompt, market string) (api.QueryResponse, error)
	Estimate(ctx context.Context, query, market string) (api.CostEstimate, error)
	ExecuteQuery(ctx context.Context, query, market string) (api.ExecuteResponse, error)
}

// token identifies the query an in-flight request was issued for.
type token struct {
	cycle uint64
	rev   uint64
}

// Session is one user's authoring workflow. It is safe for concurrent use;
// backend calls run without holding the lock.
type Session struct {
	backend Backend
	limits  *LimitsHolder
	logger  *slog.Logger

	mu    sync.Mutex
	st    State
	cycle uint64
	rev   uint64
}

// NewSession creates an idle session.
func NewSession(backend Backend, limits *LimitsHolder, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		backend: backend,
		limits:  limits,
		logger:  logger,
		st:      idleState(),
	}
}

func idleState() State {
	return State{
		Unit:  UnitBytes,
		Pager: paging.New(5),
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	st := s.st
	st.CostLimitUSD = s.limits.Load().CostLimitUSD
	return st
}

func (s *Session) current() token {
	return token{cycle: s.cycle, rev: s.rev}
}

// NewPrompt returns to idle from any state. In-flight responses become stale.
func (s *Session) NewPrompt() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycle++
	s.rev++
	unit, size := s.st.Unit, s.st.Pager.Size
	s.st = idleState()
	s.st.Unit = unit
	s.st.Pager = paging.New(size)
	return s.snapshotLocked()
}

// SetPrompt records the prompt text without starting a cycle.
func (s *Session) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Prompt = prompt
}

// Generate starts a new cycle: downstream state is cleared and the backend
// generates a query for prompt.
func (s *Session) Generate(ctx context.Context, app appctx.Context, prompt string) (State, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return s.Snapshot(), ErrEmptyPrompt
	}

	s.mu.Lock()
	s.cycle++
	s.rev++
	tok := s.current()
	unit, size := s.st.Unit, s.st.Pager.Size
	s.st = idleState()
	s.st.Unit = unit
	s.st.Pager = paging.New(size)
	s.st.Prompt = prompt
	s.st.Generating = true
	s.mu.Unlock()

	res, err := s.backend.GenerateQuery(ctx, prompt, app.Market)

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.cycle != s.cycle {
		s.logger.Debug("discarding stale generate response", "cycle", tok.cycle)
		return s.snapshotLocked(), ErrStale
	}
	s.st.Generating = false

	if err != nil {
		s.st.Query = ""
		s.st.Editable = false
		if !errors.Is(err, api.ErrUnauthorized) {
			s.st.Failure = &Failure{
				Message:     api.Message(err, fallbackFailure),
				Suggestions: api.Suggestions(err),
			}
		}
		return s.snapshotLocked(), err
	}

	s.rev++
	s.st.Query = generatedText(res)
	s.st.Editable = true
	s.st.Notice = "Query generated successfully!"
	return s.snapshotLocked(), nil
}

// generatedText prefers SQL, then the first insight line.
func generatedText(res api.QueryResponse) string {
	if sql := strings.TrimSpace(res.SQL); sql != "" {
		return res.SQL
	}
	for _, line := range res.TextualSummary {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return noQueryGenerated
}

// Edit replaces the query text and discards any estimate for the old text.
func (s *Session) Edit(text string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.st.CanEdit() {
		return s.snapshotLocked(), ErrNotEditable
	}
	if text == s.st.Query {
		return s.snapshotLocked(), nil
	}
	s.rev++
	s.st.Query = text
	s.resetEstimateLocked()
	return s.snapshotLocked(), nil
}

func (s *Session) resetEstimateLocked() {
	s.st.Estimate = nil
	s.st.Assessment = Assessment{}
	s.st.EstimateError = ""
	s.st.Estimating = false
}

// Estimate dry-runs the current query and applies the configured limits.
func (s *Session) Estimate(ctx context.Context, app appctx.Context) (State, error) {
	s.mu.Lock()
	if !s.st.CanEstimate() {
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st, ErrNoQuery
	}
	tok := s.current()
	query := s.st.Query
	s.resetEstimateLocked()
	s.st.Estimating = true
	s.mu.Unlock()

	est, err := s.backend.Estimate(ctx, query, app.Market)

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.current() {
		s.logger.Debug("discarding stale estimate", "cycle", tok.cycle, "rev", tok.rev)
		return s.snapshotLocked(), ErrStale
	}
	s.st.Estimating = false

	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			s.st.EstimateError = api.Message(err, "Cost estimation failed")
		}
		return s.snapshotLocked(), err
	}

	s.st.Estimate = &est
	s.st.Assessment = s.limits.Load().Assess(est)
	s.st.Notice = "Cost estimation completed successfully!"
	return s.snapshotLocked(), nil
}

// Execute runs the current query under the client-side deadline. Success
// locks the query until the next Generate; a timeout blocks execution the
// same way; a backend failure leaves execution available for a manual retry.
func (s *Session) Execute(ctx context.Context, app appctx.Context) (State, error) {
	limits := s.limits.Load()

	s.mu.Lock()
	if !s.st.CanExecute() {
		reason := s.st.blockReason()
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st, fmt.Errorf("%w: %s", ErrExecuteBlocked, reason)
	}
	tok := s.current()
	query := s.st.Query
	s.st.Executing = true
	s.st.TimedOut = false
	s.st.Failure = nil
	s.mu.Unlock()

	runCtx := ctx
	cancel := func() {}
	if limits.ExecuteTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, limits.ExecuteTimeout)
	}
	res, err := s.backend.ExecuteQuery(runCtx, query, app.Market)
	timedOut := err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok != s.current() {
		s.logger.Debug("discarding stale execute response", "cycle", tok.cycle)
		return s.snapshotLocked(), ErrStale
	}
	s.st.Executing = false

	switch {
	case err == nil:
		s.st.Executed = true
		s.st.Results = res.Result
		s.st.Insights = res.TextualSummary
		s.st.Pager = paging.New(s.st.Pager.Size)
		return s.snapshotLocked(), nil
	case timedOut:
		s.st.TimedOut = true
		s.st.Failure = &Failure{Message: timeoutMessage(limits)}
		return s.snapshotLocked(), err
	case errors.Is(err, api.ErrUnauthorized):
		return s.snapshotLocked(), err
	default:
		s.st.Failure = &Failure{
			Message:     api.Message(err, fallbackFailure),
			Suggestions: api.Suggestions(err),
		}
		return s.snapshotLocked(), err
	}
}

func timeoutMessage(l Limits) string {
	return fmt.Sprintf("Query execution timed out after %d seconds.", int(l.ExecuteTimeout.Seconds()))
}

// DismissFailure closes the error dialog.
func (s *Session) DismissFailure() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Failure = nil
	return s.snapshotLocked()
}

// ClearNotice drops the transient success message.
func (s *Session) ClearNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Notice = ""
}

// SetUnit selects how bytes processed are displayed.
func (s *Session) SetUnit(unit ByteUnit) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Unit = unit
	return s.snapshotLocked()
}

// SetPage moves the results table to page.
func (s *Session) SetPage(page int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Pager = s.st.Pager.SetPage(page, s.st.Results.Len())
	return s.snapshotLocked()
}

// SetPageSize changes the results page size and returns to the first page.
func (s *Session) SetPageSize(size int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Pager = s.st.Pager.SetSize(size)
	return s.snapshotLocked()
}
