package authoring

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/paging"
)

// Phase names the workflow position derived from the state flags.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
	PhaseEditable   Phase = "editable"
	PhaseEstimating Phase = "estimating"
	PhaseExecuting  Phase = "executing"
	PhaseExecuted   Phase = "executed"
)

// ByteUnit selects how bytes processed is displayed.
type ByteUnit string

const (
	UnitBytes ByteUnit = "bytes"
	UnitGB    ByteUnit = "gb"
	UnitTB    ByteUnit = "tb"
)

// ParseByteUnit accepts bytes, gb or tb; anything else is bytes.
func ParseByteUnit(s string) ByteUnit {
	switch ByteUnit(s) {
	case UnitGB, UnitTB:
		return ByteUnit(s)
	default:
		return UnitBytes
	}
}

// Failure is an error raised to the user as a modal dialog.
type Failure struct {
	Message     string
	Suggestions []string
}

// State is a point-in-time copy of an authoring session.
type State struct {
	Prompt string
	Query  string

	Editable bool
	Executed bool
	TimedOut bool

	Generating bool
	Estimating bool
	Executing  bool

	Estimate      *api.CostEstimate
	Assessment    Assessment
	EstimateError string

	Results  api.ResultSet
	Insights []string

	Failure *Failure
	Notice  string

	Unit  ByteUnit
	Pager paging.Pager

	// CostLimitUSD is the limit in force when the snapshot was taken.
	CostLimitUSD float64
}

// Phase reports the furthest workflow position the flags describe.
func (s State) Phase() Phase {
	switch {
	case s.Generating:
		return PhaseGenerating
	case s.Executing:
		return PhaseExecuting
	case s.Executed:
		return PhaseExecuted
	case s.Estimating:
		return PhaseEstimating
	case s.Editable:
		return PhaseEditable
	default:
		return PhaseIdle
	}
}

// CanEdit reports whether the query text accepts edits.
func (s State) CanEdit() bool {
	return s.Editable && !s.Executed && !s.Executing && !s.Generating
}

// CanEstimate reports whether an estimate can be requested.
func (s State) CanEstimate() bool {
	return s.Query != "" && !s.Executed && !s.Generating && !s.Estimating && !s.Executing
}

// CanExecute reports whether the execute action is enabled. A timeout risk
// only warns.
func (s State) CanExecute() bool {
	return s.blockReason() == ""
}

func (s State) blockReason() string {
	switch {
	case s.Executed:
		return "already executed"
	case s.TimedOut:
		return "timed out"
	case s.Assessment.TooExpensive:
		return "too expensive"
	case s.EstimateError != "":
		return "estimate failed"
	case s.Generating, s.Executing:
		return "busy"
	case s.Query == "" || !s.Editable:
		return "no query"
	default:
		return ""
	}
}

// ExecuteTooltip explains the state of the execute action.
func (s State) ExecuteTooltip() string {
	switch {
	case s.Executed:
		return "Query has already been executed. Generate a new query to execute again."
	case s.TimedOut:
		return "Query execution timed out. Generate a new query to try again."
	case s.Assessment.TooExpensive:
		return fmt.Sprintf("Execution blocked: Estimated cost $%.2f exceeds the $%.2f limit.",
			s.Assessment.Cost, s.CostLimitUSD)
	case s.EstimateError != "":
		return "Cannot execute - cost estimation failed. Please regenerate the query."
	case s.Assessment.TimeoutRisk:
		return fmt.Sprintf("Warning: Long runtime (%.1fs). Click to proceed anyway.", s.Assessment.Seconds)
	default:
		return "Execute query"
	}
}

// BytesDisplay renders bytes processed in the selected unit.
func (s State) BytesDisplay() string {
	if s.Estimate == nil {
		return ""
	}
	switch s.Unit {
	case UnitGB:
		return strconv.FormatFloat(s.Estimate.GigabytesProcessed, 'f', -1, 64)
	case UnitTB:
		return strconv.FormatFloat(s.Estimate.TerabytesProcessed, 'f', -1, 64)
	default:
		return strconv.FormatFloat(s.Estimate.BytesProcessed, 'f', -1, 64)
	}
}

// Page returns the result rows on the current page.
func (s State) Page() []api.Row {
	lo, hi := s.Pager.Slice(s.Results.Len())
	return s.Results.Rows[lo:hi]
}

// PageRange returns the indices of the current page within Results.
func (s State) PageRange() (lo, hi int) {
	return s.Pager.Slice(s.Results.Len())
}
