package authoring

import (
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/querydesk/internal/api"
)

// Limits are the client-side business thresholds applied to an estimate.
type Limits struct {
	// CostLimitUSD blocks execution when the estimated cost is above it.
	CostLimitUSD float64

	// BytesPerSecond converts bytes scanned to an estimated runtime.
	BytesPerSecond float64

	// TimeoutRiskSeconds marks estimates slower than this as risky. The
	// warning never blocks execution.
	TimeoutRiskSeconds float64

	// ExecuteTimeout cancels an execute request on the client.
	ExecuteTimeout time.Duration
}

// DefaultLimits returns $10, 1 GiB/s, 30s and a 30s execute deadline.
func DefaultLimits() Limits {
	return Limits{
		CostLimitUSD:       10,
		BytesPerSecond:     1 << 30,
		TimeoutRiskSeconds: 30,
		ExecuteTimeout:     30 * time.Second,
	}
}

// Seconds estimates runtime for bytes scanned.
func (l Limits) Seconds(bytes float64) float64 {
	if l.BytesPerSecond <= 0 {
		return 0
	}
	return bytes / l.BytesPerSecond
}

// Assess derives the blocking and warning flags for an estimate.
func (l Limits) Assess(est api.CostEstimate) Assessment {
	secs := l.Seconds(est.BytesProcessed)
	return Assessment{
		Cost:         est.EstimatedCostUSD,
		Seconds:      secs,
		TooExpensive: est.EstimatedCostUSD > l.CostLimitUSD,
		TimeoutRisk:  secs > l.TimeoutRiskSeconds,
	}
}

// Assessment is an estimate judged against Limits.
type Assessment struct {
	Cost         float64
	Seconds      float64
	TooExpensive bool
	TimeoutRisk  bool
}

// LimitsHolder shares Limits between sessions and the config watcher.
type LimitsHolder struct {
	v atomic.Pointer[Limits]
}

// NewLimitsHolder returns a holder initialized to l.
func NewLimitsHolder(l Limits) *LimitsHolder {
	h := &LimitsHolder{}
	h.Store(l)
	return h
}

// Load returns the current limits.
func (h *LimitsHolder) Load() Limits {
	if h == nil {
		return DefaultLimits()
	}
	if l := h.v.Load(); l != nil {
		return *l
	}
	return DefaultLimits()
}

// Store replaces the limits for subsequent operations.
func (h *LimitsHolder) Store(l Limits) {
	h.v.Store(&l)
}
