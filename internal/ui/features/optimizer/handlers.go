package optimizer

import (
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/querydesk/internal/optimize"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

// Signals are the view's client-side values.
type Signals struct {
	Source string `json:"optSource"`
}

// Handlers provides HTTP handlers for the optimize feature.
type Handlers struct {
	env *common.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *common.Env) *Handlers {
	return &Handlers{env: env}
}

// OptimizePage renders the view with the session's current state.
func (h *Handlers) OptimizePage(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	st := req.Views.Optimize.Snapshot()
	h.env.RenderPage(w, r, req, "Optimize", components.TabOptimize, View(st, h.env.Sizes()))
}

// Optimize rewrites the submitted query.
func (h *Handlers) Optimize(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(req *common.Request, s Signals) (optimize.State, error) {
		return req.Views.Optimize.Optimize(req.Ctx, s.Source)
	})
}

// Estimate dry-runs the optimized query.
func (h *Handlers) Estimate(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(req *common.Request, _ Signals) (optimize.State, error) {
		return req.Views.Optimize.Estimate(req.Ctx, req.App)
	})
}

// Results fetches rows and insights for the optimized query.
func (h *Handlers) Results(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(req *common.Request, _ Signals) (optimize.State, error) {
		return req.Views.Optimize.Results(req.Ctx)
	})
}

// Paginate moves the results table.
func (h *Handlers) Paginate(w http.ResponseWriter, r *http.Request) {
	page, hasPage, size, hasSize := common.PageParams(r)
	h.act(w, r, func(req *common.Request, _ Signals) (optimize.State, error) {
		switch {
		case hasSize:
			return req.Views.Optimize.SetPageSize(size), nil
		case hasPage:
			return req.Views.Optimize.SetPage(page), nil
		}
		return req.Views.Optimize.Snapshot(), nil
	})
}

func (h *Handlers) act(w http.ResponseWriter, r *http.Request, fn func(*common.Request, Signals) (optimize.State, error)) {
	var signals Signals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.env.Fail(w, r, err)
		return
	}

	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}

	st, err := fn(req, signals)
	if err != nil {
		h.env.Logger.Debug("optimize action", "path", r.URL.Path, "error", err)
	}

	sse := datastar.NewSSE(w, r)
	if h.env.Done(sse, req, err) {
		return
	}
	if err := sse.PatchElementTempl(View(st, h.env.Sizes())); err != nil {
		_ = sse.ConsoleError(err)
	}
}
