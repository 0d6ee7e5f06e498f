package generate

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/querydesk/internal/authoring"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

// Signals are the view's client-side values.
type Signals struct {
	Prompt string `json:"prompt"`
	Query  string `json:"query"`
	Unit   string `json:"unit"`
}

// Handlers provides HTTP handlers for the generate feature.
type Handlers struct {
	env *common.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *common.Env) *Handlers {
	return &Handlers{env: env}
}

// GeneratePage renders the authoring view with the session's current state.
func (h *Handlers) GeneratePage(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	st := req.Views.Authoring.Snapshot()
	h.env.RenderPage(w, r, req, "Generate", components.TabGenerate, View(st, h.env.Sizes()))
}

// NewPrompt returns the view to idle.
func (h *Handlers) NewPrompt(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, true, func(req *common.Request, _ Signals) (authoring.State, error) {
		return req.Views.Authoring.NewPrompt(), nil
	})
}

// Generate asks the backend for a query for the prompt.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, true, func(req *common.Request, s Signals) (authoring.State, error) {
		return req.Views.Authoring.Generate(req.Ctx, req.App, s.Prompt)
	})
}

// Edit replaces the query text.
func (h *Handlers) Edit(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, false, func(req *common.Request, s Signals) (authoring.State, error) {
		return req.Views.Authoring.Edit(s.Query)
	})
}

// Estimate dry-runs the query.
func (h *Handlers) Estimate(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, false, func(req *common.Request, _ Signals) (authoring.State, error) {
		return req.Views.Authoring.Estimate(req.Ctx, req.App)
	})
}

// Execute runs the query. A browser that goes away does not cancel the
// run, so only the execution deadline can time it out.
func (h *Handlers) Execute(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, false, func(req *common.Request, _ Signals) (authoring.State, error) {
		return req.Views.Authoring.Execute(context.WithoutCancel(req.Ctx), req.App)
	})
}

// Dismiss closes the error dialog.
func (h *Handlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, false, func(req *common.Request, _ Signals) (authoring.State, error) {
		return req.Views.Authoring.DismissFailure(), nil
	})
}

// Unit switches the bytes-processed unit.
func (h *Handlers) Unit(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, false, func(req *common.Request, s Signals) (authoring.State, error) {
		return req.Views.Authoring.SetUnit(authoring.ParseByteUnit(s.Unit)), nil
	})
}

// Paginate moves the results table.
func (h *Handlers) Paginate(w http.ResponseWriter, r *http.Request) {
	page, hasPage, size, hasSize := common.PageParams(r)
	h.act(w, r, false, func(req *common.Request, _ Signals) (authoring.State, error) {
		switch {
		case hasSize:
			return req.Views.Authoring.SetPageSize(size), nil
		case hasPage:
			return req.Views.Authoring.SetPage(page), nil
		}
		return req.Views.Authoring.Snapshot(), nil
	})
}

// Download serves the results as CSV or the query as a .sql file.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	st := req.Views.Authoring.Snapshot()

	switch chi.URLParam(r, "file") {
	case authoring.ResultsFileName:
		if st.Results.Len() == 0 {
			http.Error(w, "no results to download", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+authoring.ResultsFileName+`"`)
		if err := authoring.WriteCSV(w, st.Results); err != nil {
			h.env.Logger.Error("csv export failed", "error", err)
		}
	case authoring.QueryFileName:
		if st.Query == "" {
			http.Error(w, "no query to download", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/sql; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+authoring.QueryFileName+`"`)
		_, _ = w.Write([]byte(st.Query))
	default:
		http.NotFound(w, r)
	}
}

// act runs fn for an action and patches the view. pushText resends the
// prompt and query signals, for actions that replace them on the server.
func (h *Handlers) act(w http.ResponseWriter, r *http.Request, pushText bool, fn func(*common.Request, Signals) (authoring.State, error)) {
	// Read signals BEFORE creating SSE (SSE consumes the request body)
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
	if err != nil && !errors.Is(err, authoring.ErrStale) {
		h.env.Logger.Debug("authoring action", "path", r.URL.Path, "error", err)
	}

	sse := datastar.NewSSE(w, r)
	if h.env.Done(sse, req, err) {
		return
	}
	if pushText {
		_ = sse.MarshalAndPatchSignals(map[string]string{"prompt": st.Prompt, "query": st.Query})
	}
	if err := sse.PatchElementTempl(View(st, h.env.Sizes())); err != nil {
		_ = sse.ConsoleError(err)
	}
}
