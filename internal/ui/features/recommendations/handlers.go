package recommendations

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/querydesk/internal/paging"
	"github.com/leapstack-labs/querydesk/internal/recommend"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

// Handlers provides HTTP handlers for the recommendations feature.
type Handlers struct {
	env *common.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *common.Env) *Handlers {
	return &Handlers{env: env}
}

// RecommendationsPage renders the report, loading it first when the session
// has none for the current market and project.
func (h *Handlers) RecommendationsPage(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	st := req.Views.Board.Snapshot()
	if !st.Current(req.App) {
		st, err = h.refresh(w, r, req)
		if h.env.RedirectIfSignedOut(w, r, req) {
			return
		}
		if err != nil {
			h.env.Logger.Warn("recommendations failed", "error", err)
		}
	}

	view := View(st, req.Views.Drill.Snapshot(), h.env.Sizes())
	h.env.RenderPage(w, r, req, "Recommendations", components.TabRecommendations, view)
}

// Refresh reloads the report.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	st, err := h.refresh(w, r, req)
	h.patchBoard(w, r, req, st, err)
}

// refresh loads the report and stores the resolved project id in the app
// context, which the shell's status line then shows.
func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request, req *common.Request) (recommend.BoardState, error) {
	st, err := req.Views.Board.Refresh(req.Ctx, req.App)
	if err != nil {
		return st, err
	}
	if id := st.Report.ProjectID; id != "" && id != req.App.ProjectID {
		req.App.ProjectID = id
		if err := h.env.SaveApp(w, r, req); err != nil {
			return st, err
		}
	}
	return st, nil
}

// Paginate moves the report table.
func (h *Handlers) Paginate(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	page, hasPage, size, hasSize := common.PageParams(r)
	st := req.Views.Board.Snapshot()
	switch {
	case hasSize:
		st = req.Views.Board.SetPageSize(size)
	case hasPage:
		st = req.Views.Board.SetPage(page)
	}
	h.patchBoard(w, r, req, st, nil)
}

// OpenApply shows the recommended rewrite for a rule.
func (h *Handlers) OpenApply(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	ruleID, err := strconv.Atoi(chi.URLParam(r, "ruleId"))
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	st, err := req.Views.Board.OpenApply(ruleID)
	if err != nil {
		h.env.Logger.Debug("apply unavailable", "rule", ruleID, "error", err)
	}
	h.patchBoard(w, r, req, st, nil)
}

// CloseApply hides the apply dialog.
func (h *Handlers) CloseApply(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	h.patchBoard(w, r, req, req.Views.Board.CloseApply(), nil)
}

// OpenDrill shows the first page of queries matched by a rule.
func (h *Handlers) OpenDrill(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	ruleID, err := strconv.Atoi(chi.URLParam(r, "ruleId"))
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	rec, ok := req.Views.Board.Find(ruleID)
	if !ok {
		h.env.Fail(w, r, recommend.ErrUnknownRule)
		return
	}
	target := recommend.Target{RuleID: ruleID, Recommendation: rec.Recommendation, Title: rec.RuleTitle}
	st, err := req.Views.Drill.Open(req.Ctx, req.App, target, paging.DefaultSize)
	h.patchDrill(w, r, req, st, err)
}

// DrillPage moves the drill-down to another page or page size.
func (h *Handlers) DrillPage(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	st, err := pageDrill(req.Ctx, req, req.Views.Drill, r)
	h.patchDrill(w, r, req, st, err)
}

// CloseDrill hides the drill-down.
func (h *Handlers) CloseDrill(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	req.Views.Drill.Close()
	h.patchDrill(w, r, req, req.Views.Drill.Snapshot(), nil)
}

// DetailsPage is the deep link to one rule's queries. Path segments arrive
// escaped and are shown unescaped.
func (h *Handlers) DetailsPage(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ruleID, err := strconv.Atoi(chi.URLParam(r, "ruleId"))
	if err != nil {
		http.Error(w, "invalid rule id", http.StatusBadRequest)
		return
	}
	target := recommend.Target{
		RuleID:         ruleID,
		Recommendation: unescape(chi.URLParam(r, "recommendation")),
		Title:          unescape(chi.URLParam(r, "ruleTitle")),
	}

	st, err := req.Views.Details.Open(req.Ctx, req.App, target, paging.DefaultSize)
	if h.env.RedirectIfSignedOut(w, r, req) {
		return
	}
	if err != nil {
		h.env.Logger.Warn("rule details failed", "rule", ruleID, "error", err)
	}
	h.env.RenderPage(w, r, req, target.Title, components.TabRecommendations, DetailsView(st, h.env.Sizes()))
}

// DetailsPaginate moves the details table.
func (h *Handlers) DetailsPaginate(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	st, err := pageDrill(req.Ctx, req, req.Views.Details, r)

	sse := datastar.NewSSE(w, r)
	if h.env.Done(sse, req, err) || errors.Is(err, recommend.ErrClosed) {
		return
	}
	if err := sse.PatchElementTempl(DetailsView(st, h.env.Sizes())); err != nil {
		_ = sse.ConsoleError(err)
	}
}

func pageDrill(ctx context.Context, req *common.Request, d *recommend.DrillDown, r *http.Request) (recommend.DrillState, error) {
	page, hasPage, size, hasSize := common.PageParams(r)
	switch {
	case hasSize:
		return d.SetPageSize(ctx, req.App, size)
	case hasPage:
		return d.SetPage(ctx, req.App, page)
	}
	return d.Snapshot(), nil
}

func (h *Handlers) patchBoard(w http.ResponseWriter, r *http.Request, req *common.Request, st recommend.BoardState, err error) {
	sse := datastar.NewSSE(w, r)
	if h.env.Done(sse, req, err) {
		return
	}
	if err := sse.PatchElementTempl(Board(st, h.env.Sizes())); err != nil {
		_ = sse.ConsoleError(err)
	}
}

func (h *Handlers) patchDrill(w http.ResponseWriter, r *http.Request, req *common.Request, st recommend.DrillState, err error) {
	sse := datastar.NewSSE(w, r)
	if h.env.Done(sse, req, err) || errors.Is(err, recommend.ErrClosed) {
		return
	}
	if err := sse.PatchElementTempl(Drill(st, h.env.Sizes())); err != nil {
		_ = sse.ConsoleError(err)
	}
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}
