package common

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

// ShellData assembles the header for req with active highlighted.
func (e *Env) ShellData(req *Request, active components.Tab) components.ShellData {
	return components.ShellData{
		Active:       active,
		App:          req.App,
		Projects:     e.Projects,
		CostLimitUSD: e.Limits.Load().CostLimitUSD,
	}
}

// RenderPage writes a full console page with the shell around view.
func (e *Env) RenderPage(w http.ResponseWriter, r *http.Request, req *Request, title string, active components.Tab, view templ.Component) {
	page := components.Page(title, e.IsDev, components.Shell(e.ShellData(req, active), view))
	if err := page.Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
