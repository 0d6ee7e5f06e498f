package shell

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

// ProjectSignals is sent by the project selector.
type ProjectSignals struct {
	Project string `json:"project"`
}

// Handlers provides HTTP handlers for the shell feature.
type Handlers struct {
	env *common.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *common.Env) *Handlers {
	return &Handlers{env: env}
}

// Home sends the browser to the first tab. Unknown paths land here too.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, components.TabGenerate.Path(), http.StatusFound)
}

// LoginPage renders the signed-out page.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if err := components.LoginPage(h.env.IsDev).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Updates is the long-lived SSE stream of a console page. It re-renders the
// status line whenever the session's app context or the limits change.
// Nothing is sent up front; the page was rendered with current state.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	id, err := h.env.Sessions.SessionID(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}

	sse := datastar.NewSSE(w, r)

	updates := h.env.Notifier.Subscribe(id)
	defer h.env.Notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			req := &common.Request{App: h.env.CurrentApp(r, id), SessionID: id}
			if err := sse.PatchElementTempl(components.Status(h.env.ShellData(req, ""))); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

// SelectProject stores the chosen project in the app context. The project id
// belongs to the previous project and is cleared until the recommendation
// report resolves it again.
func (h *Handlers) SelectProject(w http.ResponseWriter, r *http.Request) {
	var signals ProjectSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.env.Fail(w, r, err)
		return
	}
	if len(h.env.Projects) > 0 && !slices.Contains(h.env.Projects, signals.Project) {
		h.env.Fail(w, r, fmt.Errorf("unknown project %q", signals.Project))
		return
	}

	req, err := h.env.Begin(w, r)
	if err != nil {
		h.env.Fail(w, r, err)
		return
	}
	if req.App.ProjectName != signals.Project {
		req.App.ProjectName = signals.Project
		req.App.ProjectID = ""
		if err := h.env.SaveApp(w, r, req); err != nil {
			h.env.Fail(w, r, err)
			return
		}
		h.env.Logger.Debug("project selected", "project", signals.Project, "session", req.SessionID)
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(components.Status(h.env.ShellData(req, ""))); err != nil {
		_ = sse.ConsoleError(err)
	}
}
