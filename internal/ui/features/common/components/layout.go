package components

import (
	"fmt"

	"github.com/a-h/templ"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/ui/resources"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// Tab identifies a top-level console view.
type Tab string

// The console tabs, in display order.
const (
	TabGenerate        Tab = "generate"
	TabOptimize        Tab = "optimize"
	TabRecommendations Tab = "recommendations"
	TabCatalog         Tab = "catalog"
)

var tabs = []struct {
	tab   Tab
	label string
}{
	{TabGenerate, "Generate"},
	{TabOptimize, "Optimize"},
	{TabRecommendations, "Recommendations"},
	{TabCatalog, "Catalog"},
}

// Path is the page URL of the tab.
func (t Tab) Path() string {
	return "/" + string(t)
}

// ShellData is what the header needs.
type ShellData struct {
	Active       Tab
	App          appctx.Context
	Projects     []string
	CostLimitUSD float64
}

// Page is the HTML document around every console page.
func Page(title string, isDev bool, body templ.Component) templ.Component {
	return Component(func(h *HTML) {
		h.Raw("<!doctype html>")
		h.Open("html", "lang", "en")
		h.Open("head")
		h.Raw(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.Elem("title", title+" - QueryDesk")
		h.Open("link", "rel", "stylesheet", "href", resources.StaticPath("console.css"))
		h.Open("script", "type", "module", "src", datastarScript)
		h.Close("script")
		h.Close("head")
		h.Open("body")
		if isDev {
			h.Open("div", "data-init", "@get('/reload', {retryMaxCount: 1000, retryInterval: 20, retryMaxWaitMs: 200})")
			h.Close("div")
		}
		h.Render(body)
		h.Close("body")
		h.Close("html")
	})
}

// Shell is the header with tabs, project selector and status line, followed
// by the active view. It keeps an update stream open for the session.
func Shell(data ShellData, content templ.Component) templ.Component {
	return Component(func(h *HTML) {
		h.Open("div", "id", "updates", "data-init", Get("/updates"))
		h.Close("div")

		h.Open("header", "class", "shell")
		h.Elem("h1", "QueryDesk")

		h.Open("nav", "class", "tabs")
		for _, t := range tabs {
			class := "tab"
			if t.tab == data.Active {
				class += " active"
			}
			h.Elem("a", t.label, "href", t.tab.Path(), "class", class)
		}
		h.Close("nav")

		h.Render(ProjectSelector(data))
		h.Render(Status(data))
		h.Close("header")

		h.Open("main", "id", "content")
		h.Render(content)
		h.Close("main")
	})
}

// ProjectSelector writes the selected project into the app context.
func ProjectSelector(data ShellData) templ.Component {
	return Component(func(h *HTML) {
		if len(data.Projects) == 0 {
			return
		}
		h.Open("label", "class", "project", "data-signals", Signals(map[string]string{"project": data.App.ProjectName}))
		h.Text("Project ")
		h.Open("select", "data-bind:project", "", "data-on:change", Post("/project"))
		for _, p := range data.Projects {
			h.Elem("option", p, "value", p, "selected", If(p == data.App.ProjectName))
		}
		h.Close("select")
		h.Close("label")
	})
}

// Status shows the app context. The update stream re-renders it when the
// project id resolves or the limits change.
func Status(data ShellData) templ.Component {
	return Component(func(h *HTML) {
		h.Open("div", "id", "shell-status", "class", "status")
		h.Elem("span", "Market: "+data.App.Market)
		if data.App.ProjectName != "" {
			h.Elem("span", "Project: "+data.App.ProjectName)
		}
		if data.App.ProjectID != "" {
			h.Elem("span", "Project ID: "+data.App.ProjectID, "id", "project-id")
		}
		h.Elem("span", fmt.Sprintf("Cost limit: $%.2f", data.CostLimitUSD))
		h.Close("div")
	})
}

// LoginPage is shown after the backend ended the session.
func LoginPage(isDev bool) templ.Component {
	return Page("Signed out", isDev, Component(func(h *HTML) {
		h.Open("main", "class", "signed-out")
		h.Elem("h1", "Your session has ended")
		h.Elem("p", "The analytics service no longer accepts this session.")
		h.Elem("a", "Return to the console", "href", "/")
		h.Close("main")
	}))
}

var printer = message.NewPrinter(language.English)

// Count formats n with thousands separators.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}
