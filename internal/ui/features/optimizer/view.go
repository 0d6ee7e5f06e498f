package optimizer

import (
	"fmt"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/querydesk/internal/optimize"
	c "github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

const actions = "/optimize/actions"

// View renders the whole Optimize view.
func View(st optimize.State, sizes []int) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("section", "id", "optimize-view", "class", "view",
			"data-signals__ifmissing", c.Signals(Signals{Source: st.Prompt}))

		h.Open("div", "class", "panel prompt")
		h.Elem("label", "Query to optimize", "for", "opt-source")
		h.Open("textarea", "id", "opt-source", "rows", "6", "class", "sql", "data-bind:opt-source", "")
		h.Text(st.Prompt)
		h.Close("textarea")
		h.Open("div", "class", "actions")
		h.Elem("button", "Optimize",
			"class", "primary",
			"data-on:click", c.Post(actions+"/run"),
			"disabled", c.If(st.Optimizing))
		h.Close("div")
		if st.Optimizing {
			h.Elem("p", "Optimizing...", "class", "busy")
		}
		h.Close("div")

		if st.Query != "" {
			h.Open("div", "class", "panel query")
			h.Elem("h3", "Optimized Query")
			h.Render(c.Code(st.Query))
			h.Open("div", "class", "actions")
			h.Elem("button", "Dry Run",
				"data-on:click", c.Post(actions+"/estimate"),
				"disabled", c.If(!st.ResultsReady || st.Estimating))
			h.Elem("button", "Show Results",
				"data-on:click", c.Post(actions+"/results"),
				"disabled", c.If(!st.ResultsReady || st.Loading))
			h.Close("div")
			h.Close("div")
		}

		switch {
		case st.Estimating:
			h.Elem("p", "Running dry run...", "class", "busy")
		case st.EstimateError != "":
			h.Render(c.Alert(st.EstimateError))
		case st.Estimate != nil:
			h.Open("dl", "class", "panel estimate")
			h.Elem("dt", "Estimated cost")
			h.Elem("dd", fmt.Sprintf("$%.2f", st.Estimate.EstimatedCostUSD))
			h.Elem("dt", "Gigabytes processed")
			h.Elem("dd", fmt.Sprintf("%.3f", st.Estimate.GigabytesProcessed))
			h.Close("dl")
		}

		h.Render(c.Alert(st.Error))
		if st.Loading {
			h.Elem("p", "Loading results...", "class", "busy")
		}
		if total := st.Results.Len(); total > 0 {
			lo, hi := st.Pager.Slice(total)
			h.Open("div", "class", "panel results")
			h.Render(c.ResultTable(st.Results, lo, hi))
			h.Render(c.Pager(c.PagerProps{Pager: st.Pager, Total: total, Sizes: sizes, Action: actions + "/page"}))
			h.Close("div")
		}
		h.Render(c.Insights(st.Insights))

		h.Close("section")
	})
}
