package generate

import (
	"fmt"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/querydesk/internal/authoring"
	c "github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

const actions = "/generate/actions"

var units = []struct {
	unit  authoring.ByteUnit
	label string
}{
	{authoring.UnitBytes, "Bytes"},
	{authoring.UnitGB, "GB"},
	{authoring.UnitTB, "TB"},
}

// View renders the whole authoring view; every action patches it.
func View(st authoring.State, sizes []int) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("section", "id", "generate-view", "class", "view",
			"data-signals__ifmissing", c.Signals(Signals{Prompt: st.Prompt, Query: st.Query, Unit: string(st.Unit)}))

		h.Render(promptPanel(st))
		if st.Query != "" || st.Generating {
			h.Render(queryPanel(st))
		}
		if st.Estimate != nil || st.EstimateError != "" || st.Estimating {
			h.Render(estimatePanel(st))
		}
		if st.Executed {
			h.Render(resultsPanel(st, sizes))
		}
		h.Render(c.Notice(st.Notice))
		if st.Failure != nil {
			h.Render(c.ErrorDialog(st.Failure.Message, st.Failure.Suggestions, actions+"/dismiss"))
		}

		h.Close("section")
	})
}

func promptPanel(st authoring.State) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("div", "class", "panel prompt")
		h.Elem("label", "Ask a question about your data", "for", "prompt")
		h.Open("textarea", "id", "prompt", "rows", "3", "data-bind:prompt", "",
			"placeholder", "e.g. Top 10 customers by revenue last quarter")
		h.Text(st.Prompt)
		h.Close("textarea")

		h.Open("div", "class", "actions")
		h.Elem("button", "Generate Query",
			"class", "primary",
			"data-on:click", c.Post(actions+"/run"),
			"disabled", c.If(st.Generating || st.Executing))
		h.Elem("button", "New Prompt", "data-on:click", c.Post(actions+"/new"))
		h.Close("div")
		if st.Generating {
			h.Elem("p", "Generating query...", "class", "busy")
		}
		h.Close("div")
	})
}

func queryPanel(st authoring.State) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("div", "class", "panel query")
		h.Elem("label", "Generated Query", "for", "query")
		h.Open("textarea", "id", "query", "rows", "8", "class", "sql",
			"data-bind:query", "",
			"data-on:input__debounce.400ms", c.Post(actions+"/edit"),
			"readonly", c.If(!st.CanEdit()))
		h.Text(st.Query)
		h.Close("textarea")

		h.Open("div", "class", "actions")
		h.Elem("button", "Estimate Cost",
			"data-on:click", c.Post(actions+"/estimate"),
			"disabled", c.If(!st.CanEstimate()))

		class := "primary"
		if st.Assessment.TimeoutRisk {
			class += " warning"
		}
		h.Elem("button", "Execute Query",
			"id", "execute",
			"class", class,
			"title", st.ExecuteTooltip(),
			"data-on:click", c.Post(actions+"/execute"),
			"disabled", c.If(!st.CanExecute()))
		h.Elem("a", "Download .sql", "href", "/generate/download/"+authoring.QueryFileName, "download", "")
		h.Close("div")

		if st.Executing {
			h.Elem("p", "Executing query...", "class", "busy")
		}
		h.Close("div")
	})
}

func estimatePanel(st authoring.State) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("div", "class", "panel estimate")
		h.Elem("h3", "Cost Estimate")
		switch {
		case st.Estimating:
			h.Elem("p", "Estimating...", "class", "busy")
		case st.EstimateError != "":
			h.Render(c.Alert(st.EstimateError))
		case st.Estimate != nil:
			h.Open("dl")
			h.Elem("dt", "Estimated cost")
			h.Elem("dd", fmt.Sprintf("$%.2f", st.Assessment.Cost))
			h.Elem("dt", "Bytes processed")
			h.Open("dd")
			h.Text(st.BytesDisplay() + " ")
			h.Open("select", "aria-label", "Unit", "data-bind:unit", "", "data-on:change", c.Post(actions+"/unit"))
			for _, u := range units {
				h.Elem("option", u.label, "value", string(u.unit), "selected", c.If(u.unit == st.Unit))
			}
			h.Close("select")
			h.Close("dd")
			h.Elem("dt", "Estimated runtime")
			h.Elem("dd", fmt.Sprintf("%.1fs", st.Assessment.Seconds))
			h.Close("dl")

			if st.Assessment.TooExpensive {
				h.Render(c.Alert(fmt.Sprintf("Estimated cost exceeds the $%.2f limit.", st.CostLimitUSD)))
			}
			if st.Assessment.TimeoutRisk {
				h.Elem("p", "This query may exceed the execution time limit.", "class", "warning")
			}
		}
		h.Close("div")
	})
}

func resultsPanel(st authoring.State, sizes []int) templ.Component {
	return c.Component(func(h *c.HTML) {
		total := st.Results.Len()
		lo, hi := st.PageRange()

		h.Open("div", "class", "panel results", "id", "results")
		h.Open("div", "class", "results-header")
		h.Elem("h3", "Results")
		h.Elem("span", c.Count(total)+" rows fetched", "class", "count")
		if total > 0 {
			h.Elem("a", "Download CSV", "href", "/generate/download/"+authoring.ResultsFileName, "download", "")
		}
		h.Close("div")

		h.Render(c.ResultTable(st.Results, lo, hi))
		if total > 0 {
			h.Render(c.Pager(c.PagerProps{Pager: st.Pager, Total: total, Sizes: sizes, Action: actions + "/page"}))
		}
		h.Render(c.Insights(st.Insights))
		h.Close("div")
	})
}
