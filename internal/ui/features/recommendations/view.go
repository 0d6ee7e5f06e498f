package recommendations

import (
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/querydesk/internal/recommend"
	c "github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

const actions = "/recommendations/actions"

// View renders the recommendations tab: the report and the drill-down slot.
func View(board recommend.BoardState, drill recommend.DrillState, sizes []int) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("section", "id", "recommendations-view", "class", "view")
		h.Render(Board(board, sizes))
		h.Render(Drill(drill, sizes))
		h.Close("section")
	})
}

var reportHeaders = []string{
	"Rule ID", "Title", "Recommendation", "Category",
	"Query Count", "Query Change", "Schema Change", "Actions",
}

// Board renders the summary counters, the report table and the apply dialog.
func Board(st recommend.BoardState, sizes []int) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("div", "id", "recommendation-board", "class", "panel")

		h.Open("div", "class", "summary")
		h.Open("div", "class", "counter")
		h.Elem("span", "Schemas analyzed", "class", "caption")
		h.Elem("strong", c.Count(st.Report.SchemasAnalyzed))
		h.Close("div")
		h.Open("div", "class", "counter")
		h.Elem("span", "Queries analyzed", "class", "caption")
		h.Elem("strong", c.Count(st.Report.QueriesAnalyzed))
		h.Close("div")
		h.Elem("button", "Refresh",
			"data-on:click", c.Post(actions+"/refresh"),
			"disabled", c.If(st.Loading))
		h.Close("div")

		if st.Report.Warning != "" {
			h.Elem("p", st.Report.Warning, "class", "warning")
		}
		h.Render(c.Alert(st.Error))

		switch {
		case st.Loading && !st.Loaded:
			h.Elem("p", "Loading recommendations...", "class", "busy")
		case st.Loaded && len(st.Report.Items) == 0:
			h.Elem("p", "No recommendations for this project.", "class", "empty")
		case st.Loaded:
			reportTable(h, st)
			h.Render(c.Pager(c.PagerProps{
				Pager:  st.Pager,
				Total:  len(st.Report.Items),
				Sizes:  sizes,
				Action: actions + "/page",
				Busy:   st.Loading,
			}))
		}

		if st.Applying != nil {
			applyDialog(h, *st.Applying)
		}
		h.Close("div")
	})
}

func reportTable(h *c.HTML, st recommend.BoardState) {
	h.Open("table", "class", "report")
	h.Open("thead")
	h.Open("tr")
	for _, name := range reportHeaders {
		h.Elem("th", name)
	}
	h.Close("tr")
	h.Close("thead")
	h.Open("tbody")
	for _, rec := range st.Page() {
		id := strconv.Itoa(rec.RuleID)
		h.Open("tr")
		h.Elem("td", id, "class", "center")
		h.Elem("td", rec.RuleTitle)
		h.Elem("td", rec.Recommendation)
		h.Elem("td", rec.OptimizationCategory)
		h.Elem("td", c.Count(rec.QueryCount), "class", "center")
		h.Elem("td", rec.QueryChange, "class", "center")
		h.Elem("td", rec.SchemaChange, "class", "center")
		h.Open("td", "class", "actions")
		h.Elem("button", "View Queries", "data-on:click", c.Post(actions+"/rule/"+id))
		h.Elem("a", "Open", "href", DetailsURL(rec), "target", "_blank")
		if rec.CanApply() {
			h.Elem("button", "Apply", "data-on:click", c.Post(actions+"/apply/"+id))
		}
		h.Close("td")
		h.Close("tr")
	}
	h.Close("tbody")
	h.Close("table")
}

func applyDialog(h *c.HTML, rec recommend.Recommendation) {
	h.Open("dialog", "class", "apply-dialog", "open", "")
	h.Elem("h2", rec.RuleTitle)
	h.Elem("p", rec.Recommendation)
	h.Elem("h3", "Sample Query")
	h.Render(c.Code(rec.SampleQuery))
	h.Elem("h3", "Recommended Query")
	h.Render(c.Code(rec.RecommendedQuery))
	h.Elem("button", "Close", "data-on:click", c.Post(actions+"/apply/close"))
	h.Close("dialog")
}

// DetailsURL is the deep link to a rule's query details page.
func DetailsURL(rec recommend.Recommendation) string {
	return "/query-details/" + strconv.Itoa(rec.RuleID) + "/" +
		url.PathEscape(rec.Recommendation) + "/" + url.PathEscape(rec.RuleTitle)
}

// Drill renders the drill-down panel. A closed drill-down renders an empty
// placeholder so later patches have a target.
func Drill(st recommend.DrillState, sizes []int) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("div", "id", "rule-drilldown", "class", "panel drilldown")
		if st.Open {
			h.Open("header")
			h.Elem("h3", "Rule "+strconv.Itoa(st.Target.RuleID)+": "+st.Target.Title)
			h.Elem("button", "Close", "data-on:click", c.Post(actions+"/rule/close"))
			h.Close("header")
			h.Elem("p", st.Target.Recommendation, "class", "caption")
			drillTable(h, st, sizes, actions+"/rule/page")
		}
		h.Close("div")
	})
}

// DetailsView renders the standalone query details page.
func DetailsView(st recommend.DrillState, sizes []int) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("section", "id", "query-details", "class", "view")
		h.Elem("h2", st.Target.Title)
		h.Open("dl", "class", "details")
		h.Elem("dt", "Rule ID")
		h.Elem("dd", strconv.Itoa(st.Target.RuleID))
		h.Elem("dt", "Recommendation")
		h.Elem("dd", st.Target.Recommendation)
		h.Elem("dt", "Project")
		h.Elem("dd", st.ProjectName)
		h.Close("dl")
		drillTable(h, st, sizes, "/query-details/actions/page")
		h.Close("section")
	})
}

func drillTable(h *c.HTML, st recommend.DrillState, sizes []int, action string) {
	switch {
	case st.Error != "":
		h.Render(c.Alert(st.Error))
	case st.Loading:
		h.Elem("p", "Loading queries...", "class", "busy")
	case st.Rows.Len() == 0:
		h.Elem("p", "No matching queries.", "class", "empty")
	default:
		h.Open("table", "class", "results layout-"+st.Layout.Name)
		h.Open("thead")
		h.Open("tr")
		for _, name := range st.Layout.Headers() {
			h.Elem("th", name)
		}
		h.Close("tr")
		h.Close("thead")
		h.Open("tbody")
		for i := 0; i < st.Rows.Len(); i++ {
			h.Open("tr")
			for _, cell := range st.Cells(i) {
				class := c.Omit
				if cell.Center {
					class = "center"
				}
				if cell.Code {
					h.Open("td", "class", class)
					h.Render(c.Code(cell.Text))
					h.Close("td")
					continue
				}
				h.Elem("td", cell.Text, "class", class)
			}
			h.Close("tr")
		}
		h.Close("tbody")
		h.Close("table")
	}
	h.Render(c.Pager(c.PagerProps{
		Pager:  st.Pager,
		Total:  st.Total,
		Sizes:  sizes,
		Action: action,
		Busy:   st.Loading,
	}))
}
