package components

import (
	"github.com/a-h/templ"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/paging"
)

// ErrorDialog is a modal error with optional suggestions. Dismiss is the
// action that closes it.
func ErrorDialog(message string, suggestions []string, dismiss string) templ.Component {
	return Component(func(h *HTML) {
		h.Open("dialog", "class", "error-dialog", "open", "")
		h.Elem("h2", "Error")
		h.Elem("p", message)
		if len(suggestions) > 0 {
			h.Elem("h3", "Suggestions")
			h.Open("ul")
			for _, s := range suggestions {
				h.Elem("li", s)
			}
			h.Close("ul")
		}
		h.Elem("button", "Close", "data-on:click", Post(dismiss))
		h.Close("dialog")
	})
}

// Notice is a transient success message.
func Notice(text string) templ.Component {
	return Component(func(h *HTML) {
		if text == "" {
			return
		}
		h.Elem("p", text, "class", "notice", "role", "status")
	})
}

// Alert is an inline error message.
func Alert(text string) templ.Component {
	return Component(func(h *HTML) {
		if text == "" {
			return
		}
		h.Elem("p", text, "class", "alert", "role", "alert")
	})
}

// PagerProps configures a pager. Action receives page or size as a query
// parameter.
type PagerProps struct {
	Pager  paging.Pager
	Total  int
	Sizes  []int
	Action string
	Busy   bool
}

// Pager renders previous/next controls, the range label and a size picker
// that always offers All.
func Pager(p PagerProps) templ.Component {
	return Component(func(h *HTML) {
		h.Open("div", "class", "pager")
		h.Elem("button", "Previous",
			"data-on:click", Post(p.Action+"?page="+Itoa(p.Pager.Page-1)),
			"disabled", If(p.Busy || !p.Pager.CanPrev()))
		h.Elem("span", p.Pager.Label(p.Total), "class", "range")
		h.Elem("button", "Next",
			"data-on:click", Post(p.Action+"?page="+Itoa(p.Pager.Page+1)),
			"disabled", If(p.Busy || !p.Pager.CanNext(p.Total)))

		h.Open("select", "aria-label", "Rows per page",
			"data-on:change", "@post('"+p.Action+"?size=' + el.value)",
			"disabled", If(p.Busy))
		sizes := append(append([]int{}, p.Sizes...), paging.All)
		for _, size := range sizes {
			h.Elem("option", paging.SizeLabel(size),
				"value", Itoa(size),
				"selected", If(size == p.Pager.Size))
		}
		h.Close("select")
		h.Close("div")
	})
}

// ResultTable renders rows [lo, hi) of rs.
func ResultTable(rs api.ResultSet, lo, hi int) templ.Component {
	return Component(func(h *HTML) {
		if len(rs.Columns) == 0 {
			h.Elem("p", "No rows returned.", "class", "empty")
			return
		}
		h.Open("table", "class", "results")
		h.Open("thead")
		h.Open("tr")
		for _, c := range rs.Columns {
			h.Elem("th", c)
		}
		h.Close("tr")
		h.Close("thead")
		h.Open("tbody")
		for i := lo; i < hi; i++ {
			h.Open("tr")
			for _, cell := range rs.Cells(i) {
				h.Elem("td", cell)
			}
			h.Close("tr")
		}
		h.Close("tbody")
		h.Close("table")
	})
}

// Insights lists the backend's textual summary.
func Insights(items []string) templ.Component {
	return Component(func(h *HTML) {
		if len(items) == 0 {
			return
		}
		h.Open("section", "class", "insights")
		h.Elem("h3", "Insights")
		h.Open("ul")
		for _, s := range items {
			h.Elem("li", s)
		}
		h.Close("ul")
		h.Close("section")
	})
}

// Code renders a read-only SQL block.
func Code(sql string) templ.Component {
	return Component(func(h *HTML) {
		h.Open("pre", "class", "sql")
		h.Elem("code", sql)
		h.Close("pre")
	})
}
