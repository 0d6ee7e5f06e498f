package catalog

import (
	"strconv"

	"github.com/a-h/templ"

	meta "github.com/leapstack-labs/querydesk/internal/catalog"
	c "github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

const (
	tableActions  = "/catalog/actions/table"
	columnActions = "/catalog/actions/column"
)

// View renders the catalog editor tab.
func View(tbl meta.TableState, col meta.ColumnState) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("section", "id", "catalog-view", "class", "view columns")
		h.Render(TableForm(tbl))
		h.Render(ColumnForm(col))
		h.Close("section")
	})
}

func listSignal(list meta.ColumnList) string {
	switch list {
	case meta.FilterColumns:
		return "tblFilter"
	case meta.AggregateColumns:
		return "tblAggregate"
	case meta.SortColumns:
		return "tblSort"
	case meta.KeyColumns:
		return "tblKey"
	}
	return ""
}

func tagSignal(field meta.TagField) string {
	if field == meta.BusinessTerms {
		return "colBusinessTerm"
	}
	return "colSampleValue"
}

// TableSignals are the server-owned signal values of the table form.
// Inputs are always reset to empty.
func TableSignals(st meta.TableState) map[string]any {
	out := map[string]any{
		"tblTable":       st.Table,
		"tblDescription": st.Fields.Description,
		"tblTag":         "",
		"tblQuery":       "",
		"tblDraft":       editingDraft(st.Fields.Queries),
	}
	for _, l := range meta.ColumnLists {
		out[listSignal(l)] = ""
	}
	return out
}

// ColumnSignals are the server-owned signal values of the column form.
func ColumnSignals(st meta.ColumnState) map[string]any {
	return map[string]any{
		"colTable":        st.Table,
		"colColumn":       st.Column,
		"colDescription":  st.Fields.Description,
		"colFilterable":   st.Fields.IsFilterable,
		"colAggregatable": st.Fields.IsAggregatable,
		"colSampleValue":  "",
		"colBusinessTerm": "",
		"colQuery":        "",
		"colDraft":        editingDraft(st.Fields.Queries),
	}
}

func editingDraft(q meta.SampleQueries) string {
	for _, s := range q {
		if s.Editing {
			return s.Draft
		}
	}
	return ""
}

// TableForm renders the table metadata form.
func TableForm(st meta.TableState) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("div", "id", "table-form", "class", "panel form",
			"data-signals__ifmissing", c.Signals(TableSignals(st)))
		h.Elem("h2", "Table Metadata")

		picker(h, "tbl-table", "Table", st.Table, st.Tables, tableActions+"/select", st.Loading)
		messages(h, st.Error, st.Notice, tableActions+"/dismiss")

		if st.Loading {
			h.Elem("p", "Loading metadata...", "class", "busy")
		}
		if st.Table != "" && !st.Loading {
			description(h, "tbl-description", st.Fields.Description, tableActions+"/description")

			h.Elem("h3", "Tags")
			chips(h, st.Fields.Tags, tableActions+"/tag/remove")
			textAdd(h, "tbl-tag", "Add tag", tableActions+"/tag/add")

			h.Elem("h3", "Commonly Used Columns")
			for _, list := range meta.ColumnLists {
				base := tableActions + "/list/" + string(list)
				h.Open("fieldset", "class", "column-list", "data-list", string(list))
				h.Elem("legend", list.Label())
				chips(h, st.Fields.Lists[list], base+"/remove")
				h.Open("div", "class", "add")
				options(h, "data-bind:"+kebab(listSignal(list)), st.Columns)
				h.Elem("button", "Add", "data-on:click", c.Post(base+"/add"))
				h.Close("div")
				h.Close("fieldset")
			}

			queries(h, st.Fields.Queries, "tbl", tableActions+"/query")
			actions(h, tableActions, st.CanReset(), st.CanSave(), st.Saving)
			audit(h, st.Audit)
		}
		h.Close("div")
	})
}

// ColumnForm renders the column metadata form.
func ColumnForm(st meta.ColumnState) templ.Component {
	return c.Component(func(h *c.HTML) {
		h.Open("div", "id", "column-form", "class", "panel form",
			"data-signals__ifmissing", c.Signals(ColumnSignals(st)))
		h.Elem("h2", "Column Metadata")

		picker(h, "col-table", "Table", st.Table, st.Tables, columnActions+"/table", st.Loading)
		if st.Table != "" {
			picker(h, "col-column", "Column", st.Column, st.Columns, columnActions+"/select", st.Loading)
		}
		messages(h, st.Error, st.Notice, columnActions+"/dismiss")

		if st.Loading {
			h.Elem("p", "Loading metadata...", "class", "busy")
		}
		if st.Column != "" && !st.Loading {
			description(h, "col-description", st.Fields.Description, columnActions+"/description")

			h.Open("div", "class", "flags")
			for _, flag := range []struct{ id, label string }{
				{"col-filterable", "Filterable"},
				{"col-aggregatable", "Aggregatable"},
			} {
				h.Open("label")
				h.Open("input", "type", "checkbox", "id", flag.id,
					"data-bind:"+flag.id, "",
					"data-on:change", c.Post(columnActions+"/flags"))
				h.Text(" " + flag.label)
				h.Close("label")
			}
			h.Close("div")

			for _, field := range []meta.TagField{meta.SampleValues, meta.BusinessTerms} {
				values := st.Fields.SampleValues
				if field == meta.BusinessTerms {
					values = st.Fields.BusinessTerms
				}
				base := columnActions + "/tag/" + string(field)
				h.Elem("h3", field.Label())
				chips(h, values, base+"/remove")
				textAdd(h, kebab(tagSignal(field)), "Add value", base+"/add")
			}

			queries(h, st.Fields.Queries, "col", columnActions+"/query")
			actions(h, columnActions, st.CanReset(), st.CanSave(), st.Saving)
			audit(h, st.Audit)
		}
		h.Close("div")
	})
}

func picker(h *c.HTML, id, label, current string, values []string, action string, busy bool) {
	h.Elem("label", label, "for", id)
	h.Open("select", "id", id, "data-bind:"+id, "",
		"data-on:change", c.Post(action),
		"disabled", c.If(busy))
	h.Elem("option", "Select "+label, "value", "", "selected", c.If(current == ""))
	for _, v := range values {
		h.Elem("option", v, "value", v, "selected", c.If(v == current))
	}
	h.Close("select")
}

func options(h *c.HTML, bind string, values []string) {
	h.Open("select", bind, "")
	h.Elem("option", "Select column", "value", "")
	for _, v := range values {
		h.Elem("option", v, "value", v)
	}
	h.Close("select")
}

func messages(h *c.HTML, errMsg, notice, dismiss string) {
	if errMsg == "" && notice == "" {
		return
	}
	h.Open("div", "class", "messages")
	h.Render(c.Alert(errMsg))
	h.Render(c.Notice(notice))
	h.Elem("button", "Dismiss", "class", "link", "data-on:click", c.Post(dismiss))
	h.Close("div")
}

func description(h *c.HTML, id, text, action string) {
	h.Elem("label", "Description", "for", id)
	h.Open("textarea", "id", id, "rows", "3", "data-bind:"+id, "",
		"data-on:change", c.Post(action))
	h.Text(text)
	h.Close("textarea")
}

func chips(h *c.HTML, values meta.TagList, remove string) {
	h.Open("ul", "class", "chips")
	for i, v := range values {
		h.Open("li")
		h.Text(v)
		h.Elem("button", "×", "aria-label", "Remove "+v,
			"data-on:click", c.Post(remove+"?i="+strconv.Itoa(i)))
		h.Close("li")
	}
	h.Close("ul")
}

func textAdd(h *c.HTML, id, placeholder, action string) {
	h.Open("div", "class", "add")
	h.Open("input", "type", "text", "id", id, "placeholder", placeholder,
		"data-bind:"+id, "",
		"data-on:keydown", "evt.key === 'Enter' && "+c.Post(action))
	h.Elem("button", "Add", "data-on:click", c.Post(action))
	h.Close("div")
}

func queries(h *c.HTML, list meta.SampleQueries, prefix, base string) {
	h.Elem("h3", "Sample Queries")
	h.Open("ol", "class", "sample-queries")
	for _, q := range list {
		id := "?id=" + strconv.Itoa(q.ID)
		h.Open("li")
		if q.Editing {
			h.Open("textarea", "rows", "4", "class", "sql", "data-bind:"+prefix+"-draft", "",
				"data-on:input__debounce.400ms", c.Post(base+"/draft"+id))
			h.Text(q.Draft)
			h.Close("textarea")
			h.Elem("button", "Done", "data-on:click", c.Post(base+"/commit"+id))
		} else {
			h.Render(c.Code(q.SQL))
			h.Elem("button", "Edit", "data-on:click", c.Post(base+"/edit"+id))
		}
		h.Elem("button", "Remove", "data-on:click", c.Post(base+"/remove"+id))
		h.Close("li")
	}
	h.Close("ol")
	h.Open("div", "class", "add")
	h.Open("textarea", "rows", "3", "class", "sql", "placeholder", "New sample query",
		"data-bind:"+prefix+"-query", "")
	h.Close("textarea")
	h.Elem("button", "Add Query", "data-on:click", c.Post(base+"/add"))
	h.Close("div")
}

func actions(h *c.HTML, base string, canReset, canSave, saving bool) {
	h.Open("div", "class", "actions")
	h.Elem("button", "Reset", "data-on:click", c.Post(base+"/reset"), "disabled", c.If(!canReset))
	label := "Save"
	if saving {
		label = "Saving..."
	}
	h.Elem("button", label, "class", "primary", "data-on:click", c.Post(base+"/save"), "disabled", c.If(!canSave))
	h.Close("div")
}

func audit(h *c.HTML, records []meta.AuditRecord) {
	h.Elem("h3", "Audit History")
	if len(records) == 0 {
		h.Elem("p", "No changes recorded.", "class", "empty")
		return
	}
	h.Open("table", "class", "audit")
	h.Raw("<thead><tr><th>Updated By</th><th>Updated At</th></tr></thead>")
	h.Open("tbody")
	for _, rec := range records {
		h.Open("tr")
		h.Elem("td", rec.UpdatedBy)
		h.Elem("td", rec.UpdatedAt)
		h.Close("tr")
	}
	h.Close("tbody")
	h.Close("table")
}

// kebab turns a camelCase signal name into the attribute suffix datastar
// maps back to it.
func kebab(signal string) string {
	out := make([]byte, 0, len(signal)+4)
	for i := 0; i < len(signal); i++ {
		b := signal[i]
		if b >= 'A' && b <= 'Z' {
			out = append(out, '-', b+('a'-'A'))
			continue
		}
		out = append(out, b)
	}
	return string(out)
}
