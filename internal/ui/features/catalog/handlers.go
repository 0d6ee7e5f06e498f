package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	meta "github.com/leapstack-labs/querydesk/internal/catalog"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common/components"
)

// Signals are the client-side values of both forms. The four column list
// pickers and the two column tag inputs each have their own input.
type Signals struct {
	Table       string `json:"tblTable"`
	Description string `json:"tblDescription"`
	Tag         string `json:"tblTag"`
	Filter      string `json:"tblFilter"`
	Aggregate   string `json:"tblAggregate"`
	Sort        string `json:"tblSort"`
	Key         string `json:"tblKey"`
	Query       string `json:"tblQuery"`
	Draft       string `json:"tblDraft"`

	ColTable       string `json:"colTable"`
	Column         string `json:"colColumn"`
	ColDescription string `json:"colDescription"`
	Filterable     bool   `json:"colFilterable"`
	Aggregatable   bool   `json:"colAggregatable"`
	SampleValue    string `json:"colSampleValue"`
	BusinessTerm   string `json:"colBusinessTerm"`
	ColQuery       string `json:"colQuery"`
	ColDraft       string `json:"colDraft"`
}

// listInput returns the picker value for list.
func (s Signals) listInput(list meta.ColumnList) string {
	switch list {
	case meta.FilterColumns:
		return s.Filter
	case meta.AggregateColumns:
		return s.Aggregate
	case meta.SortColumns:
		return s.Sort
	case meta.KeyColumns:
		return s.Key
	}
	return ""
}

// tagInput returns the column tag input for field.
func (s Signals) tagInput(field meta.TagField) string {
	if field == meta.BusinessTerms {
		return s.BusinessTerm
	}
	return s.SampleValue
}

// Handlers provides HTTP handlers for the catalog feature.
type Handlers struct {
	env *common.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *common.Env) *Handlers {
	return &Handlers{env: env}
}

// CatalogPage renders both forms, filling the table pickers on first visit.
func (h *Handlers) CatalogPage(w http.ResponseWriter, r *http.Request) {
	req, err := h.env.Begin(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	tbl := req.Views.Tables.Snapshot()
	if tbl.Tables == nil {
		if tbl, err = req.Views.Tables.LoadTables(req.Ctx); err != nil {
			h.env.Logger.Warn("catalog tables failed", "error", err)
		}
	}
	col := req.Views.Columns.Snapshot()
	if col.Tables == nil && !req.SignedOut() {
		if col, err = req.Views.Columns.LoadTables(req.Ctx); err != nil {
			h.env.Logger.Warn("catalog tables failed", "error", err)
		}
	}
	if h.env.RedirectIfSignedOut(w, r, req) {
		return
	}

	h.env.RenderPage(w, r, req, "Catalog", components.TabCatalog, View(tbl, col))
}

// =============================================================================
// Table form
// =============================================================================

// SelectTable loads the chosen table into the form.
func (h *Handlers) SelectTable(w http.ResponseWriter, r *http.Request) {
	h.table(w, r, syncAll, func(req *common.Request, s Signals) (meta.TableState, error) {
		return req.Views.Tables.Select(req.Ctx, s.Table)
	})
}

// TableDescription stores the edited description.
func (h *Handlers) TableDescription(w http.ResponseWriter, r *http.Request) {
	h.table(w, r, nil, func(req *common.Request, s Signals) (meta.TableState, error) {
		return req.Views.Tables.SetDescription(s.Description), nil
	})
}

// AddTableTag appends the typed tag.
func (h *Handlers) AddTableTag(w http.ResponseWriter, r *http.Request) {
	h.table(w, r, []string{"tblTag"}, func(req *common.Request, s Signals) (meta.TableState, error) {
		return req.Views.Tables.AddTag(s.Tag)
	})
}

// RemoveTableTag drops the tag at ?i=.
func (h *Handlers) RemoveTableTag(w http.ResponseWriter, r *http.Request) {
	i := intParam(r, "i")
	h.table(w, r, nil, func(req *common.Request, _ Signals) (meta.TableState, error) {
		return req.Views.Tables.RemoveTag(i), nil
	})
}

// AddListColumn appends the picked column to one of the four lists.
func (h *Handlers) AddListColumn(w http.ResponseWriter, r *http.Request) {
	list := meta.ColumnList(chi.URLParam(r, "list"))
	h.table(w, r, []string{listSignal(list)}, func(req *common.Request, s Signals) (meta.TableState, error) {
		return req.Views.Tables.AddColumn(list, s.listInput(list))
	})
}

// RemoveListColumn drops the column at ?i= from a list.
func (h *Handlers) RemoveListColumn(w http.ResponseWriter, r *http.Request) {
	list := meta.ColumnList(chi.URLParam(r, "list"))
	i := intParam(r, "i")
	h.table(w, r, nil, func(req *common.Request, _ Signals) (meta.TableState, error) {
		return req.Views.Tables.RemoveColumn(list, i), nil
	})
}

// TableQuery edits the sample query list. The op path segment is one of
// add, edit, draft, commit or remove; ?id= names the query.
func (h *Handlers) TableQuery(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	id := intParam(r, "id")
	h.table(w, r, querySync(op, "tblQuery", "tblDraft"), func(req *common.Request, s Signals) (meta.TableState, error) {
		edit, err := queryEdit(op, id, s.Query, s.Draft)
		if err != nil {
			return req.Views.Tables.Snapshot(), err
		}
		return req.Views.Tables.EditQueries(edit)
	})
}

// ResetTable restores the last loaded or saved values.
func (h *Handlers) ResetTable(w http.ResponseWriter, r *http.Request) {
	h.table(w, r, syncAll, func(req *common.Request, _ Signals) (meta.TableState, error) {
		return req.Views.Tables.Reset()
	})
}

// SaveTable upserts the table metadata.
func (h *Handlers) SaveTable(w http.ResponseWriter, r *http.Request) {
	h.table(w, r, syncAll, func(req *common.Request, s Signals) (meta.TableState, error) {
		req.Views.Tables.SetDescription(s.Description)
		return req.Views.Tables.Save(req.Ctx)
	})
}

// DismissTable clears the table form's messages.
func (h *Handlers) DismissTable(w http.ResponseWriter, r *http.Request) {
	h.table(w, r, nil, func(req *common.Request, _ Signals) (meta.TableState, error) {
		req.Views.Tables.ClearMessages()
		return req.Views.Tables.Snapshot(), nil
	})
}

// =============================================================================
// Column form
// =============================================================================

// SelectColumnTable loads the columns of the chosen table.
func (h *Handlers) SelectColumnTable(w http.ResponseWriter, r *http.Request) {
	h.column(w, r, syncAll, func(req *common.Request, s Signals) (meta.ColumnState, error) {
		return req.Views.Columns.SelectTable(req.Ctx, s.ColTable)
	})
}

// SelectColumn loads the chosen column into the form.
func (h *Handlers) SelectColumn(w http.ResponseWriter, r *http.Request) {
	h.column(w, r, syncAll, func(req *common.Request, s Signals) (meta.ColumnState, error) {
		return req.Views.Columns.SelectColumn(req.Ctx, s.Column)
	})
}

// ColumnDescription stores the edited description.
func (h *Handlers) ColumnDescription(w http.ResponseWriter, r *http.Request) {
	h.column(w, r, nil, func(req *common.Request, s Signals) (meta.ColumnState, error) {
		return req.Views.Columns.SetDescription(s.ColDescription), nil
	})
}

// ColumnFlags stores the filterable and aggregatable checkboxes.
func (h *Handlers) ColumnFlags(w http.ResponseWriter, r *http.Request) {
	h.column(w, r, nil, func(req *common.Request, s Signals) (meta.ColumnState, error) {
		return req.Views.Columns.SetFlags(s.Filterable, s.Aggregatable), nil
	})
}

// AddColumnTag appends a sample value or business term.
func (h *Handlers) AddColumnTag(w http.ResponseWriter, r *http.Request) {
	field := meta.TagField(chi.URLParam(r, "field"))
	h.column(w, r, []string{tagSignal(field)}, func(req *common.Request, s Signals) (meta.ColumnState, error) {
		return req.Views.Columns.AddTag(field, s.tagInput(field))
	})
}

// RemoveColumnTag drops the value at ?i=.
func (h *Handlers) RemoveColumnTag(w http.ResponseWriter, r *http.Request) {
	field := meta.TagField(chi.URLParam(r, "field"))
	i := intParam(r, "i")
	h.column(w, r, nil, func(req *common.Request, _ Signals) (meta.ColumnState, error) {
		return req.Views.Columns.RemoveTag(field, i), nil
	})
}

// ColumnQuery edits the column's sample query list.
func (h *Handlers) ColumnQuery(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	id := intParam(r, "id")
	h.column(w, r, querySync(op, "colQuery", "colDraft"), func(req *common.Request, s Signals) (meta.ColumnState, error) {
		edit, err := queryEdit(op, id, s.ColQuery, s.ColDraft)
		if err != nil {
			return req.Views.Columns.Snapshot(), err
		}
		return req.Views.Columns.EditQueries(edit)
	})
}

// ResetColumn restores the last loaded or saved values.
func (h *Handlers) ResetColumn(w http.ResponseWriter, r *http.Request) {
	h.column(w, r, syncAll, func(req *common.Request, _ Signals) (meta.ColumnState, error) {
		return req.Views.Columns.Reset()
	})
}

// SaveColumn upserts the column metadata.
func (h *Handlers) SaveColumn(w http.ResponseWriter, r *http.Request) {
	h.column(w, r, syncAll, func(req *common.Request, s Signals) (meta.ColumnState, error) {
		req.Views.Columns.SetDescription(s.ColDescription)
		req.Views.Columns.SetFlags(s.Filterable, s.Aggregatable)
		return req.Views.Columns.Save(req.Ctx)
	})
}

// DismissColumn clears the column form's messages.
func (h *Handlers) DismissColumn(w http.ResponseWriter, r *http.Request) {
	h.column(w, r, nil, func(req *common.Request, _ Signals) (meta.ColumnState, error) {
		req.Views.Columns.ClearMessages()
		return req.Views.Columns.Snapshot(), nil
	})
}

// =============================================================================
// Plumbing
// =============================================================================

// syncAll resends every signal the server owns.
var syncAll = []string{"*"}

func (h *Handlers) table(w http.ResponseWriter, r *http.Request, sync []string, fn func(*common.Request, Signals) (meta.TableState, error)) {
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
	if err != nil && !expected(err) {
		h.env.Logger.Debug("table form action", "path", r.URL.Path, "error", err)
	}

	sse := datastar.NewSSE(w, r)
	if h.env.Done(sse, req, err) {
		return
	}
	if len(sync) > 0 {
		_ = sse.MarshalAndPatchSignals(pick(TableSignals(st), sync))
	}
	if err := sse.PatchElementTempl(TableForm(st)); err != nil {
		_ = sse.ConsoleError(err)
	}
}

func (h *Handlers) column(w http.ResponseWriter, r *http.Request, sync []string, fn func(*common.Request, Signals) (meta.ColumnState, error)) {
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
	if err != nil && !expected(err) {
		h.env.Logger.Debug("column form action", "path", r.URL.Path, "error", err)
	}

	sse := datastar.NewSSE(w, r)
	if h.env.Done(sse, req, err) {
		return
	}
	if len(sync) > 0 {
		_ = sse.MarshalAndPatchSignals(pick(ColumnSignals(st), sync))
	}
	if err := sse.PatchElementTempl(ColumnForm(st)); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// expected reports errors that are already shown in the form.
func expected(err error) bool {
	return errors.Is(err, meta.ErrDuplicate) ||
		errors.Is(err, meta.ErrEmptyValue) ||
		errors.Is(err, meta.ErrNoSnapshot) ||
		errors.Is(err, meta.ErrLoading) ||
		errors.Is(err, meta.ErrStale)
}

func pick(all map[string]any, keys []string) map[string]any {
	if len(keys) == 1 && keys[0] == "*" {
		return all
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out
}

// querySync names the signals a sample query operation changes.
func querySync(op, input, draft string) []string {
	switch op {
	case "add":
		return []string{input}
	case "edit", "commit", "remove":
		return []string{draft}
	}
	return nil
}

// queryEdit maps a sample query operation to a list transformation.
func queryEdit(op string, id int, input, draft string) (func(meta.SampleQueries) (meta.SampleQueries, error), error) {
	switch op {
	case "add":
		return func(q meta.SampleQueries) (meta.SampleQueries, error) { return q.Add(input) }, nil
	case "edit":
		return func(q meta.SampleQueries) (meta.SampleQueries, error) { return q.StartEdit(id) }, nil
	case "draft":
		return func(q meta.SampleQueries) (meta.SampleQueries, error) { return q.ChangeDraft(id, draft) }, nil
	case "commit":
		return func(q meta.SampleQueries) (meta.SampleQueries, error) {
			q, err := q.ChangeDraft(id, draft)
			if err != nil {
				return q, err
			}
			return q.Commit(id)
		}, nil
	case "remove":
		return func(q meta.SampleQueries) (meta.SampleQueries, error) { return q.Remove(id) }, nil
	default:
		return nil, fmt.Errorf("unknown sample query operation %q", op)
	}
}

func intParam(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return -1
	}
	return v
}
