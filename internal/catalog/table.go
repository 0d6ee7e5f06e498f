package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/querydesk/internal/api"
)

// ColumnList names one of the four commonly used column lists.
type ColumnList string

const (
	FilterColumns    ColumnList = "filter"
	AggregateColumns ColumnList = "aggregate"
	SortColumns      ColumnList = "sort"
	KeyColumns       ColumnList = "key"
)

// ColumnLists is the display order of the commonly used column lists.
var ColumnLists = []ColumnList{FilterColumns, AggregateColumns, SortColumns, KeyColumns}

// Label is the heading shown for the list.
func (c ColumnList) Label() string {
	switch c {
	case FilterColumns:
		return "Filter Columns"
	case AggregateColumns:
		return "Aggregate Columns"
	case SortColumns:
		return "Sort Columns"
	case KeyColumns:
		return "Key Columns"
	default:
		return string(c)
	}
}

// TableFields are the editable values of the table form.
type TableFields struct {
	Description string
	Tags        TagList
	Lists       map[ColumnList]TagList
	Queries     SampleQueries
}

func blankTableFields() TableFields {
	lists := make(map[ColumnList]TagList, len(ColumnLists))
	for _, l := range ColumnLists {
		lists[l] = TagList{}
	}
	return TableFields{Tags: TagList{}, Lists: lists, Queries: SampleQueries{}}
}

func tableFieldsFrom(m TableMetadata) TableFields {
	f := blankTableFields()
	f.Description = m.Description
	f.Tags = TagList(m.Tags).Clone()
	f.Lists[FilterColumns] = TagList(m.FilterColumns).Clone()
	f.Lists[AggregateColumns] = TagList(m.AggregateColumns).Clone()
	f.Lists[SortColumns] = TagList(m.SortColumns).Clone()
	f.Lists[KeyColumns] = TagList(m.KeyColumns).Clone()
	f.Queries = FromUsage(m.SampleUsage)
	return f
}

// Clone returns a deep copy.
func (f TableFields) Clone() TableFields {
	out := TableFields{
		Description: f.Description,
		Tags:        f.Tags.Clone(),
		Lists:       make(map[ColumnList]TagList, len(f.Lists)),
		Queries:     f.Queries.Clone(),
	}
	for k, v := range f.Lists {
		out.Lists[k] = v.Clone()
	}
	return out
}

// Metadata converts the fields to the stored form.
func (f TableFields) Metadata() TableMetadata {
	return TableMetadata{
		Description:      f.Description,
		Tags:             f.Tags.Strings(),
		FilterColumns:    f.Lists[FilterColumns].Strings(),
		AggregateColumns: f.Lists[AggregateColumns].Strings(),
		SortColumns:      f.Lists[SortColumns].Strings(),
		KeyColumns:       f.Lists[KeyColumns].Strings(),
		SampleUsage:      f.Queries.Usage(),
	}
}

// TableState is a point-in-time copy of the table form.
type TableState struct {
	Tables  []string
	Columns []string
	Table   string
	Fields  TableFields
	Audit   []AuditRecord

	HasSnapshot bool
	Loading     bool
	Saving      bool

	Error  string
	Notice string
}

// CanSave reports whether the save action is enabled.
func (s TableState) CanSave() bool {
	return s.Table != "" && !s.Saving && !s.Loading
}

// CanReset reports whether the reset action is enabled.
func (s TableState) CanReset() bool {
	return s.HasSnapshot && !s.Saving
}

// TableForm edits the metadata of one table at a time.
type TableForm struct {
	backend Backend
	opts    Options

	mu       sync.Mutex
	st       TableState
	snapshot *TableFields
	seq      uint64
}

// NewTableForm returns an empty form.
func NewTableForm(b Backend, opts Options) *TableForm {
	return &TableForm{
		backend: b,
		opts:    opts.withDefaults(),
		st:      TableState{Fields: blankTableFields(), Audit: []AuditRecord{}},
	}
}

// Snapshot returns a copy of the current state.
func (f *TableForm) Snapshot() TableState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *TableForm) snapshotLocked() TableState {
	st := f.st
	st.Fields = f.st.Fields.Clone()
	st.HasSnapshot = f.snapshot != nil
	return st
}

// LoadTables fills the table picker.
func (f *TableForm) LoadTables(ctx context.Context) (TableState, error) {
	tables, err := f.backend.GetTables(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			f.st.Error = tablesFailure
		}
		return f.snapshotLocked(), err
	}
	f.st.Tables = tables
	return f.snapshotLocked(), nil
}

// Select loads metadata, column names and audit history for table. A table
// without metadata yields a blank form with nothing to reset to. An empty
// table clears the form.
func (f *TableForm) Select(ctx context.Context, table string) (TableState, error) {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.st.Table = table
	f.st.Fields = blankTableFields()
	f.st.Columns = nil
	f.st.Audit = []AuditRecord{}
	f.st.Error = ""
	f.st.Notice = ""
	f.snapshot = nil
	if table == "" {
		st := f.snapshotLocked()
		f.mu.Unlock()
		return st, nil
	}
	f.st.Loading = true
	f.mu.Unlock()

	var (
		raw     map[string]any
		metaErr error
		columns []string
		audit   []AuditRecord
	)
	var g errgroup.Group
	g.Go(func() error {
		raw, metaErr = f.backend.GetTableMetadata(ctx, f.opts.Market, table)
		return nil
	})
	g.Go(func() error {
		cols, err := f.backend.GetColumns(ctx, table)
		if err != nil {
			f.opts.Logger.Debug("columns unavailable", "table", table, "error", err)
			cols = []string{}
		}
		columns = cols
		return nil
	})
	g.Go(func() error {
		audit = loadAudit(ctx, f.backend, f.opts, table, "")
		return nil
	})
	_ = g.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.seq {
		return f.snapshotLocked(), ErrStale
	}
	f.st.Loading = false
	f.st.Columns = columns
	f.st.Audit = audit

	switch {
	case metaErr == nil:
		var m TableMetadata
		if err := decodeMetadata(raw, &m); err != nil {
			f.st.Error = fmt.Sprintf("Failed to load metadata for %s", table)
			return f.snapshotLocked(), err
		}
		fields := tableFieldsFrom(m)
		f.st.Fields = fields
		snap := fields.Clone()
		f.snapshot = &snap
		return f.snapshotLocked(), nil
	case errors.Is(metaErr, api.ErrNotFound):
		return f.snapshotLocked(), nil
	case errors.Is(metaErr, api.ErrUnauthorized):
		return f.snapshotLocked(), metaErr
	default:
		f.opts.Logger.Warn("table metadata failed", "table", table, "error", metaErr)
		f.st.Error = fmt.Sprintf("Failed to load metadata for %s", table)
		return f.snapshotLocked(), metaErr
	}
}

// SetDescription replaces the description.
func (f *TableForm) SetDescription(text string) TableState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Fields.Description = text
	return f.snapshotLocked()
}

// AddColumn appends column to list. A duplicate leaves the list unchanged
// and sets a notice naming the value.
func (f *TableForm) AddColumn(list ColumnList, column string) (TableState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.st.Fields.Lists[list]
	if !ok {
		return f.snapshotLocked(), fmt.Errorf("catalog: unknown column list %q", list)
	}
	next, err := cur.Add(column)
	if err != nil {
		f.st.Notice = noticeFor(err)
		return f.snapshotLocked(), err
	}
	f.st.Fields.Lists[list] = next
	f.st.Notice = ""
	return f.snapshotLocked(), nil
}

// RemoveColumn drops the value at index i of list.
func (f *TableForm) RemoveColumn(list ColumnList, i int) TableState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.st.Fields.Lists[list]; ok {
		f.st.Fields.Lists[list] = cur.Remove(i)
	}
	return f.snapshotLocked()
}

// AddTag appends a table tag.
func (f *TableForm) AddTag(tag string) (TableState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := f.st.Fields.Tags.Add(tag)
	if err != nil {
		f.st.Notice = noticeFor(err)
		return f.snapshotLocked(), err
	}
	f.st.Fields.Tags = next
	return f.snapshotLocked(), nil
}

// RemoveTag drops the tag at index i.
func (f *TableForm) RemoveTag(i int) TableState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Fields.Tags = f.st.Fields.Tags.Remove(i)
	return f.snapshotLocked()
}

// EditQueries applies fn to the sample query list.
func (f *TableForm) EditQueries(fn func(SampleQueries) (SampleQueries, error)) (TableState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := fn(f.st.Fields.Queries)
	if err != nil {
		return f.snapshotLocked(), err
	}
	f.st.Fields.Queries = next
	return f.snapshotLocked(), nil
}

// Reset restores the last loaded or saved values.
func (f *TableForm) Reset() (TableState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot == nil {
		return f.snapshotLocked(), ErrNoSnapshot
	}
	f.st.Fields = f.snapshot.Clone()
	f.st.Error = ""
	f.st.Notice = resetNotice
	return f.snapshotLocked(), nil
}

// Save upserts the current values. On success they become the reset
// baseline and the audit history is refreshed; on failure nothing changes
// but the error.
func (f *TableForm) Save(ctx context.Context) (TableState, error) {
	f.mu.Lock()
	switch {
	case f.st.Saving:
		st := f.snapshotLocked()
		f.mu.Unlock()
		return st, ErrSaveInFlight
	case f.st.Loading:
		st := f.snapshotLocked()
		f.mu.Unlock()
		return st, ErrLoading
	case f.st.Table == "":
		f.st.Error = selectTableMsg
		st := f.snapshotLocked()
		f.mu.Unlock()
		return st, ErrSelectionRequired
	}
	seq := f.seq
	table := f.st.Table
	saved := f.st.Fields.Clone()
	saved.Queries = saved.Queries.Committed()
	f.st.Saving = true
	f.st.Error = ""
	f.st.Notice = ""
	f.mu.Unlock()

	msg, err := f.backend.UpdateTable(ctx, api.UpdateTableRequest{
		Market:    f.opts.Market,
		TableName: table,
		Obj:       saved.Metadata(),
	})

	var audit []AuditRecord
	if err == nil {
		audit = loadAudit(ctx, f.backend, f.opts, table, "")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Saving = false
	if seq != f.seq {
		return f.snapshotLocked(), ErrStale
	}
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			f.st.Error = saveFailureMessage(err)
		}
		return f.snapshotLocked(), err
	}

	if msg == "" {
		msg = savedNotice
	}
	f.st.Notice = msg
	f.st.Fields.Queries = f.st.Fields.Queries.Committed()
	f.snapshot = &saved
	f.st.Audit = audit
	return f.snapshotLocked(), nil
}

// ClearMessages drops the transient error and notice.
func (f *TableForm) ClearMessages() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Error = ""
	f.st.Notice = ""
}

func noticeFor(err error) string {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Error()
	}
	return ""
}
