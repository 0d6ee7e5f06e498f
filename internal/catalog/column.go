package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/querydesk/internal/api"
)

// TagField names one of the column form's free-text tag collections.
type TagField string

const (
	SampleValues  TagField = "sample_values"
	BusinessTerms TagField = "related_business_terms"
)

// Label is the heading shown for the collection.
func (t TagField) Label() string {
	switch t {
	case SampleValues:
		return "Sample Values"
	case BusinessTerms:
		return "Related Business Terms"
	default:
		return string(t)
	}
}

// ColumnFields are the editable values of the column form.
type ColumnFields struct {
	Description    string
	IsFilterable   bool
	IsAggregatable bool
	SampleValues   TagList
	BusinessTerms  TagList
	Queries        SampleQueries
}

func blankColumnFields() ColumnFields {
	return ColumnFields{SampleValues: TagList{}, BusinessTerms: TagList{}, Queries: SampleQueries{}}
}

func columnFieldsFrom(m ColumnMetadata) ColumnFields {
	return ColumnFields{
		Description:    m.Description,
		IsFilterable:   m.IsFilterable,
		IsAggregatable: m.IsAggregatable,
		SampleValues:   TagList(m.SampleValues).Clone(),
		BusinessTerms:  TagList(m.RelatedBusinessTerms).Clone(),
		Queries:        FromUsage(m.SampleUsage),
	}
}

// Clone returns a deep copy.
func (f ColumnFields) Clone() ColumnFields {
	f.SampleValues = f.SampleValues.Clone()
	f.BusinessTerms = f.BusinessTerms.Clone()
	f.Queries = f.Queries.Clone()
	return f
}

// Metadata converts the fields to the stored form.
func (f ColumnFields) Metadata() ColumnMetadata {
	return ColumnMetadata{
		Description:          f.Description,
		IsFilterable:         f.IsFilterable,
		IsAggregatable:       f.IsAggregatable,
		SampleValues:         f.SampleValues.Strings(),
		RelatedBusinessTerms: f.BusinessTerms.Strings(),
		SampleUsage:          f.Queries.Usage(),
	}
}

func (f *ColumnFields) tags(field TagField) (*TagList, bool) {
	switch field {
	case SampleValues:
		return &f.SampleValues, true
	case BusinessTerms:
		return &f.BusinessTerms, true
	}
	return nil, false
}

// ColumnState is a point-in-time copy of the column form.
type ColumnState struct {
	Tables  []string
	Columns []string
	Table   string
	Column  string
	Fields  ColumnFields
	Audit   []AuditRecord

	HasSnapshot bool
	Loading     bool
	Saving      bool

	Error  string
	Notice string
}

// CanSave reports whether the save action is enabled.
func (s ColumnState) CanSave() bool {
	return s.Table != "" && s.Column != "" && !s.Saving && !s.Loading
}

// CanReset reports whether the reset action is enabled.
func (s ColumnState) CanReset() bool {
	return s.HasSnapshot && !s.Saving
}

// ColumnForm edits the metadata of one column at a time.
type ColumnForm struct {
	backend Backend
	opts    Options

	mu       sync.Mutex
	st       ColumnState
	snapshot *ColumnFields
	seq      uint64
}

// NewColumnForm returns an empty form.
func NewColumnForm(b Backend, opts Options) *ColumnForm {
	return &ColumnForm{
		backend: b,
		opts:    opts.withDefaults(),
		st:      ColumnState{Fields: blankColumnFields(), Audit: []AuditRecord{}},
	}
}

// Snapshot returns a copy of the current state.
func (f *ColumnForm) Snapshot() ColumnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *ColumnForm) snapshotLocked() ColumnState {
	st := f.st
	st.Fields = f.st.Fields.Clone()
	st.HasSnapshot = f.snapshot != nil
	return st
}

// LoadTables fills the table picker.
func (f *ColumnForm) LoadTables(ctx context.Context) (ColumnState, error) {
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

// SelectTable loads the column names of table and clears the column
// selection.
func (f *ColumnForm) SelectTable(ctx context.Context, table string) (ColumnState, error) {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.reset(table, "")
	f.st.Columns = nil
	if table == "" {
		st := f.snapshotLocked()
		f.mu.Unlock()
		return st, nil
	}
	f.st.Loading = true
	f.mu.Unlock()

	cols, err := f.backend.GetColumns(ctx, table)

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.seq {
		return f.snapshotLocked(), ErrStale
	}
	f.st.Loading = false
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			f.st.Error = columnsFailure
		}
		f.st.Columns = []string{}
		return f.snapshotLocked(), err
	}
	f.st.Columns = cols
	return f.snapshotLocked(), nil
}

// SelectColumn loads metadata and audit history for column of the selected
// table. A column without metadata yields a blank form with nothing to reset
// to.
func (f *ColumnForm) SelectColumn(ctx context.Context, column string) (ColumnState, error) {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	table := f.st.Table
	f.reset(table, column)
	if table == "" || column == "" {
		st := f.snapshotLocked()
		f.mu.Unlock()
		return st, nil
	}
	f.st.Loading = true
	f.mu.Unlock()

	var (
		raw     map[string]any
		metaErr error
		audit   []AuditRecord
	)
	var g errgroup.Group
	g.Go(func() error {
		raw, metaErr = f.backend.GetColumnMetadata(ctx, f.opts.Market, table, column)
		return nil
	})
	g.Go(func() error {
		audit = loadAudit(ctx, f.backend, f.opts, table, column)
		return nil
	})
	_ = g.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.seq {
		return f.snapshotLocked(), ErrStale
	}
	f.st.Loading = false
	f.st.Audit = audit

	switch {
	case metaErr == nil:
		var m ColumnMetadata
		if err := decodeMetadata(raw, &m); err != nil {
			f.st.Error = fmt.Sprintf("Failed to load metadata for %s.%s", table, column)
			return f.snapshotLocked(), err
		}
		fields := columnFieldsFrom(m)
		f.st.Fields = fields
		snap := fields.Clone()
		f.snapshot = &snap
		return f.snapshotLocked(), nil
	case errors.Is(metaErr, api.ErrNotFound):
		return f.snapshotLocked(), nil
	case errors.Is(metaErr, api.ErrUnauthorized):
		return f.snapshotLocked(), metaErr
	default:
		f.opts.Logger.Warn("column metadata failed", "table", table, "column", column, "error", metaErr)
		f.st.Error = fmt.Sprintf("Failed to load metadata for %s.%s", table, column)
		return f.snapshotLocked(), metaErr
	}
}

func (f *ColumnForm) reset(table, column string) {
	f.st.Table = table
	f.st.Column = column
	f.st.Fields = blankColumnFields()
	f.st.Audit = []AuditRecord{}
	f.st.Error = ""
	f.st.Notice = ""
	f.st.Loading = false
	f.snapshot = nil
}

// SetDescription replaces the description.
func (f *ColumnForm) SetDescription(text string) ColumnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Fields.Description = text
	return f.snapshotLocked()
}

// SetFlags replaces the filterable and aggregatable flags.
func (f *ColumnForm) SetFlags(filterable, aggregatable bool) ColumnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Fields.IsFilterable = filterable
	f.st.Fields.IsAggregatable = aggregatable
	return f.snapshotLocked()
}

// AddTag appends value to field. A duplicate leaves the collection unchanged
// and sets a notice naming the value.
func (f *ColumnForm) AddTag(field TagField, value string) (ColumnState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.st.Fields.tags(field)
	if !ok {
		return f.snapshotLocked(), fmt.Errorf("catalog: unknown tag field %q", field)
	}
	next, err := list.Add(value)
	if err != nil {
		f.st.Notice = noticeFor(err)
		return f.snapshotLocked(), err
	}
	*list = next
	f.st.Notice = ""
	return f.snapshotLocked(), nil
}

// RemoveTag drops the value at index i of field.
func (f *ColumnForm) RemoveTag(field TagField, i int) ColumnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if list, ok := f.st.Fields.tags(field); ok {
		*list = list.Remove(i)
	}
	return f.snapshotLocked()
}

// EditQueries applies fn to the sample query list.
func (f *ColumnForm) EditQueries(fn func(SampleQueries) (SampleQueries, error)) (ColumnState, error) {
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
func (f *ColumnForm) Reset() (ColumnState, error) {
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

// Save upserts the current values for the selected column.
func (f *ColumnForm) Save(ctx context.Context) (ColumnState, error) {
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
	case f.st.Table == "" || f.st.Column == "":
		f.st.Error = selectColumnMsg
		st := f.snapshotLocked()
		f.mu.Unlock()
		return st, ErrSelectionRequired
	}
	seq := f.seq
	table, column := f.st.Table, f.st.Column
	saved := f.st.Fields.Clone()
	saved.Queries = saved.Queries.Committed()
	f.st.Saving = true
	f.st.Error = ""
	f.st.Notice = ""
	f.mu.Unlock()

	msg, err := f.backend.UpdateColumns(ctx, api.UpdateColumnRequest{
		Market:     f.opts.Market,
		TableName:  table,
		ColumnName: column,
		Obj:        saved.Metadata(),
	})

	var audit []AuditRecord
	if err == nil {
		audit = loadAudit(ctx, f.backend, f.opts, table, column)
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
func (f *ColumnForm) ClearMessages() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Error = ""
	f.st.Notice = ""
}
