package recommend

import (
	"strconv"
	"sync"

	"github.com/leapstack-labs/querydesk/internal/api"
)

// ColumnKind selects how a drill-down cell is produced.
type ColumnKind int

const (
	// KindField reads the first present key from the row.
	KindField ColumnKind = iota
	// KindCounter numbers rows across pages starting at 1.
	KindCounter
	// KindConst prints Const for every row.
	KindConst
	// KindCode reads a field and renders it as a code block.
	KindCode
)

// Column describes one drill-down column.
type Column struct {
	Header string
	Keys   []string
	Kind   ColumnKind
	Const  string
	Center bool
}

// Cell is one rendered drill-down value.
type Cell struct {
	Text   string
	Code   bool
	Center bool
}

// Layout is the column set used for a rule's matching rows.
type Layout struct {
	Name    string
	Columns []Column
}

// Headers returns the column headers in order.
func (l Layout) Headers() []string {
	out := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		out[i] = c.Header
	}
	return out
}

// Cells renders row i. offset is the absolute index of the first row on the
// page and feeds counter columns.
func (l Layout) Cells(rows api.ResultSet, i, offset int) []Cell {
	out := make([]Cell, len(l.Columns))
	for j, c := range l.Columns {
		cell := Cell{Center: c.Center}
		switch c.Kind {
		case KindCounter:
			cell.Text = strconv.Itoa(offset + i + 1)
		case KindConst:
			cell.Text = c.Const
		case KindCode:
			cell.Text = firstField(rows, i, c.Keys)
			cell.Code = true
		default:
			cell.Text = firstField(rows, i, c.Keys)
		}
		out[j] = cell
	}
	return out
}

func firstField(rows api.ResultSet, i int, keys []string) string {
	for _, k := range keys {
		if v := rows.Field(i, k); v != "" {
			return v
		}
	}
	return ""
}

// SchemaDiscoveryRule is the rule whose matches are tables, not queries.
const SchemaDiscoveryRule = 10

// SchemaDiscoveryLayout lists tables and their typed columns.
var SchemaDiscoveryLayout = Layout{
	Name: "schema-discovery",
	Columns: []Column{
		{Header: "Project Name", Keys: []string{"project_name"}},
		{Header: "Schema Name", Keys: []string{"schema_name"}},
		{Header: "Table Name", Keys: []string{"table_name"}},
		{Header: "Columns with Data Type", Keys: []string{"columns_with_data_type"}},
	},
}

// QueryLogLayout lists the logged statements a rule matched.
var QueryLogLayout = Layout{
	Name: "query-log",
	Columns: []Column{
		{Header: "Sr. No", Kind: KindCounter, Center: true},
		{Header: "Project ID", Keys: []string{"project_id", "project_name"}},
		{Header: "Log ID", Keys: []string{"log_id"}},
		{Header: "Statement ID", Kind: KindConst, Const: "1", Center: true},
		{Header: "Query", Keys: []string{"query"}, Kind: KindCode},
	},
}

// Registry maps rule ids to drill-down layouts.
type Registry struct {
	mu       sync.RWMutex
	layouts  map[int]Layout
	fallback Layout
}

// NewRegistry returns a registry that uses fallback for unregistered rules.
func NewRegistry(fallback Layout) *Registry {
	return &Registry{layouts: map[int]Layout{}, fallback: fallback}
}

// DefaultRegistry knows the schema discovery rule and uses the query log
// layout for everything else.
func DefaultRegistry() *Registry {
	r := NewRegistry(QueryLogLayout)
	r.Register(SchemaDiscoveryRule, SchemaDiscoveryLayout)
	return r
}

// Register sets the layout for ruleID.
func (r *Registry) Register(ruleID int, l Layout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts[ruleID] = l
}

// For returns the layout for ruleID.
func (r *Registry) For(ruleID int) Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.layouts[ruleID]; ok {
		return l
	}
	return r.fallback
}
