package recommend

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/paging"
	"github.com/leapstack-labs/querydesk/internal/testutil"
)

var app = appctx.Context{Market: "US", ProjectName: "alpha"}

func setup(t *testing.T) (*api.Client, *testutil.Backend) {
	t.Helper()
	b := testutil.NewBackend(t)
	return api.New(api.Config{BaseURL: b.URL, Logger: testutil.NewTestLogger(t)}), b
}

func recommendationsBody() map[string]any {
	return map[string]any{
		"project_id": "p-77",
		"data": []map[string]any{
			{
				"rule_id": 3, "rule_title": "Avoid SELECT *", "recommendation": "Project columns",
				"optimization_category": "Cost-Optimization", "query_count": 12,
				"query_or_code_change_required": "YES", "schema_change_required": false,
			},
			{
				"rule_id": 10, "rule_title": "Unused tables", "recommendation": "Drop",
				"query_count": 4, "query_or_code_change_required": "NO", "schema_change_required": true,
				"sample_query": "SELECT 1", "recommended_query": "SELECT 2",
			},
			{"rule_id": 3, "rule_title": "duplicate", "query_or_code_change_required": "MAYBE"},
		},
	}
}

func TestLoadReport(t *testing.T) {
	client, b := setup(t)
	b.JSON("/get-recommendations", http.StatusOK, recommendationsBody())
	b.JSON("/get-total-schemas", http.StatusOK, map[string]any{"data": map[string]any{"total_schemas": 8}})
	b.JSON("/get-total-query-scanned", http.StatusOK, map[string]any{"data": map[string]any{"total_query_scanned": 950}})

	report, err := LoadReport(context.Background(), client, app)
	require.NoError(t, err)

	assert.Equal(t, "p-77", report.ProjectID)
	assert.Equal(t, 8, report.SchemasAnalyzed)
	assert.Equal(t, 950, report.QueriesAnalyzed)
	assert.Empty(t, report.Warning)
	require.Len(t, report.Items, 2, "rule ids are unique")

	first := report.Items[0]
	assert.Equal(t, "Avoid SELECT *", first.RuleTitle)
	assert.Equal(t, "Yes", first.QueryChange)
	assert.Equal(t, "No", first.SchemaChange)
	assert.Equal(t, "NA", first.SampleQuery)
	assert.Equal(t, "NA", first.RecommendedQuery)
	assert.True(t, first.CanApply())

	second := report.Items[1]
	assert.Equal(t, "No", second.QueryChange)
	assert.Equal(t, "Yes", second.SchemaChange)
	assert.Equal(t, "SELECT 2", second.RecommendedQuery)
	assert.False(t, second.CanApply())

	assert.Equal(t, map[string]any{"market": "US", "project_name": "alpha"}, b.LastBody("/get-recommendations"))
}

func TestFromWire_RawQueryChange(t *testing.T) {
	r := FromWire(api.RecommendationItem{QueryChangeRequired: "MAYBE"})
	assert.Equal(t, "MAYBE", r.QueryChange)
}

func TestLoadReport_CounterFailureIsOneWarning(t *testing.T) {
	client, b := setup(t)
	b.JSON("/get-recommendations", http.StatusOK, recommendationsBody())
	b.JSON("/get-total-schemas", http.StatusOK, map[string]any{"data": map[string]any{"total_schemas": 8}})
	b.JSON("/get-total-query-scanned", http.StatusInternalServerError, nil)

	report, err := LoadReport(context.Background(), client, app)
	require.NoError(t, err)
	assert.Equal(t, "Failed to load summary data", report.Warning)
	assert.Len(t, report.Items, 2)
}

func TestLoadReport_RecommendationFailure(t *testing.T) {
	client, b := setup(t)
	b.JSON("/get-recommendations", http.StatusInternalServerError, map[string]any{"detail": "db down"})
	b.JSON("/get-total-schemas", http.StatusOK, map[string]any{"data": map[string]any{"total_schemas": 8}})
	b.JSON("/get-total-query-scanned", http.StatusOK, map[string]any{"data": map[string]any{"total_query_scanned": 1}})

	_, err := LoadReport(context.Background(), client, app)
	require.Error(t, err)
	assert.Equal(t, "Failed to load recommendations. Please try again later.", FailureMessage(err))
}

func TestLoadReport_Unauthorized(t *testing.T) {
	client, b := setup(t)
	b.JSON("/get-recommendations", http.StatusOK, recommendationsBody())
	b.JSON("/get-total-schemas", http.StatusUnauthorized, nil)
	b.JSON("/get-total-query-scanned", http.StatusOK, map[string]any{"data": map[string]any{"total_query_scanned": 1}})

	_, err := LoadReport(context.Background(), client, app)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"Project Name", "Schema Name", "Table Name", "Columns with Data Type"}, r.For(10).Headers())
	assert.Equal(t, []string{"Sr. No", "Project ID", "Log ID", "Statement ID", "Query"}, r.For(3).Headers())

	r.Register(42, Layout{Name: "custom", Columns: []Column{{Header: "X", Keys: []string{"x"}}}})
	assert.Equal(t, "custom", r.For(42).Name)
}

func TestDrillDown_LayoutByRule(t *testing.T) {
	client, b := setup(t)
	b.Handle("/rule", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"project_name": "proj-x", "schema_name": "s", "table_name": "t",
					"columns_with_data_type": "id INT", "log_id": "L9", "query": "SELECT 9"},
			},
			"total_count": 1,
		})
	})

	d := NewDrillDown(client, nil)

	st, err := d.Open(context.Background(), app, Target{RuleID: 10}, paging.DefaultSize)
	require.NoError(t, err)
	require.Len(t, st.Layout.Columns, 4)
	texts := cellTexts(st.Cells(0))
	assert.Equal(t, []string{"proj-x", "s", "t", "id INT"}, texts)
	assert.Equal(t, "proj-x", st.ProjectName)

	st, err = d.Open(context.Background(), app, Target{RuleID: 3}, paging.DefaultSize)
	require.NoError(t, err)
	cells := st.Cells(0)
	assert.Equal(t, []string{"1", "proj-x", "L9", "1", "SELECT 9"}, cellTexts(cells))
	assert.True(t, cells[4].Code)
	assert.Equal(t, "3", b.LastBody("/rule")["rule_id"])
}

func TestDrillDown_Paging(t *testing.T) {
	client, b := setup(t)
	b.Handle("/rule", func(w http.ResponseWriter, r *http.Request) {
		var rows []map[string]any
		for i := 0; i < 10; i++ {
			rows = append(rows, map[string]any{"log_id": "L" + strconv.Itoa(i), "query": "q"})
		}
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"data": rows, "total_count": 25})
	})

	d := NewDrillDown(client, nil)
	st, err := d.Open(context.Background(), app, Target{RuleID: 5, Title: "t"}, paging.DefaultSize)
	require.NoError(t, err)
	assert.Equal(t, "1-10 of 25", st.Label())
	assert.True(t, st.Pager.CanNext(st.Total))
	assert.EqualValues(t, 1, b.LastBody("/rule")["page"])
	assert.EqualValues(t, 10, b.LastBody("/rule")["page_size"])

	st, err = d.SetPage(context.Background(), app, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, b.LastBody("/rule")["page"])
	assert.Equal(t, "11", st.Cells(0)[0].Text, "counter continues across pages")

	st, err = d.SetPageSize(context.Background(), app, paging.All)
	require.NoError(t, err)
	body := b.LastBody("/rule")
	assert.EqualValues(t, 1, body["page"])
	assert.EqualValues(t, -1, body["page_size"])
	assert.False(t, st.Pager.CanNext(st.Total))
	assert.False(t, st.Pager.CanPrev())
	assert.Equal(t, "All 25", st.Label())
	assert.Equal(t, 10, st.Rows.Len(), "server rows are not re-sliced")
}

func TestDrillDown_ClosedAndFailure(t *testing.T) {
	client, b := setup(t)
	d := NewDrillDown(client, nil)

	_, err := d.SetPage(context.Background(), app, 1)
	assert.ErrorIs(t, err, ErrClosed)

	b.JSON("/rule", http.StatusInternalServerError, nil)
	st, err := d.Open(context.Background(), app, Target{RuleID: 1}, 5)
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch rule details.", st.Error)
	assert.False(t, st.Loading)

	d.Close()
	assert.False(t, d.Snapshot().Open)
}

func cellTexts(cells []Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.Text
	}
	return out
}

// =============================================================================
// Board
// =============================================================================

func TestBoard_RefreshAndApply(t *testing.T) {
	client, b := setup(t)
	b.JSON("/get-recommendations", http.StatusOK, recommendationsBody())
	b.JSON("/get-total-schemas", http.StatusOK, map[string]any{"data": map[string]any{"total_schemas": 8}})
	b.JSON("/get-total-query-scanned", http.StatusOK, map[string]any{"data": map[string]any{"total_query_scanned": 950}})

	board := NewBoard(client, 1)
	st, err := board.Refresh(context.Background(), app)
	require.NoError(t, err)
	assert.True(t, st.Current(app))
	assert.False(t, st.Current(appctx.Context{Market: "US", ProjectName: "beta"}))
	require.Len(t, st.Page(), 1)
	assert.Equal(t, 3, st.Page()[0].RuleID)

	st = board.SetPage(1)
	assert.Equal(t, 10, st.Page()[0].RuleID)
	assert.Equal(t, 1, st.Offset())

	_, err = board.OpenApply(10)
	assert.ErrorIs(t, err, ErrUnknownRule, "rules without a query change cannot be applied")

	st, err = board.OpenApply(3)
	require.NoError(t, err)
	require.NotNil(t, st.Applying)
	assert.Equal(t, "Avoid SELECT *", st.Applying.RuleTitle)

	st = board.CloseApply()
	assert.Nil(t, st.Applying)

	_, err = board.OpenApply(3)
	require.NoError(t, err)
	st, err = board.OpenApply(10)
	assert.ErrorIs(t, err, ErrUnknownRule)
	assert.Nil(t, st.Applying, "a refused rule closes the open dialog")
	st, err = board.OpenApply(42)
	assert.ErrorIs(t, err, ErrUnknownRule)
	assert.Nil(t, st.Applying)
}

func TestBoard_RefreshFailure(t *testing.T) {
	client, b := setup(t)
	b.JSON("/get-recommendations", http.StatusInternalServerError, nil)

	board := NewBoard(client, 10)
	st, err := board.Refresh(context.Background(), app)
	require.Error(t, err)
	assert.False(t, st.Loaded)
	assert.False(t, st.Loading)
	assert.Equal(t, "Failed to load recommendations. Please try again later.", st.Error)
}
