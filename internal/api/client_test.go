package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qtestutil "github.com/leapstack-labs/querydesk/internal/testutil"
)

func newTestClient(t *testing.T, b *qtestutil.Backend) *Client {
	t.Helper()
	return New(Config{
		BaseURL: b.URL + "/",
		Logger:  qtestutil.NewTestLogger(t),
	})
}

func TestDo_DefaultHeaders(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/estimate", http.StatusOK, map[string]any{"result": map[string]any{"estimated_cost_usd": 1.5}})

	c := New(Config{BaseURL: b.URL, Token: "secret"})
	_, err := c.Estimate(context.Background(), "SELECT 1", "US")
	require.NoError(t, err)

	calls := b.Calls("/estimate")
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, "application/json", calls[0].Header.Get("Content-Type"))
	assert.Equal(t, "Bearer secret", calls[0].Header.Get("Authorization"))
	assert.NotEmpty(t, calls[0].Header.Get("X-Request-ID"))
	assert.Equal(t, map[string]any{"query": "SELECT 1", "market": "US"}, calls[0].Body)
}

func TestDo_CallHeadersOverrideDefaults(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/get-tables", http.StatusOK, map[string]any{"result": []string{}})

	c := newTestClient(t, b)
	err := c.Do(context.Background(), http.MethodGet, "/get-tables", nil, nil,
		WithHeader("Content-Type", "application/vnd.api+json"),
		WithHeader("X-Trace", "abc"),
	)
	require.NoError(t, err)

	h := b.Calls("/get-tables")[0].Header
	assert.Equal(t, []string{"application/vnd.api+json"}, h.Values("Content-Type"))
	assert.Equal(t, "abc", h.Get("X-Trace"))
}

func TestDo_ForwardedHeaders(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/get-tables", http.StatusOK, map[string]any{"result": []string{"orders"}})

	in, _ := http.NewRequest(http.MethodGet, "/", nil)
	in.Header.Set("Cookie", "auth=1")
	in.Header.Set("X-Ignored", "nope")

	c := newTestClient(t, b)
	err := c.Do(context.Background(), http.MethodGet, "/get-tables", nil, nil, WithForwardedHeaders(in, "Cookie"))
	require.NoError(t, err)

	h := b.Calls("/get-tables")[0].Header
	assert.Equal(t, "auth=1", h.Get("Cookie"))
	assert.Empty(t, h.Get("X-Ignored"))
}

func TestDo_Unauthorized(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/get-tables", http.StatusUnauthorized, map[string]any{"detail": "expired"})

	c := newTestClient(t, b)

	calls := 0
	ctx := WithUnauthorizedHandler(context.Background(), func() { calls++ })

	_, err := c.GetTables(ctx)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = c.GetTables(ctx)
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, 1, calls, "hook runs once per context")
}

func TestDo_UnauthorizedWithoutHook(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/get-tables", http.StatusUnauthorized, nil)

	_, err := newTestClient(t, b).GetTables(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDo_NotFound(t *testing.T) {
	b := qtestutil.NewBackend(t)

	_, err := newTestClient(t, b).GetTableMetadata(context.Background(), "ALL", "orders")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestDo_APIErrorFields(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/generate_query", http.StatusUnprocessableEntity, map[string]any{
		"textual_summary": []string{"Could not map", "the prompt."},
		"suggestions":     []string{"Name a table"},
		"detail":          []map[string]any{{"loc": []string{"body", "query"}, "msg": "required"}},
	})

	_, err := newTestClient(t, b).GenerateQuery(context.Background(), "???", "US")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Could not map the prompt.", apiErr.Summary())
	assert.Equal(t, []string{"Name a table"}, Suggestions(err))
	assert.Contains(t, apiErr.Detail, `"msg":"required"`)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestDo_NetworkError(t *testing.T) {
	b := qtestutil.NewBackend(t)
	url := b.URL
	b.Close()

	logger, logs := qtestutil.NewRecordingLogger(t)
	c := New(Config{BaseURL: url, Logger: logger})
	_, err := c.GetTables(context.Background())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "Network error: Unable to connect to server", err.Error())
	assert.Equal(t, "Network error: Unable to connect to server", Message(err, "API request failed"))
	assert.True(t, logs.Contains("level=WARN", "api request failed"), "transport failures are logged at warn")
}

func TestDo_ContextDeadline(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.Handle("/execute_query", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, b).ExecuteQuery(ctx, "SELECT 1", "US")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var netErr *NetworkError
	assert.False(t, errors.As(err, &netErr))
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		want     string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name:     "summary wins",
			err:      &APIError{StatusCode: 500, TextualSummary: []string{"a", "b"}, Detail: "d", Message: "m"},
			fallback: "f",
			want:     "a b",
		},
		{
			name:     "detail before message",
			err:      &APIError{StatusCode: 500, Detail: "d", Message: "m"},
			fallback: "f",
			want:     "d",
		},
		{
			name:     "message",
			err:      &APIError{StatusCode: 500, Message: "m"},
			fallback: "f",
			want:     "m",
		},
		{
			name:     "fallback",
			err:      &APIError{StatusCode: 502},
			fallback: "API request failed",
			want:     "API request failed",
		},
		{
			name: "status coded",
			err:  &APIError{StatusCode: 503},
			want: "HTTP error! status: 503",
		},
		{
			name:     "plain error uses fallback",
			err:      errors.New("boom"),
			fallback: "f",
			want:     "f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err, tt.fallback))
		})
	}
}

func TestParseAPIError_NonJSON(t *testing.T) {
	err := parseAPIError(http.StatusBadGateway, []byte("<html>bad gateway</html>"))
	assert.Equal(t, "<html>bad gateway</html>", err.Body)
	assert.Empty(t, err.Detail)
	assert.Equal(t, "HTTP error! status: 502", Message(err, ""))
}

func TestExecuteQuery_PreservesColumnOrder(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.Handle("/execute_query", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"result": [
				{"zeta": 1, "alpha": "x", "mid": null},
				{"zeta": 2, "alpha": "y", "mid": true, "extra": 1.25}
			],
			"textual_summary": ["Two rows."]
		}`))
	})

	res, err := newTestClient(t, b).ExecuteQuery(context.Background(), "SELECT 1", "US")
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid", "extra"}, res.Result.Columns)
	assert.Equal(t, []string{"1", "x", "NULL", "NULL"}, res.Result.Cells(0))
	assert.Equal(t, []string{"2", "y", "true", "1.25"}, res.Result.Cells(1))
	assert.Equal(t, []string{"Two rows."}, res.TextualSummary)
}

func TestResultSet_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		rows    int
		columns []string
		wantErr bool
	}{
		{name: "null", in: `null`, rows: 0},
		{name: "empty array", in: `[]`, rows: 0},
		{name: "single object", in: `{"b":1,"a":2}`, rows: 1, columns: []string{"b", "a"}},
		{name: "nested value", in: `[{"k":{"x":[1,2]}}]`, rows: 1, columns: []string{"k"}},
		{name: "scalar array", in: `[1,2]`, wantErr: true},
		{name: "string", in: `"nope"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rs ResultSet
			err := json.Unmarshal([]byte(tt.in), &rs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, rs.Len())
			assert.Equal(t, tt.columns, rs.Columns)
		})
	}
}

func TestResultSet_MarshalKeepsOrder(t *testing.T) {
	var rs ResultSet
	require.NoError(t, json.Unmarshal([]byte(`[{"z":1,"a":"b"}]`), &rs))

	out, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.Equal(t, `[{"z":1,"a":"b"}]`, string(out))
}

func TestRuleDetails(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/rule", http.StatusOK, map[string]any{
		"data":        []map[string]any{{"log_id": "L1", "query": "SELECT 1"}},
		"total_count": 12,
	})

	page, err := newTestClient(t, b).RuleDetails(context.Background(), RuleRequest{
		RuleID: RuleID(3), Market: "US", ProjectName: "proj", Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, page.TotalCount)
	assert.Equal(t, 1, page.Rows.Len())

	body := b.LastBody("/rule")
	assert.Equal(t, "3", body["rule_id"])
	assert.EqualValues(t, 1, body["page"])
	assert.EqualValues(t, 10, body["page_size"])
}

func TestRuleDetails_SingleObjectWithoutTotal(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/rule", http.StatusOK, map[string]any{
		"data": map[string]any{"project_name": "p", "schema_name": "s"},
	})

	page, err := newTestClient(t, b).RuleDetails(context.Background(), RuleRequest{RuleID: "10"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, []string{"project_name", "schema_name"}, page.Rows.Columns)
}

func TestGetRecommendations_LooseTypes(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.Handle("/get-recommendations", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"project_id": 4411,
			"data": [{"rule_id": "10", "query_count": "7", "schema_change_required": "YES",
			          "reference_query_id": 99, "query_or_code_change_required": "NO"}]
		}`))
	})

	res, err := newTestClient(t, b).GetRecommendations(context.Background(), "US", "proj")
	require.NoError(t, err)
	assert.Equal(t, "4411", res.ProjectID.String())
	require.Len(t, res.Data, 1)
	assert.Equal(t, FlexInt(10), res.Data[0].RuleID)
	assert.Equal(t, FlexInt(7), res.Data[0].QueryCount)
	assert.True(t, bool(res.Data[0].SchemaChangeRequired))
	assert.Equal(t, "99", res.Data[0].ReferenceQueryID.String())
}

func TestCounters(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/get-total-schemas", http.StatusOK, map[string]any{"data": map[string]any{"total_schemas": 42}})
	b.JSON("/get-total-query-scanned", http.StatusOK, map[string]any{"data": map[string]any{"total_query_scanned": 1200}})

	c := newTestClient(t, b)
	schemas, err := c.TotalSchemas(context.Background(), "US")
	require.NoError(t, err)
	queries, err := c.TotalQueryScanned(context.Background(), "US")
	require.NoError(t, err)

	assert.Equal(t, 42, schemas)
	assert.Equal(t, 1200, queries)
}

func TestGenerateInsights_UsesInsightsURL(t *testing.T) {
	main := qtestutil.NewBackend(t)
	insights := qtestutil.NewBackend(t)
	insights.JSON("/generate_insights_from_query", http.StatusOK, map[string]any{
		"result":          []map[string]any{{"n": 1}},
		"textual_summary": []string{"ok"},
	})

	c := New(Config{BaseURL: main.URL, InsightsURL: insights.URL, LLMType: "gemini"})
	res, err := c.GenerateInsights(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Result.Len())
	assert.Empty(t, main.Calls("/generate_insights_from_query"))
	assert.Equal(t, "gemini", insights.LastBody("/generate_insights_from_query")["llm_type"])
}

func TestMetrics(t *testing.T) {
	b := qtestutil.NewBackend(t)
	b.JSON("/get-tables", http.StatusOK, map[string]any{"result": []string{}})

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := New(Config{BaseURL: b.URL, Metrics: m})

	_, err := c.GetTables(context.Background())
	require.NoError(t, err)
	_, err = c.GetTableMetadata(context.Background(), "ALL", "missing")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/get-tables", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/get-table-metadata", "4xx")))
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{BaseURL: "http://backend:8000/"})
	assert.Equal(t, "http://backend:8000", c.BaseURL())
	assert.Equal(t, DefaultLLMType, c.LLMType())
	assert.Equal(t, "http://backend:8000", c.insightsURL)
}
