package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/cli/config"
	"github.com/leapstack-labs/querydesk/internal/recommend"
	"github.com/leapstack-labs/querydesk/internal/testutil"
)

// loadTestConfig points the CLI at backend with markdown output. extra is
// appended to the generated querydesk.yaml.
func loadTestConfig(t *testing.T, backend *testutil.Backend, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "querydesk.yaml")
	content := `api:
  base_url: ` + backend.URL + `
  token: secret
market: EU
projects: [alpha, beta]
output: markdown
catalog:
  timezone: UTC
` + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)
	return cfg
}

// run executes cmd with args and returns stdout and stderr.
func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func cheapEstimate() map[string]any {
	return map[string]any{"result": map[string]any{
		"estimated_cost_usd":  0.25,
		"bytes_processed":     1 << 30,
		"gigabytes_processed": 1,
		"terabytes_processed": 0.001,
	}}
}

func costlyEstimate() map[string]any {
	return map[string]any{"result": map[string]any{
		"estimated_cost_usd":  12.5,
		"bytes_processed":     1 << 30,
		"gigabytes_processed": 1,
	}}
}

func executeResponse() map[string]any {
	return map[string]any{
		"result": []map[string]any{
			{"region": "EU", "total": 1200},
			{"region": "US, East", "total": nil},
		},
		"textual_summary": []string{"EU leads"},
	}
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewGenerateCommand(), "generate <prompt>", nil},
		{NewEstimateCommand(), "estimate [sql|-]", nil},
		{NewExecuteCommand(), "execute [sql|-]", []string{"force"}},
		{NewOptimizeCommand(), "optimize <prompt>", []string{"results"}},
		{NewAskCommand(), "ask", nil},
		{NewRecommendationsCommand(), "recommendations", nil},
		{NewCatalogCommand(), "catalog", nil},
		{NewUICommand(), "ui", []string{"port", "no-browser", "watch"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestRecommendationsSubcommands(t *testing.T) {
	cmd := NewRecommendationsCommand()
	rule, _, err := cmd.Find([]string{"rule"})
	require.NoError(t, err)
	assert.Equal(t, "rule <id>", rule.Use)
	assert.NotNil(t, rule.Flags().Lookup("page"))
	assert.NotNil(t, rule.Flags().Lookup("page-size"))

	cat := NewCatalogCommand()
	var names []string
	for _, c := range cat.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"tables", "columns", "show", "audit"}, names)
}

func TestGenerate(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/generate_query", http.StatusOK, map[string]any{
		"sql_query_generated": "SELECT region, SUM(amount) FROM sales GROUP BY 1",
		"textual_summary":     []string{"Revenue per region"},
	})
	loadTestConfig(t, b, "")

	out, _, err := run(t, NewGenerateCommand(), "", "revenue", "by", "region")
	require.NoError(t, err)

	assert.Contains(t, out, "```sql\nSELECT region, SUM(amount) FROM sales GROUP BY 1\n```")
	assert.Contains(t, out, "## Insights")
	assert.Contains(t, out, "- Revenue per region")

	body := b.LastBody("/generate_query")
	assert.Equal(t, "revenue by region", body["query"])
	assert.Equal(t, "EU", body["market"])
}

func TestGenerate_Failures(t *testing.T) {
	t.Run("empty sql", func(t *testing.T) {
		b := testutil.NewBackend(t)
		b.JSON("/generate_query", http.StatusOK, map[string]any{"sql_query_generated": ""})
		loadTestConfig(t, b, "")

		_, _, err := run(t, NewGenerateCommand(), "", "nothing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no query generated")
	})

	t.Run("server message and suggestions", func(t *testing.T) {
		b := testutil.NewBackend(t)
		b.JSON("/generate_query", http.StatusBadRequest, map[string]any{
			"detail":      "Unknown table revenue",
			"suggestions": []string{"Try sales.orders"},
		})
		loadTestConfig(t, b, "")

		_, _, err := run(t, NewGenerateCommand(), "", "revenue")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unknown table revenue")
		assert.Contains(t, err.Error(), "- Try sales.orders")
	})

	t.Run("unauthorized", func(t *testing.T) {
		b := testutil.NewBackend(t)
		b.JSON("/generate_query", http.StatusUnauthorized, map[string]any{"detail": "expired"})
		loadTestConfig(t, b, "")

		_, _, err := run(t, NewGenerateCommand(), "", "revenue")
		require.Error(t, err)
		assert.True(t, errors.Is(err, api.ErrUnauthorized))
		assert.Contains(t, err.Error(), "check api.token")
	})
}

func TestEstimate_FromStdin(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/estimate", http.StatusOK, costlyEstimate())
	loadTestConfig(t, b, "")

	out, errOut, err := run(t, NewEstimateCommand(), "SELECT * FROM sales\n")
	require.NoError(t, err)

	assert.Contains(t, out, "## Cost Estimate")
	assert.Contains(t, out, "- **Estimated cost:** $12.50")
	assert.Contains(t, out, "- **Bytes processed:** 1,073,741,824")
	assert.Contains(t, out, "- **Estimated runtime:** 1.0s")
	assert.Contains(t, errOut, "Estimated cost $12.50 exceeds the $10.00 limit.")
	assert.Equal(t, "SELECT * FROM sales", b.LastBody("/estimate")["query"])
}

func TestEstimate_NoQuery(t *testing.T) {
	b := testutil.NewBackend(t)
	loadTestConfig(t, b, "")

	_, _, err := run(t, NewEstimateCommand(), "  \n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no query given")
	assert.Empty(t, b.Calls("/estimate"))
}

func TestExecute(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/estimate", http.StatusOK, cheapEstimate())
	b.JSON("/execute_query", http.StatusOK, executeResponse())
	loadTestConfig(t, b, "")

	out, _, err := run(t, NewExecuteCommand(), "", "SELECT region, total FROM sales")
	require.NoError(t, err)

	assert.Contains(t, out, "| region | total |")
	assert.Contains(t, out, "| EU")
	assert.Contains(t, out, "(2 rows)")
	assert.Contains(t, out, "- EU leads")
	assert.Len(t, b.Calls("/estimate"), 1)
	assert.Len(t, b.Calls("/execute_query"), 1)
}

func TestExecute_CSV(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/estimate", http.StatusOK, cheapEstimate())
	b.JSON("/execute_query", http.StatusOK, executeResponse())
	loadTestConfig(t, b, "")
	config.GetCurrentConfig().OutputFormat = "csv"

	out, _, err := run(t, NewExecuteCommand(), "", "SELECT 1")
	require.NoError(t, err)

	assert.Equal(t, "region,total\nEU,1200\n\"US, East\",\n", out)
}

func TestExecute_BlockedByCostLimit(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/estimate", http.StatusOK, costlyEstimate())
	b.JSON("/execute_query", http.StatusOK, executeResponse())
	loadTestConfig(t, b, "")

	_, _, err := run(t, NewExecuteCommand(), "", "SELECT * FROM huge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution blocked: estimated cost $12.50 exceeds the $10.00 limit")
	assert.Empty(t, b.Calls("/execute_query"))

	_, _, err = run(t, NewExecuteCommand(), "", "--force", "SELECT * FROM huge")
	require.NoError(t, err)
	assert.Len(t, b.Calls("/execute_query"), 1)
}

func TestExecute_Timeout(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/estimate", http.StatusOK, cheapEstimate())
	b.Handle("/execute_query", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
			testutil.WriteJSON(w, http.StatusOK, executeResponse())
		}
	})
	loadTestConfig(t, b, "limits:\n  execute_timeout: 50ms\n")

	_, _, err := run(t, NewExecuteCommand(), "", "SELECT sleep(10)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query execution timed out")
}

func TestOptimize(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/optimise_query", http.StatusOK, map[string]any{
		"sql_query_generated": "SELECT id FROM events WHERE day = CURRENT_DATE",
	})
	b.JSON("/estimate", http.StatusOK, costlyEstimate())
	loadTestConfig(t, b, "")

	out, errOut, err := run(t, NewOptimizeCommand(), "", "SELECT * FROM events")
	require.NoError(t, err)

	assert.Contains(t, out, "## Optimized Query")
	assert.Contains(t, out, "SELECT id FROM events WHERE day = CURRENT_DATE")
	assert.Contains(t, out, "- **Estimated cost:** $12.50")
	assert.NotContains(t, errOut, "limit", "optimize applies no cost limit")
	assert.Empty(t, b.Calls("/generate_insights_from_query"))
}

func TestOptimize_EstimateFailureOnlyWarns(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/optimise_query", http.StatusOK, map[string]any{"sql_query_generated": "SELECT 1"})
	b.JSON("/estimate", http.StatusInternalServerError, map[string]any{"detail": "dry run failed"})
	loadTestConfig(t, b, "")

	out, errOut, err := run(t, NewOptimizeCommand(), "", "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT 1")
	assert.Contains(t, errOut, "dry run failed")
}

func recommendationsBackend(t *testing.T) *testutil.Backend {
	t.Helper()
	b := testutil.NewBackend(t)
	b.JSON("/get-recommendations", http.StatusOK, map[string]any{
		"project_id": "p-42",
		"data": []map[string]any{{
			"rule_id":                       3,
			"rule_title":                    "Avoid SELECT *",
			"recommendation":                "List the columns you need",
			"optimization_category":         "Cost",
			"query_count":                   1200,
			"query_or_code_change_required": "YES",
			"schema_change_required":        false,
		}},
	})
	b.JSON("/get-total-schemas", http.StatusOK, map[string]any{"data": map[string]any{"total_schemas": 4}})
	b.JSON("/get-total-query-scanned", http.StatusOK, map[string]any{"data": map[string]any{"total_query_scanned": 15000}})
	return b
}

func TestRecommendations(t *testing.T) {
	b := recommendationsBackend(t)
	loadTestConfig(t, b, "")

	out, _, err := run(t, NewRecommendationsCommand(), "")
	require.NoError(t, err)

	assert.Contains(t, out, "# Recommendations")
	assert.Contains(t, out, "- **Project ID:** p-42")
	assert.Contains(t, out, "- **Schemas analyzed:** 4")
	assert.Contains(t, out, "- **Queries analyzed:** 15,000")
	assert.Contains(t, out, "Avoid SELECT *")
	assert.Contains(t, out, "1,200")

	body := b.LastBody("/get-recommendations")
	assert.Equal(t, "EU", body["market"])
	assert.Equal(t, "alpha", body["project_name"])
}

func TestRecommendations_CounterFailureWarns(t *testing.T) {
	b := recommendationsBackend(t)
	b.JSON("/get-total-schemas", http.StatusInternalServerError, map[string]any{"detail": "down"})
	loadTestConfig(t, b, "project: beta\n")

	out, errOut, err := run(t, NewRecommendationsCommand(), "")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Failed to load summary data")
	assert.NotContains(t, out, "Schemas analyzed")
	assert.Contains(t, out, "Avoid SELECT *")
	assert.Equal(t, "beta", b.LastBody("/get-recommendations")["project_name"])
}

func TestRecommendationsRule(t *testing.T) {
	b := recommendationsBackend(t)
	b.JSON("/rule", http.StatusOK, map[string]any{
		"data": []map[string]any{
			{"project_id": "p-42", "log_id": "L-9", "query": "SELECT * FROM orders"},
		},
		"total_count": 12,
	})
	loadTestConfig(t, b, "")

	out, _, err := run(t, NewRecommendationsCommand(), "", "rule", "3", "--page", "2", "--page-size", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "# Rule 3: Avoid SELECT *")
	assert.Contains(t, out, "- **Showing:** 6-10 of 12")
	assert.Contains(t, out, "| Sr. No | Project ID | Log ID | Statement ID | Query |")
	assert.Contains(t, out, "| 6 | p-42 | L-9 | 1 | SELECT * FROM orders |")

	calls := b.Calls("/rule")
	require.Len(t, calls, 2)
	last := calls[1].Body
	assert.Equal(t, "3", last["rule_id"])
	assert.EqualValues(t, 2, last["page"])
	assert.EqualValues(t, 5, last["page_size"])
}

func TestRecommendationsRule_AllRows(t *testing.T) {
	b := recommendationsBackend(t)
	b.JSON("/rule", http.StatusOK, map[string]any{"data": []map[string]any{}})
	loadTestConfig(t, b, "")

	out, _, err := run(t, NewRecommendationsCommand(), "", "rule", "3", "--page-size", "all")
	require.NoError(t, err)
	assert.Contains(t, out, "(0 rows)")

	calls := b.Calls("/rule")
	require.Len(t, calls, 1)
	assert.EqualValues(t, -1, calls[0].Body["page_size"])
	assert.EqualValues(t, 1, calls[0].Body["page"])
}

func TestRecommendationsRule_InvalidInput(t *testing.T) {
	b := recommendationsBackend(t)
	loadTestConfig(t, b, "")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad id", []string{"rule", "three"}, `invalid rule id "three"`},
		{"bad size", []string{"rule", "3", "--page-size", "0"}, "invalid page size"},
		{"bad page", []string{"rule", "3", "--page", "0"}, "pages start at 1"},
		{"unknown rule", []string{"rule", "99"}, "rule 99 is not in the report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, NewRecommendationsCommand(), "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, _, err := run(t, NewRecommendationsCommand(), "", "rule", "99")
	assert.ErrorIs(t, err, recommend.ErrUnknownRule)
	assert.Empty(t, b.Calls("/rule"))
}

func TestParsePageSize(t *testing.T) {
	n, err := parsePageSize("ALL")
	require.NoError(t, err)
	assert.Equal(t, -1, n)

	n, err = parsePageSize("25")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	_, err = parsePageSize("-3")
	assert.Error(t, err)
}

func TestCatalogTables(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/get-tables", http.StatusOK, map[string]any{"result": []string{"sales.orders", "sales.customers"}})
	loadTestConfig(t, b, "")
	config.GetCurrentConfig().OutputFormat = "json"

	out, _, err := run(t, NewCatalogCommand(), "", "tables")
	require.NoError(t, err)
	assert.JSONEq(t, `["sales.orders","sales.customers"]`, out)
}

func TestCatalogColumns(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/get-columns", http.StatusOK, map[string]any{"result": []string{"region", "amount"}})
	loadTestConfig(t, b, "")

	out, _, err := run(t, NewCatalogCommand(), "", "columns", "sales.orders")
	require.NoError(t, err)
	assert.Contains(t, out, "| region |")
	assert.Contains(t, out, "(2 rows)")
	assert.Equal(t, "sales.orders", b.LastBody("/get-columns")["table_name"])
}

func TestCatalogShowTable(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/get-table-metadata", http.StatusOK, map[string]any{"result": map[string]any{
		"description":    "One row per order",
		"tags":           []string{"core", "finance"},
		"filter_columns": []string{"region"},
		"sample_usage":   []map[string]any{{"sql": "SELECT COUNT(*) FROM sales.orders", "description": "Order count"}},
	}})
	b.JSON("/get-columns", http.StatusOK, map[string]any{"result": []string{"region", "amount"}})
	b.JSON("/get-audit-table", http.StatusOK, map[string]any{"result": []any{}})
	loadTestConfig(t, b, "")

	out, _, err := run(t, NewCatalogCommand(), "", "show", "sales.orders")
	require.NoError(t, err)

	assert.Contains(t, out, "# sales.orders")
	assert.Contains(t, out, "- **Description:** One row per order")
	assert.Contains(t, out, "- **Tags:** core, finance")
	assert.Contains(t, out, "- **Filter Columns:** region")
	assert.Contains(t, out, "- **Sort Columns:** -")
	assert.Contains(t, out, "## Sample Queries")
	assert.Contains(t, out, "SELECT COUNT(*) FROM sales.orders")
	assert.Equal(t, "ALL", b.LastBody("/get-table-metadata")["market"])
}

func TestCatalogShowColumn_NoMetadata(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/get-columns", http.StatusOK, map[string]any{"result": []string{"region"}})
	b.JSON("/get-audit-table", http.StatusOK, map[string]any{"result": []any{}})
	loadTestConfig(t, b, "")

	out, _, err := run(t, NewCatalogCommand(), "", "show", "sales.orders", "region")
	require.NoError(t, err)
	assert.Contains(t, out, "# sales.orders.region")
	assert.Contains(t, out, "No metadata stored for this column.")
	assert.Len(t, b.Calls("/get-column-metadata"), 1)
}

func TestCatalogAudit(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/get-audit-table", http.StatusOK, map[string]any{"result": []map[string]any{
		{"user_id": "ana", "event_time": "2024-03-01T10:00:00Z"},
		{"user_id": "ben", "event_time": "yesterday"},
	}})
	loadTestConfig(t, b, "")

	out, _, err := run(t, NewCatalogCommand(), "", "audit", "sales.orders", "region")
	require.NoError(t, err)
	assert.Contains(t, out, "| ana | 2024-03-01 10:00:00 |")
	assert.Contains(t, out, "| ben | yesterday |")

	body := b.LastBody("/get-audit-table")
	assert.Equal(t, "sales.orders", body["table_name"])
	assert.Equal(t, "region", body["column_name"])
}

func newTestShell(t *testing.T, b *testutil.Backend, extra string) (*askShell, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	loadTestConfig(t, b, extra)
	cmd := NewAskCommand()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetContext(context.Background())
	return newAskShell(NewCommandContext(cmd)), out, errOut
}

func TestAskShell_Workflow(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/generate_query", http.StatusOK, map[string]any{"sql_query_generated": "SELECT region, total FROM sales"})
	b.JSON("/estimate", http.StatusOK, cheapEstimate())
	b.JSON("/execute_query", http.StatusOK, executeResponse())
	sh, out, _ := newTestShell(t, b, "")
	ctx := context.Background()

	assert.False(t, sh.handle(ctx, "revenue by region"))
	assert.Contains(t, out.String(), "SELECT region, total FROM sales")
	assert.Contains(t, out.String(), "Query generated successfully!")

	assert.False(t, sh.handle(ctx, ".sql SELECT region, total FROM sales LIMIT 10"))
	assert.False(t, sh.handle(ctx, ".estimate"))
	assert.Contains(t, out.String(), "- **Processed (bytes):** 1073741824")
	assert.Equal(t, "SELECT region, total FROM sales LIMIT 10", b.LastBody("/estimate")["query"])

	assert.False(t, sh.handle(ctx, ".unit gb"))
	assert.Contains(t, out.String(), "- **Processed (gb):** 1")

	assert.False(t, sh.handle(ctx, ".run"))
	assert.Contains(t, out.String(), "| EU")
	assert.Len(t, b.Calls("/estimate"), 1, "an existing estimate is reused")

	path := filepath.Join(t.TempDir(), "out.csv")
	assert.False(t, sh.handle(ctx, ".csv "+path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "region,total\nEU,1200\n\"US, East\",\n", string(data))

	assert.True(t, sh.handle(ctx, ".quit"))
}

func TestAskShell_RunEstimatesAndBlocks(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/generate_query", http.StatusOK, map[string]any{"sql_query_generated": "SELECT * FROM huge"})
	b.JSON("/estimate", http.StatusOK, costlyEstimate())
	b.JSON("/execute_query", http.StatusOK, executeResponse())
	sh, _, errOut := newTestShell(t, b, "")
	ctx := context.Background()

	sh.handle(ctx, "everything")
	sh.handle(ctx, ".run")

	assert.Len(t, b.Calls("/estimate"), 1)
	assert.Empty(t, b.Calls("/execute_query"))
	assert.Contains(t, errOut.String(), "Execution blocked: Estimated cost $12.50 exceeds the $10.00 limit.")
}

func TestAskShell_Errors(t *testing.T) {
	b := testutil.NewBackend(t)
	b.JSON("/generate_query", http.StatusBadRequest, map[string]any{
		"textual_summary": []string{"Could not understand the question."},
		"suggestions":     []string{"Name a table"},
	})
	sh, out, errOut := newTestShell(t, b, "")
	ctx := context.Background()

	sh.handle(ctx, "???")
	assert.Contains(t, errOut.String(), "Could not understand the question.")
	assert.Contains(t, out.String(), "  - Name a table")
	assert.Nil(t, sh.session.Snapshot().Failure, "failures are dismissed after printing")

	sh.handle(ctx, ".estimate")
	assert.Contains(t, errOut.String(), "Nothing to estimate.")

	sh.handle(ctx, ".csv")
	assert.Contains(t, errOut.String(), "No results to export.")

	sh.handle(ctx, ".bogus")
	assert.Contains(t, errOut.String(), "Unknown command: .bogus")
}
