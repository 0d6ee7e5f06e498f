package recommendations

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/querydesk/internal/recommend"
	"github.com/leapstack-labs/querydesk/internal/ui/features"
)

// =============================================================================
// Test Setup Helpers
// =============================================================================

func setupTestHandlers(t *testing.T) (*Handlers, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t)
	return NewHandlers(fixture.Env), fixture
}

func stubReport(f *features.TestFixture) {
	f.Backend.JSON("/get-recommendations", http.StatusOK, map[string]any{
		"project_id": "p-77",
		"data": []map[string]any{
			{
				"rule_id": 3, "rule_title": "Avoid SELECT *", "recommendation": "Project columns",
				"optimization_category": "Cost-Optimization", "query_count": 1200,
				"query_or_code_change_required": "YES", "schema_change_required": false,
				"sample_query": "SELECT * FROM t", "recommended_query": "SELECT a FROM t",
			},
			{
				"rule_id": 10, "rule_title": "Unused tables", "recommendation": "Drop them",
				"query_count": 4, "query_or_code_change_required": "NO", "schema_change_required": true,
			},
		},
	})
	f.Backend.JSON("/get-total-schemas", http.StatusOK, map[string]any{"data": map[string]any{"total_schemas": 8}})
	f.Backend.JSON("/get-total-query-scanned", http.StatusOK, map[string]any{"data": map[string]any{"total_query_scanned": 12500}})
}

func post(t *testing.T, f *features.TestFixture, h http.HandlerFunc, r *http.Request) string {
	t.Helper()
	rec := f.Do(h, r)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func action(t *testing.T, target string, params ...string) *http.Request {
	t.Helper()
	return features.RequestWithPathParam(features.SignalsRequest(t, http.MethodPost, target, nil), params...)
}

func loadPage(t *testing.T, h *Handlers, f *features.TestFixture) string {
	t.Helper()
	rec := f.Do(h.RecommendationsPage, httptest.NewRequest(http.MethodGet, "/recommendations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

// =============================================================================
// Page
// =============================================================================

func TestRecommendationsPage(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)

	body := loadPage(t, h, f)

	for _, want := range []string{
		"<title>Recommendations - QueryDesk</title>",
		`id="recommendation-board"`,
		"12,500",
		"1,200",
		"Avoid SELECT *",
		"View Queries",
		"Project ID: p-77",
		`href="/query-details/10/Drop%20them/Unused%20tables"`,
	} {
		assert.Contains(t, body, want, "response should contain %q", want)
	}
	assert.Equal(t, 1, strings.Count(body, ">Apply</button>"), "only rules needing a query change can be applied")
	assert.Equal(t, "p-77", f.Env.Sessions.Load(sessionRequest(f)).ProjectID)
}

func TestRecommendationsPage_LoadsOncePerProject(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)

	loadPage(t, h, f)
	loadPage(t, h, f)

	assert.Equal(t, 1, len(f.Backend.Calls("/get-recommendations")))
}

func TestRecommendationsPage_CounterWarning(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)
	f.Backend.JSON("/get-total-schemas", http.StatusInternalServerError, nil)

	body := loadPage(t, h, f)

	assert.Contains(t, body, "Failed to load summary data")
	assert.Contains(t, body, "Avoid SELECT *")
}

func TestRecommendationsPage_UnauthorizedRedirects(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)
	f.Backend.JSON("/get-recommendations", http.StatusUnauthorized, nil)

	rec := f.Do(h.RecommendationsPage, httptest.NewRequest(http.MethodGet, "/recommendations", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, f.HasSession())
}

// =============================================================================
// Report actions
// =============================================================================

func TestPaginate_All(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)
	loadPage(t, h, f)

	body := post(t, f, h.Paginate, action(t, "/recommendations/actions/page?size=-1"))

	assert.Contains(t, body, "Avoid SELECT *")
	assert.Contains(t, body, "Unused tables")
	assert.Contains(t, body, "disabled>Next</button>")
}

func TestApplyDialog(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)
	loadPage(t, h, f)

	body := post(t, f, h.OpenApply, action(t, "/recommendations/actions/apply/3", "ruleId", "3"))
	assert.Contains(t, body, `class="apply-dialog"`)
	assert.Contains(t, body, "SELECT a FROM t")

	body = post(t, f, h.OpenApply, action(t, "/recommendations/actions/apply/10", "ruleId", "10"))
	assert.NotContains(t, body, `class="apply-dialog"`, "rule 10 needs no query change")

	body = post(t, f, h.CloseApply, action(t, "/recommendations/actions/apply/close"))
	assert.NotContains(t, body, `class="apply-dialog"`)
}

func TestRefresh_Failure(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)
	f.Backend.JSON("/get-recommendations", http.StatusInternalServerError, map[string]any{"detail": "db down"})

	body := post(t, f, h.Refresh, action(t, "/recommendations/actions/refresh"))

	assert.Contains(t, body, "Failed to load recommendations. Please try again later.")
}

// =============================================================================
// Drill-down
// =============================================================================

func TestOpenDrill_SchemaDiscoveryLayout(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)
	loadPage(t, h, f)
	f.Backend.JSON("/rule", http.StatusOK, map[string]any{
		"total_count": 1,
		"data": []map[string]any{
			{"project_name": "alpha", "schema_name": "sales", "table_name": "orders_old", "columns_with_data_type": "id INT64"},
		},
	})

	body := post(t, f, h.OpenDrill, action(t, "/recommendations/actions/rule/10", "ruleId", "10"))

	for _, want := range []string{"Schema Name", "Columns with Data Type", "orders_old", "id INT64"} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "Sr. No")
	sent := f.Backend.LastBody("/rule")
	assert.Equal(t, "10", sent["rule_id"])
	assert.EqualValues(t, 1, sent["page"])
	assert.EqualValues(t, 10, sent["page_size"])
}

func TestOpenDrill_QueryLogLayoutPages(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)
	loadPage(t, h, f)
	rows := make([]map[string]any, 10)
	for i := range rows {
		rows[i] = map[string]any{"project_id": "p-77", "log_id": "L", "query": "SELECT *"}
	}
	f.Backend.JSON("/rule", http.StatusOK, map[string]any{"total_count": 25, "data": rows})

	body := post(t, f, h.OpenDrill, action(t, "/recommendations/actions/rule/3", "ruleId", "3"))
	assert.Contains(t, body, "Sr. No")
	assert.Contains(t, body, "Statement ID")
	assert.Contains(t, body, "1-10 of 25")

	body = post(t, f, h.DrillPage, action(t, "/recommendations/actions/rule/page?page=1"))
	assert.Contains(t, body, "<td class=\"center\">11</td>", "counter continues across pages")
	assert.EqualValues(t, 2, f.Backend.LastBody("/rule")["page"])

	post(t, f, h.DrillPage, action(t, "/recommendations/actions/rule/page?size=-1"))
	assert.EqualValues(t, -1, f.Backend.LastBody("/rule")["page_size"])

	body = post(t, f, h.CloseDrill, action(t, "/recommendations/actions/rule/close"))
	assert.NotContains(t, body, "Sr. No")
}

func TestOpenDrill_UnknownRule(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)
	loadPage(t, h, f)

	body := post(t, f, h.OpenDrill, action(t, "/recommendations/actions/rule/99", "ruleId", "99"))

	assert.Contains(t, body, recommend.ErrUnknownRule.Error())
	assert.Equal(t, 0, len(f.Backend.Calls("/rule")))
}

func TestOpenDrill_Unauthorized(t *testing.T) {
	h, f := setupTestHandlers(t)
	stubReport(f)
	loadPage(t, h, f)
	f.Backend.JSON("/rule", http.StatusUnauthorized, nil)

	body := post(t, f, h.OpenDrill, action(t, "/recommendations/actions/rule/3", "ruleId", "3"))

	assert.Contains(t, body, "/login")
	assert.False(t, f.HasSession())
}

// =============================================================================
// Query details page
// =============================================================================

func TestDetailsPage(t *testing.T) {
	h, f := setupTestHandlers(t)
	f.Backend.JSON("/rule", http.StatusOK, map[string]any{
		"data": []map[string]any{{"project_name": "alpha", "schema_name": "s", "table_name": "t", "columns_with_data_type": "c"}},
	})
	r := features.RequestWithPathParam(
		httptest.NewRequest(http.MethodGet, "/query-details/10/Drop%20them/Unused%20tables", nil),
		"ruleId", "10", "recommendation", "Drop%20them", "ruleTitle", "Unused%20tables",
	)

	rec := f.Do(h.DetailsPage, r)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Unused tables - QueryDesk</title>")
	assert.Contains(t, body, "<dd>Drop them</dd>")
	assert.Contains(t, body, "<dd>alpha</dd>")
	assert.Contains(t, body, "Schema Name")
	assert.Equal(t, "alpha", f.Backend.LastBody("/rule")["project_name"])
}

func TestDetailsPage_BadRuleID(t *testing.T) {
	h, f := setupTestHandlers(t)
	r := features.RequestWithPathParam(
		httptest.NewRequest(http.MethodGet, "/query-details/x/a/b", nil),
		"ruleId", "x", "recommendation", "a", "ruleTitle", "b",
	)

	rec := f.Do(h.DetailsPage, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnescape(t *testing.T) {
	assert.Equal(t, "a b", unescape("a%20b"))
	assert.Equal(t, "100%", unescape("100%"), "invalid escapes are kept")
}

func sessionRequest(f *features.TestFixture) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range f.Cookies() {
		r.AddCookie(c)
	}
	return r
}
