package optimizer

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/querydesk/internal/ui/features"
)

func setupTestHandlers(t *testing.T) (*Handlers, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t)
	return NewHandlers(fixture.Env), fixture
}

func post(t *testing.T, f *features.TestFixture, h http.HandlerFunc, path string, signals any) string {
	t.Helper()
	rec := f.Do(h, features.SignalsRequest(t, http.MethodPost, path, signals))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestOptimizePage(t *testing.T) {
	h, f := setupTestHandlers(t)

	rec := f.Do(h.OptimizePage, httptest.NewRequest(http.MethodGet, "/optimize", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Optimize - QueryDesk</title>")
	assert.Contains(t, body, `id="optimize-view"`)
	assert.Contains(t, body, `class="tab active"`)
}

func TestOptimize_Flow(t *testing.T) {
	h, f := setupTestHandlers(t)
	f.Backend.JSON("/optimise_query", http.StatusOK, map[string]any{"sql_query_generated": "SELECT id FROM t WHERE d > 1"})
	f.Backend.JSON("/estimate", http.StatusOK, map[string]any{"result": map[string]any{"estimated_cost_usd": 0.25, "gigabytes_processed": 1.5}})
	f.Backend.JSON("/generate_insights_from_query", http.StatusOK, map[string]any{
		"result":          []map[string]any{{"id": 1}, {"id": 2}},
		"textual_summary": []string{"Two rows."},
	})

	body := post(t, f, h.Optimize, "/optimize/actions/run", Signals{Source: "SELECT * FROM t"})
	assert.Contains(t, body, "SELECT id FROM t WHERE d &gt; 1")
	assert.Equal(t, "SELECT * FROM t", f.Backend.LastBody("/optimise_query")["query"])

	body = post(t, f, h.Estimate, "/optimize/actions/estimate", nil)
	assert.Contains(t, body, "$0.25")
	assert.Contains(t, body, "1.500")

	body = post(t, f, h.Results, "/optimize/actions/results", nil)
	assert.Contains(t, body, "Two rows.")
	assert.Contains(t, body, "1-2 of 2")
}

func TestOptimize_FailureDisablesResults(t *testing.T) {
	h, f := setupTestHandlers(t)
	f.Backend.JSON("/optimise_query", http.StatusInternalServerError, nil)

	body := post(t, f, h.Optimize, "/optimize/actions/run", Signals{Source: "SELECT 1"})
	assert.Contains(t, body, "Error generating query.")
	assert.Regexp(t, `disabled>Show Results`, body)

	post(t, f, h.Results, "/optimize/actions/results", nil)
	assert.Empty(t, f.Backend.Calls("/generate_insights_from_query"))
}

func TestOptimize_Unauthorized(t *testing.T) {
	h, f := setupTestHandlers(t)
	f.Backend.JSON("/optimise_query", http.StatusUnauthorized, nil)

	body := post(t, f, h.Optimize, "/optimize/actions/run", Signals{Source: "SELECT 1"})
	assert.Contains(t, body, "/login")
	assert.NotContains(t, body, "Error generating query.")
}
