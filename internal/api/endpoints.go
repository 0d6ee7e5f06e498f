package api

import (
	"context"
	"net/http"
	"strconv"
)

// GenerateQuery turns a natural-language prompt into SQL.
func (c *Client) GenerateQuery(ctx context.Context, prompt, market string) (QueryResponse, error) {
	var out QueryResponse
	err := c.Do(ctx, http.MethodPost, "/generate_query", GenerateRequest{
		Query:   prompt,
		LLMType: c.llmType,
		Market:  market,
	}, &out)
	return out, err
}

// OptimiseQuery asks the backend for an optimized rewrite of a query or
// prompt.
func (c *Client) OptimiseQuery(ctx context.Context, prompt string) (QueryResponse, error) {
	var out QueryResponse
	err := c.Do(ctx, http.MethodPost, "/optimise_query", GenerateRequest{
		Query:   prompt,
		LLMType: c.llmType,
	}, &out)
	return out, err
}

// Estimate dry-runs query and returns the predicted cost.
func (c *Client) Estimate(ctx context.Context, query, market string) (CostEstimate, error) {
	var out struct {
		Result CostEstimate `json:"result"`
	}
	err := c.Do(ctx, http.MethodPost, "/estimate", QueryRequest{Query: query, Market: market}, &out)
	return out.Result, err
}

// ExecuteQuery runs query and returns its rows and insights.
func (c *Client) ExecuteQuery(ctx context.Context, query, market string) (ExecuteResponse, error) {
	var out ExecuteResponse
	err := c.Do(ctx, http.MethodPost, "/execute_query", QueryRequest{Query: query, Market: market}, &out)
	return out, err
}

// GenerateInsights runs query on the insights service, which may live on a
// different origin than the main backend.
func (c *Client) GenerateInsights(ctx context.Context, query string) (ExecuteResponse, error) {
	var out ExecuteResponse
	err := c.Do(ctx, http.MethodPost, "/generate_insights_from_query", InsightsRequest{
		Query:   query,
		LLMType: c.llmType,
	}, &out, withBaseURL(c.insightsURL))
	return out, err
}

// GetRecommendations lists rule recommendations for a project.
func (c *Client) GetRecommendations(ctx context.Context, market, project string) (RecommendationsResponse, error) {
	var out RecommendationsResponse
	err := c.Do(ctx, http.MethodPost, "/get-recommendations", RecommendationsRequest{
		Market:      market,
		ProjectName: project,
	}, &out)
	return out, err
}

// TotalSchemas returns the number of schemas analyzed in market.
func (c *Client) TotalSchemas(ctx context.Context, market string) (int, error) {
	var out struct {
		Data struct {
			TotalSchemas FlexInt `json:"total_schemas"`
		} `json:"data"`
	}
	err := c.Do(ctx, http.MethodPost, "/get-total-schemas", MarketRequest{Market: market}, &out)
	return int(out.Data.TotalSchemas), err
}

// TotalQueryScanned returns the number of queries analyzed in market.
func (c *Client) TotalQueryScanned(ctx context.Context, market string) (int, error) {
	var out struct {
		Data struct {
			TotalQueryScanned FlexInt `json:"total_query_scanned"`
		} `json:"data"`
	}
	err := c.Do(ctx, http.MethodPost, "/get-total-query-scanned", MarketRequest{Market: market}, &out)
	return int(out.Data.TotalQueryScanned), err
}

// RuleDetails fetches one page of queries matched by a rule. When the
// backend omits total_count the row count is used.
func (c *Client) RuleDetails(ctx context.Context, req RuleRequest) (RulePage, error) {
	var out rulePageWire
	if err := c.Do(ctx, http.MethodPost, "/rule", req, &out); err != nil {
		return RulePage{}, err
	}
	page := RulePage{Rows: out.Data, TotalCount: out.Data.Len()}
	if out.TotalCount != nil && int(*out.TotalCount) > 0 {
		page.TotalCount = int(*out.TotalCount)
	}
	return page, nil
}

// RuleID formats a numeric rule id the way /rule expects it.
func RuleID(id int) string {
	return strconv.Itoa(id)
}

// GetTables lists catalog tables.
func (c *Client) GetTables(ctx context.Context) ([]string, error) {
	var out listResponse
	err := c.Do(ctx, http.MethodGet, "/get-tables", nil, &out)
	return out.Result, err
}

// GetColumns lists the columns of a catalog table.
func (c *Client) GetColumns(ctx context.Context, table string) ([]string, error) {
	var out listResponse
	err := c.Do(ctx, http.MethodPost, "/get-columns", TableRequest{TableName: table}, &out)
	return out.Result, err
}

// GetTableMetadata returns the raw metadata object for a table. A table with
// no metadata yet yields an error matching ErrNotFound.
func (c *Client) GetTableMetadata(ctx context.Context, market, table string) (map[string]any, error) {
	var out metadataResponse
	err := c.Do(ctx, http.MethodPost, "/get-table-metadata", TableRequest{Market: market, TableName: table}, &out)
	return out.Result, err
}

// GetColumnMetadata returns the raw metadata object for a column.
func (c *Client) GetColumnMetadata(ctx context.Context, market, table, column string) (map[string]any, error) {
	var out metadataResponse
	err := c.Do(ctx, http.MethodPost, "/get-column-metadata", ColumnRequest{
		Market:     market,
		TableName:  table,
		ColumnName: column,
	}, &out)
	return out.Result, err
}

// UpdateTable upserts table metadata and returns the server's message.
func (c *Client) UpdateTable(ctx context.Context, req UpdateTableRequest) (string, error) {
	var out messageResponse
	err := c.Do(ctx, http.MethodPost, "/update-table", req, &out)
	return out.Message, err
}

// UpdateColumns upserts column metadata and returns the server's message.
func (c *Client) UpdateColumns(ctx context.Context, req UpdateColumnRequest) (string, error) {
	var out messageResponse
	err := c.Do(ctx, http.MethodPost, "/update-columns", req, &out)
	return out.Message, err
}

// GetAuditTable returns change history for a table or, when column is set,
// a single column.
func (c *Client) GetAuditTable(ctx context.Context, table, column string) ([]AuditEntry, error) {
	var out auditResponse
	err := c.Do(ctx, http.MethodPost, "/get-audit-table", AuditRequest{TableName: table, ColumnName: column}, &out)
	return out.Result, err
}
