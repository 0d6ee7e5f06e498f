package api

// GenerateRequest is the body of /generate_query and /optimise_query.
type GenerateRequest struct {
	Query   string `json:"query"`
	LLMType string `json:"llm_type"`
	Market  string `json:"market,omitempty"`
}

// QueryResponse is returned by the generation endpoints.
type QueryResponse struct {
	SQL            string   `json:"sql_query_generated"`
	TextualSummary []string `json:"textual_summary"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

// QueryRequest is the body of /estimate and /execute_query.
type QueryRequest struct {
	Query  string `json:"query"`
	Market string `json:"market"`
}

// CostEstimate is a dry-run prediction of bytes scanned and dollar cost.
type CostEstimate struct {
	EstimatedCostUSD   float64 `json:"estimated_cost_usd"`
	BaseCostUSD        float64 `json:"base_cost_usd"`
	PricePerTBUSD      float64 `json:"price_per_tb_usd"`
	BytesProcessed     float64 `json:"bytes_processed"`
	GigabytesProcessed float64 `json:"gigabytes_processed"`
	TerabytesProcessed float64 `json:"terabytes_processed"`
}

// ExecuteResponse carries query rows and narrative insights.
type ExecuteResponse struct {
	Result         ResultSet `json:"result"`
	TextualSummary []string  `json:"textual_summary"`
}

// InsightsRequest is the body of /generate_insights_from_query.
type InsightsRequest struct {
	Query   string `json:"query"`
	LLMType string `json:"llm_type"`
}

// RecommendationsRequest is the body of /get-recommendations.
type RecommendationsRequest struct {
	Market      string `json:"market"`
	ProjectName string `json:"project_name"`
}

// RecommendationItem is one rule match as sent by the backend.
type RecommendationItem struct {
	RuleID               FlexInt    `json:"rule_id"`
	RuleTitle            string     `json:"rule_title"`
	Recommendation       string     `json:"recommendation"`
	OptimizationCategory string     `json:"optimization_category"`
	ReferenceQuery       string     `json:"reference_query"`
	ReferenceQueryID     FlexString `json:"reference_query_id"`
	QueryCount           FlexInt    `json:"query_count"`
	QueryChangeRequired  string     `json:"query_or_code_change_required"`
	SchemaChangeRequired FlexBool   `json:"schema_change_required"`
	SampleQuery          string     `json:"sample_query"`
	RecommendedQuery     string     `json:"recommended_query"`
}

// RecommendationsResponse is returned by /get-recommendations.
type RecommendationsResponse struct {
	ProjectID FlexString           `json:"project_id"`
	Data      []RecommendationItem `json:"data"`
}

// MarketRequest carries only the market partition key.
type MarketRequest struct {
	Market string `json:"market"`
}

// RuleRequest is the body of /rule. Page is 1-indexed; PageSize -1 means all.
type RuleRequest struct {
	RuleID      string `json:"rule_id"`
	Market      string `json:"market"`
	ProjectName string `json:"project_name"`
	Page        int    `json:"page"`
	PageSize    int    `json:"page_size"`
}

// RulePage is one page of queries matched by a rule.
type RulePage struct {
	Rows       ResultSet
	TotalCount int
}

type rulePageWire struct {
	Data       ResultSet `json:"data"`
	TotalCount *FlexInt  `json:"total_count"`
}

// TableRequest selects a catalog table.
type TableRequest struct {
	Market    string `json:"market,omitempty"`
	TableName string `json:"table_name"`
}

// ColumnRequest selects a catalog column.
type ColumnRequest struct {
	Market     string `json:"market,omitempty"`
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
}

// AuditRequest is the body of /get-audit-table. ColumnName scopes the
// history to one column.
type AuditRequest struct {
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name,omitempty"`
}

// AuditEntry is one row of catalog change history.
type AuditEntry struct {
	UserID    string `json:"user_id"`
	EventTime string `json:"event_time"`
}

// UpdateTableRequest upserts table metadata.
type UpdateTableRequest struct {
	Market    string `json:"market"`
	TableName string `json:"table_name"`
	Obj       any    `json:"obj"`
}

// UpdateColumnRequest upserts column metadata.
type UpdateColumnRequest struct {
	Market     string `json:"market"`
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
	Obj        any    `json:"obj"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type listResponse struct {
	Result []string `json:"result"`
}

type metadataResponse struct {
	Result map[string]any `json:"result"`
}

type auditResponse struct {
	Result []AuditEntry `json:"result"`
}
