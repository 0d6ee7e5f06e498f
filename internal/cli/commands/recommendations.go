package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/querydesk/internal/cli/output"
	"github.com/leapstack-labs/querydesk/internal/paging"
	"github.com/leapstack-labs/querydesk/internal/recommend"
)

// NewRecommendationsCommand creates the recommendations command.
func NewRecommendationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recommendations",
		Aliases: []string{"recs"},
		Short:   "Show rule-based optimization recommendations",
		Long: `Load the recommendation report for the configured market and project,
with the number of schemas and queries analyzed.

Use "recommendations rule <id>" to page through the queries a rule matched.`,
		Example: `  querydesk recommendations
  querydesk recommendations --project beta --output json
  querydesk recommendations rule 3 --page 2 --page-size 25
  querydesk recommendations rule 10 --page-size all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecommendations(cmd)
		},
	}

	cmd.AddCommand(newRuleCommand())
	return cmd
}

func runRecommendations(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	board := recommend.NewBoard(cc.Client, paging.All)
	st, err := board.Refresh(cmd.Context(), cc.Cfg.App())
	if err != nil {
		return failure(err, st.Error)
	}
	report := st.Report

	t := output.Table{
		Headers: []string{"Rule ID", "Title", "Recommendation", "Category", "Query Count", "Query Change", "Schema Change"},
		Align:   []int{0, 4},
	}
	for _, rec := range report.Items {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(rec.RuleID),
			rec.RuleTitle,
			rec.Recommendation,
			rec.OptimizationCategory,
			output.Count(rec.QueryCount),
			rec.QueryChange,
			rec.SchemaChange,
		})
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(reportOutput{
			ProjectID:       report.ProjectID,
			SchemasAnalyzed: report.SchemasAnalyzed,
			QueriesAnalyzed: report.QueriesAnalyzed,
			Warning:         report.Warning,
			Items:           t.Records(),
		})
	case output.ModeCSV:
	default:
		r.Header(1, "Recommendations")
		r.KeyValue("Project ID", report.ProjectID)
		if report.Warning != "" {
			r.Warning(report.Warning)
		} else {
			r.KeyValue("Schemas analyzed", output.Count(report.SchemasAnalyzed))
			r.KeyValue("Queries analyzed", output.Count(report.QueriesAnalyzed))
		}
		r.Println("")
	}
	return r.Table(t)
}

type reportOutput struct {
	ProjectID       string              `json:"project_id"`
	SchemasAnalyzed int                 `json:"schemas_analyzed"`
	QueriesAnalyzed int                 `json:"queries_analyzed"`
	Warning         string              `json:"warning,omitempty"`
	Items           []map[string]string `json:"items"`
}

// RuleOptions holds options for the rule drill-down.
type RuleOptions struct {
	Page     int
	PageSize string
}

func newRuleCommand() *cobra.Command {
	opts := &RuleOptions{}

	cmd := &cobra.Command{
		Use:   "rule <id>",
		Short: "List the queries matched by a rule",
		Long: `Fetch one page of the queries a rule matched. Pages are numbered from 1.
Rule 10 lists tables and their columns instead of queries.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			return runRule(cmd, id, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page to fetch, starting at 1")
	cmd.Flags().StringVar(&opts.PageSize, "page-size", strconv.Itoa(paging.DefaultSize), `Rows per page, or "all"`)
	_ = cmd.RegisterFlagCompletionFunc("page-size", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"5", "10", "25", "all"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// parsePageSize accepts a positive number or "all".
func parsePageSize(s string) (int, error) {
	if strings.EqualFold(s, "all") {
		return paging.All, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf(`invalid page size %q: use a positive number or "all"`, s)
	}
	return n, nil
}

func runRule(cmd *cobra.Command, ruleID int, opts *RuleOptions) error {
	size, err := parsePageSize(opts.PageSize)
	if err != nil {
		return err
	}
	if opts.Page < 1 {
		return fmt.Errorf("invalid page %d: pages start at 1", opts.Page)
	}

	cc := NewCommandContext(cmd)
	r := cc.Renderer
	ctx := cmd.Context()
	app := cc.Cfg.App()

	board := recommend.NewBoard(cc.Client, paging.All)
	if st, err := board.Refresh(ctx, app); err != nil {
		return failure(err, st.Error)
	}
	rec, ok := board.Find(ruleID)
	if !ok {
		return fmt.Errorf("rule %d is not in the report: %w", ruleID, recommend.ErrUnknownRule)
	}

	drill := recommend.NewDrillDown(cc.Client, recommend.DefaultRegistry())
	target := recommend.Target{RuleID: ruleID, Recommendation: rec.Recommendation, Title: rec.RuleTitle}
	st, err := drill.Open(ctx, app, target, size)
	if err == nil && opts.Page > 1 && size != paging.All {
		st, err = drill.SetPage(ctx, app, opts.Page-1)
	}
	if err != nil {
		return failure(err, st.Error)
	}

	headers := st.Layout.Headers()
	t := output.Table{Headers: headers}
	for i := range st.Rows.Rows {
		cells := st.Cells(i)
		row := make([]string, len(cells))
		for j, c := range cells {
			row[j] = c.Text
		}
		t.Rows = append(t.Rows, row)
	}

	mode := r.EffectiveMode()
	if mode == output.ModeJSON {
		return r.JSON(struct {
			RuleID     int                 `json:"rule_id"`
			Title      string              `json:"title"`
			Page       int                 `json:"page"`
			PageSize   int                 `json:"page_size"`
			TotalCount int                 `json:"total_count"`
			Rows       []map[string]string `json:"rows"`
		}{ruleID, rec.RuleTitle, st.Pager.WirePage(), st.Pager.Size, st.Total, t.Records()})
	}
	if mode != output.ModeCSV {
		r.Header(1, fmt.Sprintf("Rule %d: %s", ruleID, rec.RuleTitle))
		r.KeyValue("Recommendation", rec.Recommendation)
		r.KeyValue("Project", st.ProjectName)
		r.KeyValue("Showing", st.Label())
		r.Println("")
	}
	return r.Table(t)
}
