package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/authoring"
	"github.com/leapstack-labs/querydesk/internal/cli/output"
	"github.com/leapstack-labs/querydesk/internal/optimize"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate SQL from a natural-language prompt",
		Long: `Send a prompt to the backend and print the generated SQL with its
textual summary. Nothing is estimated or executed.`,
		Example: `  # Generate a query
  querydesk generate "total revenue by region last quarter"

  # Generate for another market
  querydesk generate --market EU "active users per day"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, strings.Join(args, " "))
		},
	}
}

func runGenerate(cmd *cobra.Command, prompt string) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	res, err := cc.Client.GenerateQuery(cmd.Context(), prompt, cc.Cfg.App().Market)
	if err != nil {
		return failure(err, "API request failed")
	}
	if strings.TrimSpace(res.SQL) == "" {
		return fmt.Errorf("no query generated")
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}
	r.Code("sql", res.SQL)
	printSummary(r, res.TextualSummary)
	return nil
}

// NewEstimateCommand creates the estimate command.
func NewEstimateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate [sql|-]",
		Short: "Estimate the cost of a query",
		Long: `Dry-run a query and judge the estimate against the configured limits.

The query is read from the arguments, or from stdin when given "-" or
nothing.`,
		Example: `  querydesk estimate "SELECT region, SUM(amount) FROM sales GROUP BY 1"
  cat report.sql | querydesk estimate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd, args)
			if err != nil {
				return err
			}
			cc := NewCommandContext(cmd)
			est, err := cc.Client.Estimate(cmd.Context(), query, cc.Cfg.App().Market)
			if err != nil {
				return failure(err, "Cost estimation failed")
			}
			return printEstimate(cc.Renderer, est, cc.Cfg.Limits.Limits())
		},
	}
}

type estimateOutput struct {
	api.CostEstimate
	EstimatedSeconds float64 `json:"estimated_seconds"`
	CostLimitUSD     float64 `json:"cost_limit_usd"`
	TooExpensive     bool    `json:"too_expensive"`
	TimeoutRisk      bool    `json:"timeout_risk"`
}

func printEstimate(r *output.Renderer, est api.CostEstimate, limits authoring.Limits) error {
	a := limits.Assess(est)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(estimateOutput{
			CostEstimate:     est,
			EstimatedSeconds: a.Seconds,
			CostLimitUSD:     limits.CostLimitUSD,
			TooExpensive:     a.TooExpensive,
			TimeoutRisk:      a.TimeoutRisk,
		})
	}

	r.Header(2, "Cost Estimate")
	r.KeyValue("Estimated cost", fmt.Sprintf("$%.2f", est.EstimatedCostUSD))
	r.KeyValue("Bytes processed", output.Count(int(est.BytesProcessed)))
	r.KeyValue("Gigabytes processed", fmt.Sprintf("%.3f", est.GigabytesProcessed))
	r.KeyValue("Estimated runtime", fmt.Sprintf("%.1fs", a.Seconds))
	r.Println("")

	if a.TooExpensive {
		r.Warning(fmt.Sprintf("Estimated cost $%.2f exceeds the $%.2f limit.", a.Cost, limits.CostLimitUSD))
	}
	if a.TimeoutRisk {
		r.Warning(fmt.Sprintf("Long runtime (%.1fs) may time out.", a.Seconds))
	}
	return nil
}

// ExecuteOptions holds options for the execute command.
type ExecuteOptions struct {
	Force bool
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand() *cobra.Command {
	opts := &ExecuteOptions{}

	cmd := &cobra.Command{
		Use:   "execute [sql|-]",
		Short: "Estimate and run a query",
		Long: `Estimate a query, then run it when the estimate is within the cost limit.

A timeout risk only warns. Execution is cancelled after limits.execute_timeout.
Use --output csv to export the rows.`,
		Example: `  querydesk execute "SELECT * FROM orders LIMIT 20"
  querydesk execute --output csv - < report.sql > results.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd, args)
			if err != nil {
				return err
			}
			return runExecute(cmd, query, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Run even when the estimate exceeds the cost limit")
	return cmd
}

func runExecute(cmd *cobra.Command, query string, opts *ExecuteOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer
	ctx := cmd.Context()
	market := cc.Cfg.App().Market
	limits := cc.Cfg.Limits.Limits()

	est, err := cc.Client.Estimate(ctx, query, market)
	if err != nil {
		return failure(err, "Cost estimation failed")
	}
	a := limits.Assess(est)
	if a.TooExpensive && !opts.Force {
		return fmt.Errorf("execution blocked: estimated cost $%.2f exceeds the $%.2f limit", a.Cost, limits.CostLimitUSD)
	}
	if a.TimeoutRisk {
		r.Warning(fmt.Sprintf("Long runtime (%.1fs) may time out.", a.Seconds))
	}

	runCtx, cancel := context.WithTimeout(ctx, limits.ExecuteTimeout)
	defer cancel()
	res, err := cc.Client.ExecuteQuery(runCtx, query, market)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("query execution timed out after %d seconds", int(limits.ExecuteTimeout.Seconds()))
		}
		return failure(err, "API request failed")
	}

	cc.Logger.Debug("query executed", "rows", res.Result.Len())
	return printResults(r, res.Result, res.TextualSummary)
}

func printResults(r *output.Renderer, rs api.ResultSet, insights []string) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Result         api.ResultSet `json:"result"`
			TextualSummary []string      `json:"textual_summary"`
		}{rs, insights})
	}
	if err := r.Table(resultTable(rs)); err != nil {
		return err
	}
	if r.EffectiveMode() != output.ModeCSV {
		printSummary(r, insights)
	}
	return nil
}

// resultTable leaves missing and null values empty, like the CSV download.
func resultTable(rs api.ResultSet) output.Table {
	t := output.Table{Headers: rs.Columns, Rows: make([][]string, rs.Len())}
	for i := range rs.Rows {
		row := make([]string, len(rs.Columns))
		for j, col := range rs.Columns {
			row[j] = rs.Field(i, col)
		}
		t.Rows[i] = row
	}
	return t
}

func printSummary(r *output.Renderer, lines []string) {
	if len(lines) == 0 {
		return
	}
	r.Println("")
	r.Header(2, "Insights")
	for _, line := range lines {
		r.Println("- " + line)
	}
}

// OptimizeOptions holds options for the optimize command.
type OptimizeOptions struct {
	Results bool
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand() *cobra.Command {
	opts := &OptimizeOptions{}

	cmd := &cobra.Command{
		Use:   "optimize <prompt>",
		Short: "Optimize a query and estimate its cost",
		Long: `Ask the backend for an optimized query and show an informational cost
estimate. No cost limit is applied. With --results the optimized query is
also run through the insights service.`,
		Example: `  querydesk optimize "SELECT * FROM events WHERE ts > now() - interval 1 day"
  querydesk optimize --results "daily signups by channel"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Results, "results", false, "Fetch results and insights for the optimized query")
	return cmd
}

func runOptimize(cmd *cobra.Command, prompt string, opts *OptimizeOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer
	ctx := cmd.Context()
	s := optimize.NewSession(cc.Client, cc.Logger)

	st, err := s.Optimize(ctx, prompt)
	if err != nil {
		return failure(err, st.Query)
	}
	if r.EffectiveMode() != output.ModeJSON {
		r.Header(2, "Optimized Query")
		r.Code("sql", st.Query)
		r.Println("")
	}

	st, err = s.Estimate(ctx, cc.Cfg.App())
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return failure(err, "")
	case err != nil:
		r.Warning(st.EstimateError)
	}

	if opts.Results {
		st, err = s.Results(ctx)
		if err != nil {
			return failure(err, st.Error)
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(optimizeOutput{
			Query:    st.Query,
			Estimate: st.Estimate,
			Result:   st.Results,
			Insights: st.Insights,
		})
	}
	if st.Estimate != nil {
		r.KeyValue("Estimated cost", fmt.Sprintf("$%.2f", st.Estimate.EstimatedCostUSD))
		r.KeyValue("Bytes processed", output.Count(int(st.Estimate.BytesProcessed)))
		r.Println("")
	}
	if opts.Results {
		return printResults(r, st.Results, st.Insights)
	}
	return nil
}

type optimizeOutput struct {
	Query    string            `json:"query"`
	Estimate *api.CostEstimate `json:"estimate,omitempty"`
	Result   api.ResultSet     `json:"result"`
	Insights []string          `json:"insights,omitempty"`
}
