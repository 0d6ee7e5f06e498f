package commands

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/querydesk/internal/catalog"
	"github.com/leapstack-labs/querydesk/internal/cli/config"
	"github.com/leapstack-labs/querydesk/internal/cli/output"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse catalog metadata",
		Long: `Read the table and column metadata that guides query generation,
and the change history kept for each entry.

Reads use catalog.market (default ALL). Audit times are shown in
catalog.timezone.`,
		Example: `  querydesk catalog tables
  querydesk catalog columns sales.orders
  querydesk catalog show sales.orders
  querydesk catalog show sales.orders region --output json
  querydesk catalog audit sales.orders`,
	}

	cmd.AddCommand(
		newCatalogTablesCommand(),
		newCatalogColumnsCommand(),
		newCatalogShowCommand(),
		newCatalogAuditCommand(),
	)
	return cmd
}

func catalogOptions(cc *CommandContext) catalog.Options {
	return catalogConfig(cc.Cfg, cc.Logger)
}

func catalogConfig(cfg *config.Config, logger *slog.Logger) catalog.Options {
	return catalog.Options{
		Market:   cfg.Catalog.Market,
		Location: cfg.Catalog.Location(),
		Logger:   logger,
	}
}

func newCatalogTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List catalog tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			st, err := catalog.NewTableForm(cc.Client, catalogOptions(cc)).LoadTables(cmd.Context())
			if err != nil {
				return failure(err, st.Error)
			}
			return printNames(cc.Renderer, "Table", st.Tables)
		},
	}
}

func newCatalogColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <table>",
		Short: "List the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			st, err := catalog.NewColumnForm(cc.Client, catalogOptions(cc)).SelectTable(cmd.Context(), args[0])
			if err != nil {
				return failure(err, st.Error)
			}
			return printNames(cc.Renderer, "Column", st.Columns)
		},
	}
}

func printNames(r *output.Renderer, header string, names []string) error {
	if r.EffectiveMode() == output.ModeJSON {
		if names == nil {
			names = []string{}
		}
		return r.JSON(names)
	}
	t := output.Table{Headers: []string{header}}
	for _, n := range names {
		t.Rows = append(t.Rows, []string{n})
	}
	return r.Table(t)
}

func newCatalogShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <table> [column]",
		Short: "Show table or column metadata",
		Long: `Show the stored metadata of a table, or of one of its columns. Entries
without metadata are reported as blank.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			if len(args) == 2 {
				return showColumn(cmd, cc, args[0], args[1])
			}
			return showTable(cmd, cc, args[0])
		},
	}
}

func showTable(cmd *cobra.Command, cc *CommandContext, table string) error {
	r := cc.Renderer
	st, err := catalog.NewTableForm(cc.Client, catalogOptions(cc)).Select(cmd.Context(), table)
	if err != nil {
		return failure(err, st.Error)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Table    string                `json:"table"`
			Metadata catalog.TableMetadata `json:"metadata"`
			Columns  []string              `json:"columns"`
			Stored   bool                  `json:"stored"`
		}{table, st.Fields.Metadata(), st.Columns, st.HasSnapshot})
	}

	r.Header(1, table)
	if !st.HasSnapshot {
		r.Println(r.Muted("No metadata stored for this table."))
		return nil
	}
	r.KeyValue("Description", orDash(st.Fields.Description))
	r.KeyValue("Tags", joinTags(st.Fields.Tags))
	for _, l := range catalog.ColumnLists {
		r.KeyValue(l.Label(), joinTags(st.Fields.Lists[l]))
	}
	printSampleQueries(r, st.Fields.Queries)
	return nil
}

func showColumn(cmd *cobra.Command, cc *CommandContext, table, column string) error {
	r := cc.Renderer
	ctx := cmd.Context()
	form := catalog.NewColumnForm(cc.Client, catalogOptions(cc))
	if st, err := form.SelectTable(ctx, table); err != nil {
		return failure(err, st.Error)
	}
	st, err := form.SelectColumn(ctx, column)
	if err != nil {
		return failure(err, st.Error)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Table    string                 `json:"table"`
			Column   string                 `json:"column"`
			Metadata catalog.ColumnMetadata `json:"metadata"`
			Stored   bool                   `json:"stored"`
		}{table, column, st.Fields.Metadata(), st.HasSnapshot})
	}

	r.Header(1, table+"."+column)
	if !st.HasSnapshot {
		r.Println(r.Muted("No metadata stored for this column."))
		return nil
	}
	r.KeyValue("Description", orDash(st.Fields.Description))
	r.KeyValue("Filterable", yesNo(st.Fields.IsFilterable))
	r.KeyValue("Aggregatable", yesNo(st.Fields.IsAggregatable))
	r.KeyValue(catalog.SampleValues.Label(), joinTags(st.Fields.SampleValues))
	r.KeyValue(catalog.BusinessTerms.Label(), joinTags(st.Fields.BusinessTerms))
	printSampleQueries(r, st.Fields.Queries)
	return nil
}

func printSampleQueries(r *output.Renderer, queries catalog.SampleQueries) {
	if len(queries) == 0 {
		return
	}
	r.Println("")
	r.Header(2, "Sample Queries")
	for _, q := range queries {
		if q.Description != "" {
			r.Println(q.Description)
		}
		r.Code("sql", q.SQL)
	}
}

func newCatalogAuditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <table> [column]",
		Short: "Show the change history of a table or column",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			column := ""
			if len(args) == 2 {
				column = args[1]
			}
			entries, err := cc.Client.GetAuditTable(cmd.Context(), args[0], column)
			if err != nil {
				return failure(err, "Failed to load audit history.")
			}
			records := catalog.FormatAudit(entries, cc.Cfg.Catalog.Location())

			t := output.Table{Headers: []string{"Updated By", "Updated At"}}
			for _, rec := range records {
				t.Rows = append(t.Rows, []string{rec.UpdatedBy, rec.UpdatedAt})
			}
			return cc.Renderer.Table(t)
		},
	}
}

func joinTags(l catalog.TagList) string {
	return orDash(strings.Join(l.Strings(), ", "))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
