package output

import (
	"encoding/csv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table is a header row plus string cells, rendered per output mode.
type Table struct {
	Headers []string
	Rows    [][]string

	// Align right-aligns the listed column indices in text mode.
	Align []int
}

// Records returns the rows as header-keyed objects for JSON output.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				rec[h] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

// Table writes t in the effective mode. Empty tables print "(0 rows)"
// in text and markdown.
func (r *Renderer) Table(t Table) error {
	mode := r.EffectiveMode()
	switch mode {
	case ModeJSON:
		return r.JSON(t.Records())
	case ModeCSV:
		return r.csv(t)
	}
	if len(t.Rows) == 0 {
		r.Println("(0 rows)")
		return nil
	}

	w := table.NewWriter()
	w.SetOutputMirror(r.out)

	header := make(table.Row, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	w.AppendHeader(header)
	for _, cells := range t.Rows {
		row := make(table.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		w.AppendRow(row)
	}

	if mode == ModeMarkdown {
		w.RenderMarkdown()
	} else {
		w.SetStyle(table.StyleLight)
		if r.isTTY {
			w.Style().Color.Header = text.Colors{text.Bold}
		}
		configs := make([]table.ColumnConfig, 0, len(t.Align))
		for _, idx := range t.Align {
			configs = append(configs, table.ColumnConfig{Number: idx + 1, Align: text.AlignRight})
		}
		w.SetColumnConfigs(configs)
		w.Render()
	}
	r.Printf("(%d rows)\n", len(t.Rows))
	return nil
}

// csv writes RFC 4180 records. go-pretty escapes commas with a backslash,
// which spreadsheet tools do not read back.
func (r *Renderer) csv(t Table) error {
	cw := csv.NewWriter(r.out)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
