package authoring

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/leapstack-labs/querydesk/internal/api"
)

// File names offered for downloads.
const (
	ResultsFileName = "results.csv"
	QueryFileName   = "query.sql"
)

// WriteCSV writes rs as CSV with a header row in column order.
func WriteCSV(w io.Writer, rs api.ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range rs.Rows {
		if err := cw.Write(csvCells(rs, i)); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvCells leaves missing and null values empty rather than printing NULL.
func csvCells(rs api.ResultSet, i int) []string {
	cells := make([]string, len(rs.Columns))
	for j, col := range rs.Columns {
		cells[j] = rs.Field(i, col)
	}
	return cells
}
