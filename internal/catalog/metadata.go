package catalog

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/querydesk/internal/api"
)

// TableMetadata is the stored description of a table.
type TableMetadata struct {
	Description      string        `json:"description"`
	Tags             []string      `json:"tags"`
	FilterColumns    []string      `json:"filter_columns"`
	AggregateColumns []string      `json:"aggregate_columns"`
	SortColumns      []string      `json:"sort_columns"`
	KeyColumns       []string      `json:"key_columns"`
	SampleUsage      []SampleUsage `json:"sample_usage"`
}

// ColumnMetadata is the stored description of a column.
type ColumnMetadata struct {
	Description          string        `json:"description"`
	IsFilterable         bool          `json:"is_filterable"`
	IsAggregatable       bool          `json:"is_aggregatable"`
	SampleValues         []string      `json:"sample_values"`
	RelatedBusinessTerms []string      `json:"related_business_terms"`
	SampleUsage          []SampleUsage `json:"sample_usage"`
}

// decodeMetadata maps a loosely typed metadata object onto out. Missing keys
// keep their zero values and scalars are coerced ("true" to bool, a single
// string to a one-element list).
func decodeMetadata(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("metadata decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	return nil
}

// AuditRecord is one line of change history.
type AuditRecord struct {
	UpdatedBy string
	UpdatedAt string
}

// auditTimeLayouts are tried in order when parsing event_time.
var auditTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// FormatAudit renders history entries in loc. Unparseable times are kept
// verbatim.
func FormatAudit(entries []api.AuditEntry, loc *time.Location) []AuditRecord {
	if loc == nil {
		loc = time.Local
	}
	out := make([]AuditRecord, len(entries))
	for i, e := range entries {
		out[i] = AuditRecord{UpdatedBy: e.UserID, UpdatedAt: formatEventTime(e.EventTime, loc)}
	}
	return out
}

func formatEventTime(s string, loc *time.Location) string {
	for _, layout := range auditTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc).Format("2006-01-02 15:04:05")
		}
	}
	return s
}
