// Package catalog implements the catalog editor: table and column metadata
// forms that load, edit, reset and save against the backend, with audit
// history refreshed after every save.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leapstack-labs/querydesk/internal/api"
)

var (
	// ErrNoSnapshot is returned by Reset before any load or save succeeded.
	ErrNoSnapshot = errors.New("catalog: nothing to reset to")

	// ErrSaveInFlight is returned when Save is called during a save.
	ErrSaveInFlight = errors.New("catalog: save in progress")

	// ErrLoading is returned when Save is called while the selection's
	// metadata is still loading.
	ErrLoading = errors.New("catalog: metadata still loading")

	// ErrSelectionRequired is returned when saving without a selection.
	ErrSelectionRequired = errors.New("catalog: selection required")

	// ErrStale is returned when a newer selection superseded a load.
	ErrStale = errors.New("catalog: response superseded")
)

// DefaultMarket is the market catalog writes are scoped to.
const DefaultMarket = "ALL"

const (
	resetNotice     = "Form has been reset to its last saved state."
	savedNotice     = "Data saved successfully!"
	saveFailure     = "Failed to save data."
	tablesFailure   = "Could not load tables."
	columnsFailure  = "Could not load columns for the selected table."
	selectTableMsg  = "Please select a table before saving."
	selectColumnMsg = "Please select a table and a column before saving."
)

// Backend is the subset of the API gateway the catalog editor needs.
type Backend interface {
	GetTables(ctx context.Context) ([]string, error)
	GetColumns(ctx context.Context, table string) ([]string, error)
	GetTableMetadata(ctx context.Context, market, table string) (map[string]any, error)
	GetColumnMetadata(ctx context.Context, market, table, column string) (map[string]any, error)
	UpdateTable(ctx context.Context, req api.UpdateTableRequest) (string, error)
	UpdateColumns(ctx context.Context, req api.UpdateColumnRequest) (string, error)
	GetAuditTable(ctx context.Context, table, column string) ([]api.AuditEntry, error)
}

// Options configures both forms.
type Options struct {
	Market   string
	Location *time.Location
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Market == "" {
		o.Market = DefaultMarket
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// saveFailureMessage prefers the body's detail, then any other server text.
func saveFailureMessage(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return api.Message(err, saveFailure)
}

// loadAudit fetches history and degrades to an empty list on any error.
func loadAudit(ctx context.Context, b Backend, o Options, table, column string) []AuditRecord {
	entries, err := b.GetAuditTable(ctx, table, column)
	if err != nil {
		if !errors.Is(err, api.ErrNotFound) {
			o.Logger.Debug("audit history unavailable", "table", table, "column", column, "error", err)
		}
		return []AuditRecord{}
	}
	return FormatAudit(entries, o.Location)
}
