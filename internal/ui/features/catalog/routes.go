// Package catalog provides the catalog editor tab: a table metadata form and
// a column metadata form side by side.
package catalog

import (
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
)

// SetupRoutes configures routes for the catalog feature.
func SetupRoutes(router chi.Router, env *common.Env) error {
	handlers := NewHandlers(env)

	router.Get("/catalog", handlers.CatalogPage)

	router.Route("/catalog/actions/table", func(r chi.Router) {
		r.Post("/select", handlers.SelectTable)
		r.Post("/description", handlers.TableDescription)
		r.Post("/tag/add", handlers.AddTableTag)
		r.Post("/tag/remove", handlers.RemoveTableTag)
		r.Post("/list/{list}/add", handlers.AddListColumn)
		r.Post("/list/{list}/remove", handlers.RemoveListColumn)
		r.Post("/query/{op}", handlers.TableQuery)
		r.Post("/reset", handlers.ResetTable)
		r.Post("/save", handlers.SaveTable)
		r.Post("/dismiss", handlers.DismissTable)
	})

	router.Route("/catalog/actions/column", func(r chi.Router) {
		r.Post("/table", handlers.SelectColumnTable)
		r.Post("/select", handlers.SelectColumn)
		r.Post("/description", handlers.ColumnDescription)
		r.Post("/flags", handlers.ColumnFlags)
		r.Post("/tag/{field}/add", handlers.AddColumnTag)
		r.Post("/tag/{field}/remove", handlers.RemoveColumnTag)
		r.Post("/query/{op}", handlers.ColumnQuery)
		r.Post("/reset", handlers.ResetColumn)
		r.Post("/save", handlers.SaveColumn)
		r.Post("/dismiss", handlers.DismissColumn)
	})

	return nil
}
