// Package optimizer provides the Optimize view: rewrite a query, dry-run
// it and fetch sample results with insights.
package optimizer

import (
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
)

// SetupRoutes configures routes for the optimize feature.
func SetupRoutes(router chi.Router, env *common.Env) error {
	handlers := NewHandlers(env)

	router.Get("/optimize", handlers.OptimizePage)
	router.Route("/optimize/actions", func(r chi.Router) {
		r.Post("/run", handlers.Optimize)
		r.Post("/estimate", handlers.Estimate)
		r.Post("/results", handlers.Results)
		r.Post("/page", handlers.Paginate)
	})

	return nil
}
