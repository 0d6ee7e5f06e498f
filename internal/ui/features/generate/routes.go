// Package generate provides the query authoring view: prompt, generated
// query, cost estimate, execution and results.
package generate

import (
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
)

// SetupRoutes configures routes for the generate feature.
func SetupRoutes(router chi.Router, env *common.Env) error {
	handlers := NewHandlers(env)

	router.Get("/generate", handlers.GeneratePage)
	router.Get("/generate/download/{file}", handlers.Download)

	router.Route("/generate/actions", func(r chi.Router) {
		r.Post("/new", handlers.NewPrompt)
		r.Post("/run", handlers.Generate)
		r.Post("/edit", handlers.Edit)
		r.Post("/estimate", handlers.Estimate)
		r.Post("/execute", handlers.Execute)
		r.Post("/dismiss", handlers.Dismiss)
		r.Post("/unit", handlers.Unit)
		r.Post("/page", handlers.Paginate)
	})

	return nil
}
