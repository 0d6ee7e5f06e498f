// Package recommendations provides the rule recommendation report, its
// per-rule query drill-down and the deep-linkable query details page.
package recommendations

import (
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
)

// SetupRoutes configures routes for the recommendations feature.
func SetupRoutes(router chi.Router, env *common.Env) error {
	handlers := NewHandlers(env)

	router.Get("/recommendations", handlers.RecommendationsPage)
	router.Route("/recommendations/actions", func(r chi.Router) {
		r.Post("/refresh", handlers.Refresh)
		r.Post("/page", handlers.Paginate)
		r.Post("/apply/close", handlers.CloseApply)
		r.Post("/apply/{ruleId}", handlers.OpenApply)
		r.Post("/rule/page", handlers.DrillPage)
		r.Post("/rule/close", handlers.CloseDrill)
		r.Post("/rule/{ruleId}", handlers.OpenDrill)
	})

	router.Get("/query-details/{ruleId}/{recommendation}/{ruleTitle}", handlers.DetailsPage)
	router.Post("/query-details/actions/page", handlers.DetailsPaginate)

	return nil
}
