// Package shell provides the console frame: the landing redirect, the
// project selector, the per-session update stream and the signed-out page.
package shell

import (
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
)

// SetupRoutes configures routes for the shell feature.
func SetupRoutes(router chi.Router, env *common.Env) error {
	handlers := NewHandlers(env)

	router.Get("/", handlers.Home)
	router.Get("/login", handlers.LoginPage)
	router.Get("/updates", handlers.Updates)
	router.Post("/project", handlers.SelectProject)
	router.NotFound(handlers.Home)

	return nil
}
