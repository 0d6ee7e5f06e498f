// Package router sets up HTTP routes for the console server.
package router

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	catalogFeature "github.com/leapstack-labs/querydesk/internal/ui/features/catalog"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
	generateFeature "github.com/leapstack-labs/querydesk/internal/ui/features/generate"
	optimizerFeature "github.com/leapstack-labs/querydesk/internal/ui/features/optimizer"
	recommendationsFeature "github.com/leapstack-labs/querydesk/internal/ui/features/recommendations"
	shellFeature "github.com/leapstack-labs/querydesk/internal/ui/features/shell"
	"github.com/leapstack-labs/querydesk/internal/ui/resources"
)

// SetupRoutes configures all routes for the console server.
func SetupRoutes(router chi.Router, env *common.Env) error {
	// Hot reload endpoint for dev mode
	if env.IsDev {
		setupReload(router)
	}

	// Static assets
	router.Handle("/static/*", resources.Handler())

	// Feature routes
	for _, setup := range []func(chi.Router, *common.Env) error{
		shellFeature.SetupRoutes,
		generateFeature.SetupRoutes,
		optimizerFeature.SetupRoutes,
		recommendationsFeature.SetupRoutes,
		catalogFeature.SetupRoutes,
	} {
		if err := setup(router, env); err != nil {
			return err
		}
	}

	return nil
}

func setupReload(router chi.Router) {
	reloadChan := make(chan struct{}, 1)
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reload)
		select {
		case <-reloadChan:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case reloadChan <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
