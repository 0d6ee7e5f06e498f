// Package ui serves the QueryDesk browser console.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/authoring"
	"github.com/leapstack-labs/querydesk/internal/catalog"
	"github.com/leapstack-labs/querydesk/internal/recommend"
	"github.com/leapstack-labs/querydesk/internal/ui/features/common"
	"github.com/leapstack-labs/querydesk/internal/ui/notifier"
	"github.com/leapstack-labs/querydesk/internal/ui/router"
	"github.com/leapstack-labs/querydesk/internal/ui/viewstate"
)

// ReloadFunc re-reads the limits from the config file.
type ReloadFunc func() (authoring.Limits, error)

// Config holds configuration for the console server.
type Config struct {
	Client   *api.Client
	Limits   *authoring.LimitsHolder
	Defaults appctx.Defaults
	Projects []string

	PageSizes []int
	Catalog   catalog.Options
	Registry  *recommend.Registry

	Port          int
	SessionSecret string
	StateTTL      time.Duration
	LoginURL      string
	Dev           bool

	// Metrics receives the API client and session collectors. Nil creates
	// a private registry.
	Metrics *prometheus.Registry

	// ConfigFile is watched when Reload is set; a write reloads the limits
	// and refreshes every open console.
	ConfigFile string
	Reload     ReloadFunc

	Logger *slog.Logger
}

// Server is the console server.
type Server struct {
	env        *common.Env
	metrics    *prometheus.Registry
	port       int
	configFile string
	reload     ReloadFunc
	logger     *slog.Logger
	notifier   *notifier.Notifier
}

// NewServer creates a new console server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limits := cfg.Limits
	if limits == nil {
		limits = authoring.NewLimitsHolder(authoring.DefaultLimits())
	}
	reg := cfg.Metrics
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	views := viewstate.New(viewstate.Deps{
		Client:   cfg.Client,
		Limits:   limits,
		Registry: cfg.Registry,
		Catalog:  cfg.Catalog,
		Logger:   logger,
	}, cfg.StateTTL)

	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "querydesk",
		Subsystem: "console",
		Name:      "sessions",
		Help:      "Browser sessions with live view state.",
	}, func() float64 { return float64(views.Len()) })

	notify := notifier.New()
	env := &common.Env{
		Sessions:  appctx.NewStore(appctx.NewCookieStore(cfg.SessionSecret), cfg.Defaults),
		Views:     views,
		Notifier:  notify,
		Limits:    limits,
		Projects:  cfg.Projects,
		PageSizes: cfg.PageSizes,
		LoginURL:  cfg.LoginURL,
		IsDev:     cfg.Dev,
		Logger:    logger,
	}

	return &Server{
		env:        env,
		metrics:    reg,
		port:       cfg.Port,
		configFile: cfg.ConfigFile,
		reload:     cfg.Reload,
		logger:     logger,
		notifier:   notify,
	}
}

// Handler builds the console's HTTP handler.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{Registry: s.metrics}))

	if err := router.SetupRoutes(r, s.env); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the console server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting console", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.configFile != "" && s.reload != nil {
		eg.Go(func() error {
			return s.watchConfig(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down console...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// watchConfig reloads the limits whenever the config file changes. The
// directory is watched because editors often replace the file on save.
func (s *Server) watchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	file := filepath.Clean(s.configFile)
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		s.logger.Error("failed to watch config", "file", file, "error", err)
		return nil
	}

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, s.reloadConfig)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// reloadConfig applies new limits and refreshes every open console. A bad
// file keeps the current limits.
func (s *Server) reloadConfig() {
	limits, err := s.reload()
	if err != nil {
		s.logger.Error("config reload failed", "file", s.configFile, "error", err)
		return
	}
	s.env.Limits.Store(limits)
	s.logger.Info("config reloaded", "cost_limit_usd", limits.CostLimitUSD)
	s.notifier.Broadcast()
}
