package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/querydesk/internal/authoring"
	"github.com/leapstack-labs/querydesk/internal/cli/config"
	"github.com/leapstack-labs/querydesk/internal/recommend"
	"github.com/leapstack-labs/querydesk/internal/ui"
)

// UIOptions holds options for the ui command.
type UIOptions struct {
	Port      int
	NoBrowser bool
	Watch     bool
	Dev       bool
}

// NewUICommand creates the ui command.
func NewUICommand() *cobra.Command {
	opts := &UIOptions{}

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Start the QueryDesk console",
		Long: `Start a local web server providing the QueryDesk console.

The console provides:
- Query authoring with cost estimation and guarded execution
- Query optimization
- Rule-based recommendations with drill-down
- Table and column catalog editing

With --watch, edits to the limits in the config file apply without a restart.
Prometheus metrics are served at /metrics.`,
		Example: `  # Start the console on the default port
  querydesk ui

  # Start on a custom port
  querydesk ui --port 3000

  # Start without opening a browser
  querydesk ui --no-browser`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, fmt.Sprintf("Port to serve on (default: %d)", config.DefaultPort))
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload limits when the config file changes")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Serve assets for development")
	_ = cmd.Flags().MarkHidden("dev")

	return cmd
}

func runUI(cmd *cobra.Command, opts *UIOptions) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	uiCfg := cfg.UI

	// CLI flags override config file
	port := uiCfg.Port
	if opts.Port != 0 {
		port = opts.Port
	}

	autoOpen := uiCfg.AutoOpen
	if opts.NoBrowser {
		autoOpen = false
	}

	watch := uiCfg.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	if uiCfg.SessionSecret == config.DefaultSessionSecret {
		logger.Warn("using the built-in session secret; set ui.session_secret outside development")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	serverCfg := ui.Config{
		Client:        newClient(cfg, logger, reg),
		Limits:        authoring.NewLimitsHolder(cfg.Limits.Limits()),
		Defaults:      cfg.AppDefaults(),
		Projects:      cfg.Projects,
		PageSizes:     uiCfg.PageSizes,
		Catalog:       catalogConfig(cfg, logger),
		Registry:      recommend.DefaultRegistry(),
		Port:          port,
		SessionSecret: uiCfg.SessionSecret,
		StateTTL:      uiCfg.StateTTL,
		LoginURL:      uiCfg.LoginURL,
		Dev:           opts.Dev,
		Metrics:       reg,
		Logger:        logger,
	}

	if file := config.GetConfigFileUsed(); watch && file != "" {
		serverCfg.ConfigFile = file
		serverCfg.Reload = func() (authoring.Limits, error) {
			l, err := config.ReloadLimits(file)
			if err != nil {
				return authoring.Limits{}, err
			}
			return l.Limits(), nil
		}
	} else if watch {
		logger.Warn("no config file to watch")
	}

	server := ui.NewServer(serverCfg)

	url := fmt.Sprintf("http://localhost:%d", port)
	if autoOpen {
		go openBrowser(url)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Starting QueryDesk console on %s\n", url)
	_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop")

	return server.Serve(cmd.Context())
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
