package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/cli/config"
	"github.com/leapstack-labs/querydesk/internal/cli/output"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Client   *api.Client
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an API client and renderer.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Client:   newClient(cfg, logger, nil),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

// getConfig returns the current configuration, loading defaults when no
// command has loaded one yet.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return config.Default()
	}
	return cfg
}

func newClient(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) *api.Client {
	var metrics *api.Metrics
	if reg != nil {
		metrics = api.NewMetrics(reg)
	}
	return api.New(api.Config{
		BaseURL:     cfg.API.BaseURL,
		InsightsURL: cfg.API.InsightsURL,
		Token:       cfg.API.Token,
		LLMType:     cfg.API.LLMType,
		Timeout:     cfg.API.Timeout,
		Logger:      logger,
		Metrics:     metrics,
	})
}

// readQuery takes SQL from the arguments, or from stdin when the only
// argument is "-" or there are none.
func readQuery(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && f == os.Stdin {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("no query given: pass SQL as an argument or pipe it on stdin")
		}
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read query: %w", err)
	}
	q := strings.TrimSpace(string(b))
	if q == "" {
		return "", fmt.Errorf("no query given: pass SQL as an argument or pipe it on stdin")
	}
	return q, nil
}

// commandError carries the user-facing text of a gateway error.
type commandError struct {
	msg string
	err error
}

func (e *commandError) Error() string { return e.msg }
func (e *commandError) Unwrap() error { return e.err }

// failure turns a gateway error into the message the console would show.
func failure(err error, fallback string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrUnauthorized) {
		return &commandError{msg: "the backend rejected the credentials; check api.token", err: err}
	}
	msg := api.Message(err, fallback)
	if hints := api.Suggestions(err); len(hints) > 0 {
		msg += "\nSuggestions:\n  - " + strings.Join(hints, "\n  - ")
	}
	return &commandError{msg: msg, err: err}
}
