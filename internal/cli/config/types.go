// Package config provides configuration management for the querydesk CLI.
//
// Values are layered from built-in defaults, a querydesk.yaml file,
// QUERYDESK_ environment variables and explicitly set flags, in that order.
package config

import (
	"time"

	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/authoring"
)

// APIConfig locates the analytics backend.
type APIConfig struct {
	BaseURL     string        `koanf:"base_url"`
	InsightsURL string        `koanf:"insights_url"`
	Timeout     time.Duration `koanf:"timeout"`
	Token       string        `koanf:"token"`
	LLMType     string        `koanf:"llm_type"`
}

// LimitsConfig holds the client-side thresholds applied to estimates.
type LimitsConfig struct {
	CostLimitUSD       float64       `koanf:"cost_limit_usd"`
	BytesPerSecond     float64       `koanf:"bytes_per_second"`
	TimeoutRiskSeconds float64       `koanf:"timeout_risk_seconds"`
	ExecuteTimeout     time.Duration `koanf:"execute_timeout"`
}

// Limits converts the config to the authoring thresholds.
func (l LimitsConfig) Limits() authoring.Limits {
	return authoring.Limits{
		CostLimitUSD:       l.CostLimitUSD,
		BytesPerSecond:     l.BytesPerSecond,
		TimeoutRiskSeconds: l.TimeoutRiskSeconds,
		ExecuteTimeout:     l.ExecuteTimeout,
	}
}

// CatalogConfig scopes the catalog editor.
type CatalogConfig struct {
	Market   string `koanf:"market"`
	Timezone string `koanf:"timezone"`
}

// Location resolves Timezone, falling back to the local zone.
func (c CatalogConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// UIConfig holds configuration for the console server.
type UIConfig struct {
	Port          int           `koanf:"port"`
	AutoOpen      bool          `koanf:"auto_open"`
	Watch         bool          `koanf:"watch"`
	SessionSecret string        `koanf:"session_secret"`
	LoginURL      string        `koanf:"login_url"`
	StateTTL      time.Duration `koanf:"state_ttl"`
	PageSizes     []int         `koanf:"page_sizes"`
}

// Config holds all CLI configuration options.
type Config struct {
	API          APIConfig     `koanf:"api"`
	Market       string        `koanf:"market"`
	Projects     []string      `koanf:"projects"`
	Project      string        `koanf:"project"`
	Catalog      CatalogConfig `koanf:"catalog"`
	Limits       LimitsConfig  `koanf:"limits"`
	UI           UIConfig      `koanf:"ui"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`
}

// AppDefaults is the app context a new browser or CLI run starts with.
func (c *Config) AppDefaults() appctx.Defaults {
	project := c.Project
	if project == "" && len(c.Projects) > 0 {
		project = c.Projects[0]
	}
	return appctx.Defaults{Market: c.Market, Project: project}
}

// App returns the app context used by one-shot CLI commands.
func (c *Config) App() appctx.Context {
	d := c.AppDefaults()
	return appctx.Context{Market: d.Market, ProjectName: d.Project}
}

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:8000"
	DefaultTimeout       = 60 * time.Second
	DefaultLLMType       = "openai"
	DefaultMarket        = "US"
	DefaultCatalogMarket = "ALL"
	DefaultPort          = 8765
	DefaultLoginURL      = "/login"
	DefaultStateTTL      = 2 * time.Hour
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultSessionSecret = "querydesk-dev-secret-change-in-production" //nolint:gosec
)

// DefaultPageSizes are the sizes offered by console pagers.
var DefaultPageSizes = []int{5, 10, 25}

// defaults returns the flat key map loaded before any other source.
func defaults() map[string]any {
	l := authoring.DefaultLimits()
	return map[string]any{
		"api.base_url":                DefaultBaseURL,
		"api.insights_url":            "",
		"api.timeout":                 DefaultTimeout.String(),
		"api.token":                   "",
		"api.llm_type":                DefaultLLMType,
		"market":                      DefaultMarket,
		"projects":                    []string{},
		"project":                     "",
		"catalog.market":              DefaultCatalogMarket,
		"catalog.timezone":            "",
		"limits.cost_limit_usd":       l.CostLimitUSD,
		"limits.bytes_per_second":     l.BytesPerSecond,
		"limits.timeout_risk_seconds": l.TimeoutRiskSeconds,
		"limits.execute_timeout":      l.ExecuteTimeout.String(),
		"ui.port":                     DefaultPort,
		"ui.auto_open":                true,
		"ui.watch":                    true,
		"ui.session_secret":           DefaultSessionSecret,
		"ui.login_url":                DefaultLoginURL,
		"ui.state_ttl":                DefaultStateTTL.String(),
		"ui.page_sizes":               DefaultPageSizes,
		"verbose":                     false,
		"output":                      DefaultOutput,
	}
}
