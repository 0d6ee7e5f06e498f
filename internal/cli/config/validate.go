package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidOutputs are the accepted values of the output key.
var ValidOutputs = []string{"auto", "text", "markdown", "json", "csv"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateURL("api.base_url", c.API.BaseURL, true); err != nil {
		return err
	}
	if err := validateURL("api.insights_url", c.API.InsightsURL, false); err != nil {
		return err
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("ui.port %d is out of range", c.UI.Port)
	}
	for _, size := range c.UI.PageSizes {
		if size <= 0 {
			return fmt.Errorf("ui.page_sizes must be positive, got %d", size)
		}
	}
	if c.OutputFormat != "" && !slices.Contains(ValidOutputs, c.OutputFormat) {
		return fmt.Errorf("output must be one of %v, got %q", ValidOutputs, c.OutputFormat)
	}
	if c.Project != "" && len(c.Projects) > 0 && !slices.Contains(c.Projects, c.Project) {
		return fmt.Errorf("project %q is not listed in projects", c.Project)
	}
	return nil
}

// Validate checks that every threshold is positive.
func (l LimitsConfig) Validate() error {
	switch {
	case l.CostLimitUSD <= 0:
		return fmt.Errorf("limits.cost_limit_usd must be positive")
	case l.BytesPerSecond <= 0:
		return fmt.Errorf("limits.bytes_per_second must be positive")
	case l.TimeoutRiskSeconds <= 0:
		return fmt.Errorf("limits.timeout_risk_seconds must be positive")
	case l.ExecuteTimeout <= 0:
		return fmt.Errorf("limits.execute_timeout must be positive")
	}
	return nil
}

func validateURL(key, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", key)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}
