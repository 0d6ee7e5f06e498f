package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/cli/config"
	"github.com/leapstack-labs/querydesk/internal/cli/output"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and backend connectivity",
		Long: `Check the QueryDesk setup and report problems with a health score.

The doctor command checks:
- Configuration (config file, credentials, session secret, time zone)
- Backend (reachability, credentials, recommendation statistics)

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  querydesk doctor

  # Output as JSON
  querydesk doctor --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         SetupSummary  `json:"summary"`
	HealthChecks    []HealthCheck `json:"health_checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
	IssueCount      int           `json:"issue_count"`
}

// SetupSummary describes the configuration in use.
type SetupSummary struct {
	ConfigFile string `json:"config_file"`
	BaseURL    string `json:"base_url"`
	Market     string `json:"market"`
	Project    string `json:"project"`
	Projects   int    `json:"projects"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

// doctorBackend is the subset of the gateway the backend checks call.
type doctorBackend interface {
	GetTables(ctx context.Context) ([]string, error)
	TotalSchemas(ctx context.Context, market string) (int, error)
}

func runDoctor(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	out := buildDoctorOutput(cmd.Context(), cc.Cfg, config.GetConfigFileUsed(), cc.Client)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeText:
		return renderDoctorText(r, out)
	default:
		return renderDoctorMarkdown(r, out)
	}
}

func buildDoctorOutput(ctx context.Context, cfg *config.Config, configFile string, b doctorBackend) *DoctorOutput {
	app := cfg.App()
	checks := append(configChecks(cfg, configFile), backendChecks(ctx, cfg, b)...)

	// Sort health checks by group then by rule ID
	sort.Slice(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].RuleID < checks[j].RuleID
	})

	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}

	return &DoctorOutput{
		Summary: SetupSummary{
			ConfigFile: configFile,
			BaseURL:    cfg.API.BaseURL,
			Market:     app.Market,
			Project:    app.ProjectName,
			Projects:   len(cfg.Projects),
		},
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

func check(id, name, group string) HealthCheck {
	return HealthCheck{RuleID: id, Name: name, Group: group, Status: statusPass}
}

func (c HealthCheck) fail(status string, details ...string) HealthCheck {
	c.Status = status
	c.IssueCount = len(details)
	c.Details = details
	return c
}

func configChecks(cfg *config.Config, configFile string) []HealthCheck {
	const group = "configuration"

	file := check("CF01", "Config file found", group)
	if configFile == "" {
		file = file.fail(statusWarn, "no querydesk.yaml found; built-in defaults are in use")
	}

	token := check("CF02", "API token set", group)
	switch {
	case cfg.API.Token == "":
		token = token.fail(statusWarn, "api.token is empty; requests are sent without credentials")
	case strings.Contains(cfg.API.Token, "${"):
		token = token.fail(statusError, "api.token references an unset environment variable")
	}

	secret := check("CF03", "Session secret changed", group)
	if cfg.UI.SessionSecret == config.DefaultSessionSecret {
		secret = secret.fail(statusWarn, "ui.session_secret is the built-in development value")
	}

	zone := check("CF04", "Catalog time zone valid", group)
	if tz := cfg.Catalog.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			zone = zone.fail(statusWarn, fmt.Sprintf("catalog.timezone %q is unknown; audit times use the local zone", tz))
		}
	}

	projects := check("CF05", "Projects configured", group)
	if len(cfg.Projects) == 0 {
		projects = projects.fail(statusWarn, "projects is empty; recommendations have no project to report on")
	}

	return []HealthCheck{file, token, secret, zone, projects}
}

func backendChecks(ctx context.Context, cfg *config.Config, b doctorBackend) []HealthCheck {
	const group = "backend"

	reach := check("BE01", "Backend reachable", group)
	creds := check("BE02", "Credentials accepted", group)
	stats := check("BE03", "Recommendation statistics available", group)

	_, err := b.GetTables(ctx)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		creds = creds.fail(statusError, "the backend rejected the credentials")
		return []HealthCheck{reach, creds}
	case err != nil:
		reach = reach.fail(statusError, fmt.Sprintf("%s: %s", cfg.API.BaseURL, api.Message(err, err.Error())))
		return []HealthCheck{reach}
	}

	if _, err := b.TotalSchemas(ctx, cfg.App().Market); err != nil {
		stats = stats.fail(statusWarn, api.Message(err, "statistics request failed"))
	}
	return []HealthCheck{reach, creds, stats}
}

// calculateHealthScore computes a health score from 0-100. Errors count
// double.
func calculateHealthScore(checks []HealthCheck) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0
	const basePenalty = 10.0

	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	// Clamp to 0-100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}

		rec := getRecommendation(check.RuleID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}

	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(ruleID string) string {
	switch ruleID {
	case "CF01":
		return "Run 'querydesk init' to create a querydesk.yaml"
	case "CF02":
		return "Set api.token or export QUERYDESK_API__TOKEN"
	case "CF03":
		return "Set ui.session_secret before sharing the console"
	case "CF04":
		return "Use an IANA zone name such as Europe/Berlin for catalog.timezone"
	case "CF05":
		return "List the projects to report on under projects"
	case "BE01":
		return "Check api.base_url and that the backend is running"
	case "BE02":
		return "Refresh the API token"
	case "BE03":
		return "Check that the market has been analyzed by the backend"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("QueryDesk Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	// Setup Summary
	r.Println(styles.Header2.Render("Setup"))
	r.Printf("   Config: %s\n", orDash(out.Summary.ConfigFile))
	r.Printf("   Backend: %s\n", out.Summary.BaseURL)
	r.Printf("   Market: %s | Project: %s | Projects: %d\n", out.Summary.Market, orDash(out.Summary.Project), out.Summary.Projects)
	r.Println("")

	// Health Checks grouped by category
	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.Error.Render("✗")
		}

		r.Println(fmt.Sprintf("   %s %s: %s", icon, check.RuleID, check.Name))
		for _, detail := range check.Details {
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	// Health Score
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# QueryDesk Health Report")
	r.Println("")

	r.Println("## Setup")
	r.Println("")
	r.Printf("- **Config**: %s\n", orDash(out.Summary.ConfigFile))
	r.Printf("- **Backend**: %s\n", out.Summary.BaseURL)
	r.Printf("- **Market**: %s\n", out.Summary.Market)
	r.Printf("- **Project**: %s\n", orDash(out.Summary.Project))
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s\n", strings.ToUpper(check.Status), check.RuleID, check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
