package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/querydesk/internal/cli/config"
	"github.com/leapstack-labs/querydesk/internal/cli/output"
)

const configFileName = "querydesk.yaml"

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var projects []string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a querydesk.yaml configuration file",
		Long: `Write a querydesk.yaml with the backend address, market, projects and
cost limits. Values given with --base-url, --market and --project are used in
place of the defaults.`,
		Example: `  # Initialize in current directory
  querydesk init

  # Point at a backend and list the projects
  querydesk init --base-url https://nl2sql.internal --projects alpha,beta

  # Force overwrite existing config
  querydesk init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			return runInit(r, cfg, dir, projects, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().StringSliceVar(&projects, "projects", nil, "Projects offered by the project selector")

	return cmd
}

func runInit(r *output.Renderer, cfg *config.Config, dir string, projects []string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configFileName)
	}

	if len(projects) == 0 {
		projects = slices.Clone(cfg.Projects)
	}
	if cfg.Project != "" && !slices.Contains(projects, cfg.Project) {
		projects = append(projects, cfg.Project)
	}

	data, err := renderInitConfig(cfg, projects)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	r.Success("Created " + configPath)
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Set api.token, or export QUERYDESK_API__TOKEN")
	r.Println("  2. Run 'querydesk generate \"<question>\"' to try the backend")
	r.Println("  3. Run 'querydesk ui' to open the console")
	return nil
}

// renderInitConfig builds the file as a node tree so each section keeps a
// comment.
func renderInitConfig(cfg *config.Config, projects []string) ([]byte, error) {
	l := cfg.Limits
	project := cfg.Project
	if project == "" && len(projects) > 0 {
		project = projects[0]
	}

	doc := mapping(
		section("api", "Backend connection. ${VAR} references in token are expanded.", mapping(
			pair("base_url", scalar(cfg.API.BaseURL)),
			pair("insights_url", scalar(cfg.API.InsightsURL)),
			pair("token", scalar(cfg.API.Token)),
			pair("llm_type", scalar(cfg.API.LLMType)),
			pair("timeout", scalar(cfg.API.Timeout.String())),
		)),
		section("market", "Market used by generate, estimate and execute.", scalar(cfg.Market)),
		section("projects", "Projects offered for recommendations.", sequence(projects)),
		pair("project", scalar(project)),
		section("limits", "Cost guard applied before execution.", mapping(
			pair("cost_limit_usd", number(l.CostLimitUSD)),
			pair("bytes_per_second", number(l.BytesPerSecond)),
			pair("timeout_risk_seconds", number(l.TimeoutRiskSeconds)),
			pair("execute_timeout", scalar(l.ExecuteTimeout.String())),
		)),
		section("catalog", "Market for catalog reads and writes, and the audit time zone.", mapping(
			pair("market", scalar(cfg.Catalog.Market)),
			pair("timezone", scalar(cfg.Catalog.Timezone)),
		)),
		section("ui", "", mapping(
			pair("port", number(float64(cfg.UI.Port))),
			pair("watch", scalar(strconv.FormatBool(cfg.UI.Watch))),
		)),
	)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type yamlPair [2]*yaml.Node

func pair(key string, value *yaml.Node) yamlPair {
	return yamlPair{{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value}
}

func section(key, comment string, value *yaml.Node) yamlPair {
	p := pair(key, value)
	p[0].HeadComment = comment
	return p
}

func mapping(pairs ...yamlPair) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range pairs {
		n.Content = append(n.Content, p[0], p[1])
	}
	return n
}

func scalar(v string) *yaml.Node {
	switch v {
	case "true", "false":
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func number(v float64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(v, 'f', -1, 64)}
}

func sequence(values []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, v := range values {
		n.Content = append(n.Content, scalar(v))
	}
	return n
}
