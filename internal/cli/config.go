package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thruflo/conductor/internal/config"
	"github.com/thruflo/conductor/internal/workflow"
)

var (
	configInitPath  string
	configInitForce bool

	projectName        string
	projectDescription string
	projectModel       string
	projectQuestions   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage client and project configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default conductor.yaml",
	Long: `Writes a commented conductor.yaml with the default settings.

Example:
  conductor config init
  conductor config init --path ./conductor.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective client configuration",
	Long: `Prints the configuration after merging defaults, the config file,
CONDUCTOR_* environment variables and flags. The auth token is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "Show or update the project form saved on the backend",
	Long: `Without flags, prints the project configuration saved on the backend.
With flags, updates those fields and saves the form.

Example:
  conductor config project
  conductor config project --name "Atlas" --description "Map every office"`,
	Args: cobra.NoArgs,
	RunE: runConfigProject,
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "Where to write the file (default: ~/.config/conductor/conductor.yaml)")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")

	configProjectCmd.Flags().StringVar(&projectName, "name", "", "Project name")
	configProjectCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")
	configProjectCmd.Flags().StringVar(&projectModel, "model", "", "Default model")
	configProjectCmd.Flags().BoolVar(&projectQuestions, "planning-questions", true, "Let the planner ask questions")

	configCmd.AddCommand(configInitCmd, configShowCmd, configProjectCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configInitPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()
	if cfg.Server.AuthToken != "" {
		cfg.Server.AuthToken = maskToken(cfg.Server.AuthToken)
	}
	return writeYAML(cmd, cfg)
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:2] + strings.Repeat("*", len(token)-4) + token[len(token)-2:]
}

func runConfigProject(cmd *cobra.Command, _ []string) error {
	sess, err := startSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	flags := cmd.Flags()
	changed := false
	sess.UpdateConfig(func(cfg *workflow.ProjectConfig) {
		if flags.Changed("name") {
			cfg.ProjectName = strings.TrimSpace(projectName)
			changed = true
		}
		if flags.Changed("description") {
			cfg.ProjectDescription = strings.TrimSpace(projectDescription)
			changed = true
		}
		if flags.Changed("model") {
			cfg.DefaultModel = strings.TrimSpace(projectModel)
			changed = true
		}
		if flags.Changed("planning-questions") {
			cfg.AllowPlanningQuestions = projectQuestions
			changed = true
		}
	})

	if changed {
		if err := sess.SaveConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}
	}
	return writeYAML(cmd, sess.View().Config)
}

func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
