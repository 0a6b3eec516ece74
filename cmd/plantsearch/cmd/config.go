package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/plantsearch/configs"
	"github.com/Aman-CERP/plantsearch/internal/config"
	"github.com/Aman-CERP/plantsearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the plantsearch configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/plantsearch/config.yaml)
  3. Project config (.plantsearch.yaml)
  4. .env in the project directory
  5. Environment variables (PLANTSEARCH_*)`,
		Example: `  # Create .plantsearch.yaml in the current directory
  plantsearch config init

  # Show the effective configuration
  plantsearch config show`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file from the template",
		Long: `Write the commented configuration template to .plantsearch.yaml in the
project directory, or to the user config file with --user. An existing
file is backed up first; the three most recent backups are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := filepath.Join(projectDir, config.ProjectConfigName)
			if user {
				path = config.GetUserConfigPath()
			}

			backup, err := config.WriteTemplate(path, configs.ProjectConfigTemplate)
			if err != nil {
				return err
			}

			out := output.NewStyled(cmd.OutOrStdout(), false)
			out.Successf("Wrote %s", path)
			if backup != "" {
				out.Statusf("", "Previous file saved as %s", backup)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			out.KeyValue("user", config.GetUserConfigPath(), 8)
			out.KeyValue("project", filepath.Join(projectDir, config.ProjectConfigName), 8)
			return nil
		},
	}
}
