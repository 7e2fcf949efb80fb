package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"linkreach/internal/runner"
	"linkreach/pkg/auth"
	"linkreach/pkg/config"
	"linkreach/pkg/export"
	"linkreach/pkg/ui"
)

var configForce bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage LinkReach configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (LINKREACH_*) and .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file with every option at its default value.

The file is created at ~/.config/linkreach/config.yaml unless a different
path is given with --config.`,
	Run: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources.

The session token is masked.`,
	Run: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value ranges
  - The campaign schedule expression
  - The export format`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		ui.PrintError("Configuration file already exists", path)
		fmt.Println("\nTo overwrite it, run again with --force")
		os.Exit(1)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		exitWithError("Failed to write configuration", err)
	}
	ui.PrintSuccess("Configuration written to " + path)
	fmt.Println("\nStore your LinkedIn session with: linkreach auth connect")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(nil)
	if err != nil {
		exitWithError("Failed to load configuration", err)
	}
	if cfg.LinkedIn.SessionToken != "" {
		cfg.LinkedIn.SessionToken = auth.MaskToken(cfg.LinkedIn.SessionToken)
	}

	if path := configPath(); path != "" {
		ui.PrintInfo("File", path)
	} else {
		ui.PrintInfo("File", "none, using defaults and environment")
	}
	fmt.Println()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		exitWithError("Failed to render configuration", err)
	}
	fmt.Print(string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration is invalid")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Println("  - " + line)
		}
		os.Exit(1)
	}

	var problems []error
	if err := runner.ValidateSchedule(cfg.Engine.Schedule); err != nil {
		problems = append(problems, err)
	}
	if _, err := export.ParseFormat(cfg.Export.Format); err != nil {
		problems = append(problems, err)
	}
	if err := errors.Join(problems...); err != nil {
		exitWithError("Configuration is invalid", err)
	}

	ui.PrintSuccess("Configuration is valid")
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.FindConfigFile()
}
