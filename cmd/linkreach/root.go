package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"linkreach/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile   string
	logLevel     string
	storePath    string
	sessionToken string
	noColor      bool
	quiet        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkreach",
	Short: "Automated LinkedIn outreach campaigns",
	Long: `LinkReach runs LinkedIn outreach campaigns from the command line.

Features:
  - Connection request and direct message campaigns with templated notes
  - Follower scraping with resume and CSV export
  - Daily action limits per campaign
  - Secure session storage using the system keychain
  - Scheduled campaign runs`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet && logLevel == "" {
			logLevel = "error"
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.linkreach.yaml or ~/.config/linkreach/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path of the campaign database")
	rootCmd.PersistentFlags().StringVar(&sessionToken, "session-token", "", "LinkedIn li_at session token (prefer 'linkreach auth connect')")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")

	rootCmd.SetVersionTemplate(`LinkReach {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// exitWithError prints msg and err and exits
func exitWithError(msg string, err error) {
	ui.PrintError(msg, err)
	os.Exit(1)
}
