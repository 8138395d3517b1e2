// Package main is the entry point of the CRM console. It serves the browser
// BFF and offers an operator CLI over the same core packages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pitabwire/crmconsole/internal/observability"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath string
	outputFlag string
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "CRM admin console",
	Long: `CRM admin console

Serves the backend-for-frontend used by the browser console and provides
an operator CLI for complaints and leads.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	observability.Version = version
	observability.Commit = commit

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "output format: table or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd, navCmd)
	rootCmd.AddCommand(complaintsCmd, leadsCmd)
	rootCmd.AddCommand(browseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describeError(err))
		os.Exit(1)
	}
}
