// devapi - Loopback configuration API for network devices
//
// Serves an HTTP API that creates and deletes loopback interfaces over an
// SSH CLI session and lists interface configuration over NETCONF. A global
// dry-run mode returns the generated commands instead of applying them.
//
// Examples:
//
//	devapi serve --config /etc/devapi.yaml
//	devapi serve --dry-run --listen :8080
//	devapi preview create 10 10.0.0.1 255.255.255.255
//	devapi preview delete 10
//	devapi audit list --last 24h --failures
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/devapi/pkg/cli"
	"github.com/newtron-network/devapi/pkg/settings"
	"github.com/newtron-network/devapi/pkg/util"
	"github.com/newtron-network/devapi/pkg/version"
)

var (
	// Global option flags
	configPath string
	verbose    bool
	jsonLogs   bool
	jsonOutput bool

	// Global state
	appSettings *settings.Settings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "devapi",
	Short:             "Loopback configuration API for network devices",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `devapi serves an HTTP API for loopback interface management.

Configuration comes from an optional YAML file (--config) overridden by
NETCONF_* and DEVAPI_* environment variables. Device settings are re-read
on every request.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isVersionOrHelp(cmd) {
			return nil
		}

		var err error
		appSettings, err = settings.Load(configPath)
		if err != nil {
			return err
		}

		return configureLogging(appSettings)
	},
}

// configureLogging applies the log level and format. -v forces debug;
// --json-logs forces JSON output.
func configureLogging(s *settings.Settings) error {
	level := s.Server.LogLevel
	if verbose {
		level = "debug"
	}
	if err := util.SetLogLevel(level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	util.ConfigureFormat(jsonLogs || s.Server.JSONLogs)
	return nil
}

func isVersionOrHelp(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	return false
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose (debug) logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Force JSON log output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output for preview and audit")

	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server:"},
		&cobra.Group{ID: "offline", Title: "Offline Tools:"},
		&cobra.Group{ID: "meta", Title: "Meta:"},
	)

	serveCmd.GroupID = "server"
	rootCmd.AddCommand(serveCmd)

	for _, cmd := range []*cobra.Command{previewCmd, auditCmd} {
		cmd.GroupID = "offline"
		rootCmd.AddCommand(cmd)
	}

	versionCmd.GroupID = "meta"
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion("devapi")
	},
}

func printVersion(tool string) {
	if version.Version == "dev" {
		fmt.Printf("%s dev build (%s)\n", tool, version.Info())
	} else {
		fmt.Printf("%s %s\n", tool, version.Info())
	}
}

func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
