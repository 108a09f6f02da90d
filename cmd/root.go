// Package cmd provides the gindev command line.
//
// Flags can also be set through the environment with the GINDEV_ prefix,
// e.g. GINDEV_LOG_LEVEL=debug or GINDEV_PROJECT=/path/to/app.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LogName tags every log line of the dev loop.
const LogName = "go-watch"

var rootCmd = &cobra.Command{
	Use:   "gindev",
	Short: "Development loop for Gin backends",
	Long: `gindev runs the backend, watches the project for source changes and
restarts the backend once per burst of changes. Before every start the
backend's port is freed from leftovers of previous runs.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("project", "p", "", "project root (default is the current directory)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func initConfig() {
	viper.SetEnvPrefix("GINDEV")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func newLogger(level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   LogName,
		Level:  hclog.LevelFromString(level),
		Output: os.Stderr,
		Color:  hclog.AutoColor,
	})
}

// logLevel prefers an explicit flag or env value over fallback.
func logLevel(fallback string) string {
	if viper.IsSet("log-level") || fallback == "" {
		return viper.GetString("log-level")
	}
	return fallback
}

func projectDir() (string, error) {
	dir := viper.GetString("project")
	if dir == "" {
		return os.Getwd()
	}
	return filepath.Abs(dir)
}

// packageDir is where the gindev binary lives; install-level watch configs are searched next to it.
func packageDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}
