package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/magdyamr542/gindev/config"
	"github.com/magdyamr542/gindev/execer"
	"github.com/magdyamr542/gindev/portkill"
	"github.com/magdyamr542/gindev/scheduler"
	"github.com/magdyamr542/gindev/supervisor"
)

var devCmd = &cobra.Command{
	Use:     "dev",
	Aliases: []string{"dev:go", "d"},
	Short:   "Run the backend and restart it on source changes",
	Long: `Run the backend and restart it whenever a watched source file changes.

Which files are watched is configured by an optional .go-watch.json, looked up
in $NUXT_GIN_WATCH_CONFIG, node_modules/nuxt-gin-tools/, the project root and
next to the gindev installation, in that order.

Examples:
  gindev dev
  gindev dev --run-config dev.yaml
  gindev dev --debounce 300ms --kill-port=false`,
	RunE: runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)

	devCmd.Flags().String("server-config", config.ServerConfigName, "server config providing ginPort, relative to the project")
	devCmd.Flags().String("run-config", "", "YAML run profile with before/main/after commands")
	devCmd.Flags().Duration("debounce", scheduler.DefaultDebounce, "quiet period before a restart")
	devCmd.Flags().Duration("shutdown-timeout", execer.DefaultShutdownTimeout, "graceful stop budget before the backend is killed")
	devCmd.Flags().Bool("kill-port", true, "free ginPort once before starting (also needs killPortBeforeDevelop)")
	viper.BindPFlag("server-config", devCmd.Flags().Lookup("server-config"))
	viper.BindPFlag("run-config", devCmd.Flags().Lookup("run-config"))
	viper.BindPFlag("debounce", devCmd.Flags().Lookup("debounce"))
	viper.BindPFlag("shutdown-timeout", devCmd.Flags().Lookup("shutdown-timeout"))
	viper.BindPFlag("kill-port", devCmd.Flags().Lookup("kill-port"))
}

func runDev(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	runCfg := config.DefaultRunConfig(dir)
	if path := viper.GetString("run-config"); path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		runCfg, err = config.ParseRunConfig(path, dir)
		if err != nil {
			return fmt.Errorf("load run config: %w", err)
		}
	}

	logger := newLogger(logLevel(runCfg.LogLevel))

	serverCfgPath := resolve(dir, viper.GetString("server-config"))
	serverCfg, err := config.LoadServerConfig(serverCfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no server config", "path", serverCfgPath)
		} else {
			logger.Warn("invalid server config, port reclamation disabled", "path", serverCfgPath, "error", err)
		}
	}
	port, err := serverCfg.TrackedPort()
	if err != nil {
		logger.Debug("port reclamation disabled", "reason", err)
	}

	watchCfg, used := config.LoadWatchConfig(config.WatchConfigCandidates(dir, packageDir()), logger)
	if used != "" {
		logger.Info("using watch config", "path", used)
	}

	if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(watchCfg.TmpDir)), 0o755); err != nil {
		logger.Warn("create tmp dir", "dir", watchCfg.TmpDir, "error", err)
	}

	reclaimer := portkill.New(logger.Named("portkill"), portkill.WithLabel("ginPort"))
	if serverCfg.KillPortBeforeDevelop && viper.GetBool("kill-port") {
		portkill.KillPorts(reclaimer, port)
	}

	sup := supervisor.New(supervisor.Options{
		ProjectDir:  dir,
		Watch:       watchCfg,
		Run:         runCfg,
		Port:        port,
		Debounce:    viper.GetDuration("debounce"),
		StopTimeout: viper.GetDuration("shutdown-timeout"),
		Reclaimer:   reclaimer,
		Logger:      logger,
	})
	return sup.Run(cmd.Context())
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
