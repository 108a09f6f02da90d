package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/magdyamr542/gindev/config"
	"github.com/magdyamr542/gindev/portkill"
)

var killPortCmd = &cobra.Command{
	Use:   "kill-port [port...]",
	Short: "Terminate the processes listening on the given TCP ports",
	Long: `Terminate the processes listening on the given TCP ports.

With --from-config the ginPort and nuxtPort of the server config are added.

Examples:
  gindev kill-port 8080
  gindev kill-port --from-config
  gindev kill-port 3000 8080 --from-config`,
	RunE: runKillPort,
}

func init() {
	rootCmd.AddCommand(killPortCmd)

	killPortCmd.Flags().Bool("from-config", false, "also free ginPort and nuxtPort from the server config")
	viper.BindPFlag("from-config", killPortCmd.Flags().Lookup("from-config"))
}

func runKillPort(cmd *cobra.Command, args []string) error {
	ports, err := parsePorts(args)
	if err != nil {
		return err
	}

	logger := newLogger(logLevel(""))

	if viper.GetBool("from-config") {
		dir, err := projectDir()
		if err != nil {
			return fmt.Errorf("resolve project dir: %w", err)
		}
		serverCfg, err := config.LoadServerConfig(resolve(dir, viper.GetString("server-config")))
		if err != nil {
			logger.Warn("server config not usable", "error", err)
		}
		ports = append(ports, serverCfg.GinPort, serverCfg.NuxtPort)
	}

	if len(ports) == 0 {
		return errors.New("no ports given")
	}

	killed := portkill.KillPorts(portkill.New(logger.Named("portkill")), ports...)
	logger.Info("done", "killed", len(killed))
	return nil
}

func parsePorts(args []string) ([]int, error) {
	ports := make([]int, 0, len(args))
	for _, arg := range args {
		p, err := strconv.Atoi(arg)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("invalid port %q", arg)
		}
		ports = append(ports, p)
	}
	return ports, nil
}
