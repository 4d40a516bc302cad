package exporter

import (
	"github.com/spf13/cobra"

	"github.com/deye-exporter/pkg/config"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "deye-exporter",
		Short:         "Prometheus exporter for Deye hybrid inverters (Solarman V5 / Modbus)",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfigWithCli(cmd)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultConfigFile, "INI 配置文件路径")
	root.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, ".env 文件路径（不存在时忽略）")
	initLogFlags(root)

	root.AddCommand(newRegistersCmd())
	return root
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
