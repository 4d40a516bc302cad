package exporter

import (
	"github.com/spf13/cobra"

	"github.com/deye-exporter/pkg/config"
)

var defaultCfg = config.NewDefaultConfig()

// initLogFlags 日志相关 flag，只有显式传入时才覆盖环境变量和配置文件
func initLogFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	logPrefix := "log."

	f.String(
		logPrefix+"level",
		defaultCfg.Log.Level,
		"-> Log level [debug,info,warn,error] | 日志级别")
	f.String(
		logPrefix+"format",
		defaultCfg.Log.Format,
		"-> Stdout log format [console,json] | 日志格式")
	f.String(
		logPrefix+"path",
		defaultCfg.Log.Path,
		"-> Rotating log file directory, empty for stdout only | 日志路径")
}
