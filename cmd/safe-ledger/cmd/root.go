package cmd

import (
	"fmt"
	"os"

	"safe-ledger/pkg/config"
	"safe-ledger/pkg/errno"
	"safe-ledger/pkg/logger"
	"safe-ledger/pkg/monitor"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile     string
	envFlag     string
	metricsFile string
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "safe-ledger",
	Short: "Safe 多签交易批处理工具",
	Long: `把 foundry 的 dry-run 广播文件扩展为 Safe 多签待签名文档，
收集各签名人的签名并在达到阈值后生成可提交的交易。

流程: extend -> sign (每个签名人) -> collate -> flatten`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cfgFile); err != nil {
			return errno.Wrap(errno.ErrConfig, err, "load config")
		}
		if envFlag != "" {
			config.Global.App.Env = envFlag
		}
		if metricsFile != "" {
			config.Global.Metrics.File = metricsFile
		}
		if err := logger.Init(config.Global.App.Env, config.Global.App.LogLevel); err != nil {
			return errno.Wrap(errno.ErrConfig, err, "init logger")
		}
		if config.Global.Metrics.File != "" {
			monitor.InitPipelineMetrics()
		}
		return nil
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	err := rootCmd.Execute()

	// 失败的运行同样写出指标，便于排查被丢弃的签名
	if werr := monitor.WriteFile(config.Global.Metrics.File); werr != nil {
		logger.Warn("write metrics failed", zap.Error(werr))
	}
	logger.Sync()

	if err != nil {
		code, msg := errno.Decode(err)
		fmt.Fprintf(os.Stderr, "Error [%d]: %s\n", code, msg)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认查找 ./config.yaml 或 ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "运行环境: development | production (覆盖 app.env)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "把 Prometheus 指标写入该文件 (textfile 格式)")
}
