// =============================================================================
// FormFlow 主入口
// =============================================================================
// 完整服务入口点，包含 HTTP 服务、健康检查、Prometheus 指标与批量 CLI
//
// 使用方法:
//
//	formflow serve                            # 启动服务
//	formflow serve --config config.yaml       # 指定配置文件（支持日志级别热更新）
//	formflow optimize -f a.json -f b.json     # 离线优化一个或多个请求文件
//	formflow version                          # 显示版本信息
//	formflow health --addr http://localhost:8080
// =============================================================================

// @title FormFlow API
// @version 1.0.0
// @description Suggests a question order for a form from its previously collected responses.
// @host localhost:8080
// @BasePath /
// @schemes http https

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// rootOptions 持久化 flag
type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd 构建命令树；out 为结果输出位置，便于测试
func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "formflow",
		Short: "FormFlow - form question sequence optimizer",
		Long: `FormFlow analyzes previously collected responses to a form and asks a
language model for a question order expected to improve completion rates.

Requests and model replies are validated against fixed schemas; a failure on
either side is reported as a validation error tagged "request" or "reply".`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (YAML)")

	root.AddCommand(
		newServeCmd(opts),
		newOptimizeCmd(opts),
		newVersionCmd(),
		newHealthCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "FormFlow %s\n", Version)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
		},
	}
}
