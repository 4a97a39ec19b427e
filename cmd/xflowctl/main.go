// xflowctl 是 xflow 流量准入引擎的命令行工具。
//
// 用法:
//
//	xflowctl <命令> [命令参数]
//
// 命令:
//
//	simulate       按配置构建引擎、限流与熔断规则，以合成流量运行并逐秒打印统计
//	keys build     由各字段拼接资源 ID
//	keys parse     拆解资源 ID
//	check-config   校验配置文件
//
// 退出码:
//
//	0: 成功
//	1: 执行失败（含配置校验失败）
//	2: 参数错误
//
// 示例:
//
//	xflowctl simulate -c xflow.yaml -d 30s -w 16
//	xflowctl keys build --app crm --service order --path /pay
//	xflowctl keys parse 'crm^^^order^/pay'
//	xflowctl check-config xflow.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息，可通过 -ldflags "-X main.Version=..." 注入
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args))
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xflowctl",
		Usage:   "xflow 流量准入引擎命令行工具",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Commands: []*cli.Command{
			createSimulateCommand(),
			createKeysCommand(),
			createCheckConfigCommand(),
		},
		// 退出码统一由 run 映射
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run(ctx context.Context, args []string) int {
	if err := createApp().Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		if _, ok := err.(cli.ExitCoder); ok {
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
