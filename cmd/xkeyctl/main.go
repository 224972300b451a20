// xkeyctl 是 xkeyring 的命令行工具。
//
// 用法:
//
//	xkeyctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   配置文件路径（环境变量 XKEYRING_CONFIG）
//
// 命令:
//
//	check <file>...   检查 key 文件（行数、空行、重复 key）
//	status            查看池中 key 的状态（key 已脱敏）
//	exec -- <cmd>     租用一个 key 执行命令，key 通过环境变量传入
//
// exec 命令说明:
//
//	命令以 --reject-exit-code 指定的退出码退出时，视为 key 被拒绝：
//	冷归还该 key 并换一个 key 重新执行。其他非零退出码原样返回。
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败（check 命令: 存在重复 key）
//	2: 参数错误（缺少必需参数、未知命令等）
//	其他: exec 执行的命令的退出码
//
// 示例:
//
//	xkeyctl check /etc/xkeyring/openai.keys
//	xkeyctl -c config.yaml status --pool openai
//	xkeyctl -c config.yaml exec --pool openai --env OPENAI_API_KEY --reject-exit-code 75 -- ./call.sh
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

// 退出码
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	return runContext(ctx, os.Args, os.Stdout, os.Stderr)
}

// runContext 执行命令并映射退出码。
func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)

	err := app.Run(ctx, args)
	if err == nil {
		return exitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintf(stderr, "错误: %s\n", msg)
		}
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return exitUsage
	}
	if isCLIUsageError(err) {
		fmt.Fprintf(stderr, "参数错误: %v\n", err)
		return exitUsage
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return exitFailure
}

// createApp 创建 CLI 应用。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xkeyctl",
		Usage:     "xkeyring 限流凭证池命令行工具",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json）",
				Sources: cli.EnvVars("XKEYRING_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			createCheckCommand(),
			createStatusCommand(),
			createExecCommand(),
		},
		// 禁止 urfave/cli 直接调用 os.Exit，由 runContext 统一映射退出码。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

// setupSignalHandler 第一次信号取消 context，第二次信号强制退出（130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}

// exitError 携带退出码的错误，msg 为空时不输出错误信息。
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// usageError 参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// cliUsagePhrases urfave/cli 参数解析错误的特征文本。
var cliUsagePhrases = []string{
	"flag provided but not defined",
	"invalid value",
	"no help topic for",
	"required flag",
	"flag needs an argument",
}

// isCLIUsageError 判断是否为 CLI 框架产生的参数错误。
func isCLIUsageError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range cliUsagePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
