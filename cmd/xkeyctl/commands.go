package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xkeyring/internal/bootstrap"
	"github.com/omeyang/xkeyring/pkg/config/xconf"
	"github.com/omeyang/xkeyring/pkg/keypool/xkeypool"
	"github.com/omeyang/xkeyring/pkg/keypool/xkeysource"
	"github.com/omeyang/xkeyring/pkg/keypool/xlease"
)

// defaultKeyEnv exec 命令传递 key 的默认环境变量名。
const defaultKeyEnv = "XKEYRING_KEY"

// =============================================================================
// check
// =============================================================================

func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "检查 key 文件",
		ArgsUsage: "<file>...",
		Action: func(_ context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				return newUsageError("check 需要至少一个文件")
			}
			return cmdCheck(cmd.Root().Writer, files)
		},
	}
}

// cmdCheck 逐个检查 key 文件，存在重复 key 时以退出码 1 结束。
func cmdCheck(w io.Writer, files []string) error {
	duplicates := false
	for _, path := range files {
		report, err := checkFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d keys, %d lines (%d blank, %d comments), %d duplicates\n",
			path, len(report.Keys), report.Lines, report.Blank, report.Comments, len(report.Duplicates))
		for _, key := range report.Duplicates {
			fmt.Fprintf(w, "  duplicate: %s\n", xkeypool.Mask(key))
		}
		if report.HasDuplicates() {
			duplicates = true
		}
	}
	if duplicates {
		return &exitError{code: exitFailure}
	}
	return nil
}

func checkFile(path string) (xkeysource.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return xkeysource.Report{}, err
	}
	defer func() { _ = f.Close() }()

	report, err := xkeysource.Check(f)
	if err != nil {
		return xkeysource.Report{}, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

// =============================================================================
// status
// =============================================================================

func createStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "查看池中 key 的状态",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pool",
				Aliases: []string{"p"},
				Usage:   "池名称，默认为默认池",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			return cmdStatus(cmd.Root().Writer, app, cmd.String("pool"), time.Now())
		},
	}
}

func cmdStatus(w io.Writer, app *bootstrap.App, name string, now time.Time) error {
	pool, err := app.Pool(name)
	if err != nil {
		return err
	}

	stats := pool.Stats(now)
	fmt.Fprintf(w, "pool %s: %d keys (%d eligible, %d cooling down, %d locked)\n",
		pool.Name(), stats.Total, stats.Eligible, stats.CoolingDown, stats.Locked)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATE\tELIGIBLE IN")
	for _, st := range pool.Snapshot() {
		state, wait := xkeypool.StateEligible, "-"
		switch {
		case st.Locked:
			state = xkeypool.StateLocked
		case st.EligibleAt.After(now):
			state = xkeypool.StateCoolingDown
			wait = st.EligibleAt.Sub(now).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", xkeypool.Mask(st.Key), state, wait)
	}
	return tw.Flush()
}

// =============================================================================
// exec
// =============================================================================

func createExecCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "租用一个 key 执行命令",
		ArgsUsage: "-- <command> [args...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pool",
				Aliases: []string{"p"},
				Usage:   "池名称，默认为默认池",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "传递 key 的环境变量名",
				Value: defaultKeyEnv,
			},
			&cli.IntSliceFlag{
				Name:  "reject-exit-code",
				Usage: "表示 key 被拒绝的退出码，可重复指定",
			},
			&cli.DurationFlag{
				Name:  "cooldown",
				Usage: "被拒绝的 key 的冷却时长，0 表示使用池的默认值",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			argv := cmd.Args().Slice()
			if len(argv) == 0 {
				return newUsageError("exec 需要要执行的命令")
			}
			if cmd.String("env") == "" {
				return newUsageError("--env 不能为空")
			}
			if cmd.Duration("cooldown") < 0 {
				return newUsageError("--cooldown 不能为负数")
			}

			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			pool, err := app.Pool(cmd.String("pool"))
			if err != nil {
				return err
			}
			req := execRequest{
				argv:        argv,
				env:         cmd.String("env"),
				rejectCodes: cmd.IntSlice("reject-exit-code"),
				cooldown:    cmd.Duration("cooldown"),
				stdout:      cmd.Root().Writer,
				stderr:      cmd.Root().ErrWriter,
			}
			return cmdExec(ctx, app.Leaser, pool, req)
		},
	}
}

// execRequest exec 命令的参数
type execRequest struct {
	argv        []string
	env         string
	rejectCodes []int
	cooldown    time.Duration
	stdout      io.Writer
	stderr      io.Writer
}

// cmdExec 租用 key 执行命令，命令以拒绝退出码结束时换 key 重试。
func cmdExec(ctx context.Context, leaser *xlease.Leaser, pool xlease.Pool, req execRequest) error {
	return leaser.Do(ctx, pool, func(ctx context.Context, key string) error {
		c := exec.CommandContext(ctx, req.argv[0], req.argv[1:]...)
		c.Env = append(os.Environ(), req.env+"="+key)
		c.Stdin = os.Stdin
		c.Stdout = req.stdout
		c.Stderr = req.stderr

		err := c.Run()
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return err
		}
		code := ee.ExitCode()
		if code >= 0 && slices.Contains(req.rejectCodes, code) {
			return xlease.RejectFor(fmt.Errorf("command exited with code %d", code), req.cooldown)
		}
		if code < 0 {
			// 被信号终止
			return err
		}
		return &exitError{code: code}
	})
}

// openApp 按 --config 加载配置并初始化池，不启动自动重新加载。
func openApp(ctx context.Context, cmd *cli.Command) (*bootstrap.App, error) {
	path := cmd.String("config")
	if path == "" {
		return nil, newUsageError("需要 --config 或环境变量 XKEYRING_CONFIG")
	}
	cfg, err := xconf.Load(path)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg,
		bootstrap.WithLogOutput(cmd.Root().ErrWriter),
		bootstrap.WithoutAutoReload(),
	)
}
