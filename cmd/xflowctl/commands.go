package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xflow/pkg/config/xconf"
	"github.com/omeyang/xflow/pkg/lifecycle/xrun"
	"github.com/omeyang/xflow/pkg/observability/xlog"
	"github.com/omeyang/xflow/pkg/resilience/xbreaker"
	"github.com/omeyang/xflow/pkg/resilience/xflow"
	"github.com/omeyang/xflow/pkg/resilience/xquota"
	"github.com/omeyang/xflow/pkg/stats/xreport"
	"github.com/omeyang/xflow/pkg/util/xresid"
)

const (
	defaultDuration = 10 * time.Second
	defaultWorkers  = 8
)

// usageError 参数错误，退出码 2
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func createSimulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "以合成流量运行引擎并逐秒打印统计",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json），运行期间修改会热加载",
			},
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "运行时长，0 表示直到收到信号",
				Value:   defaultDuration,
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "并发请求协程数",
				Value:   defaultWorkers,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.String("config") == "" {
				return &usageError{msg: "--config is required"}
			}
			if cmd.Int("workers") < 1 {
				return &usageError{msg: "--workers must be positive"}
			}
			if cmd.Duration("duration") < 0 {
				return &usageError{msg: "--duration must not be negative"}
			}
			return cmdSimulate(ctx, writer(cmd), cmd.String("config"), cmd.Duration("duration"), cmd.Int("workers"))
		},
	}
}

func cmdSimulate(ctx context.Context, out io.Writer, path string, duration time.Duration, workers int) error {
	cfg, app, err := loadAppConfig(path)
	if err != nil {
		return err
	}
	logger, cleanup, err := app.Log.build()
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	defer func() { _ = cleanup() }()

	breakerOpts := []xbreaker.Option{xbreaker.WithLogger(logger)}
	if app.Breaker.Capacity > 0 {
		breakerOpts = append(breakerOpts, xbreaker.WithCapacity(app.Breaker.Capacity))
	}
	breakers, err := xbreaker.New(app.Breaker.Rules, breakerOpts...)
	if err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	quota, err := xquota.New(app.Quota.Rules, xquota.WithLogger(logger), xquota.WithTracked(breakers.Tracks))
	if err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	fs, err := xflow.New(xflow.WithConfig(app.Flow), xflow.WithCircuitBreaker(breakers), xflow.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("flow: %w", err)
	}
	defer fs.Close()

	traffic := app.Simulate.Traffic
	if len(traffic) == 0 {
		traffic = defaultTraffic
	}
	sim := newSimulation(fs, quota, breakers, logger, traffic, workers, out)

	services := []xrun.Service{
		xrun.Named("flowstat", fs),
		xrun.Named("traffic", sim),
	}

	sink, err := buildSink(app.Report, out)
	if err != nil {
		return err
	}
	if sink != nil {
		rep, err := xreport.New(fs, sink, xreport.WithConfig(app.Report.Config), xreport.WithLogger(logger))
		if err != nil {
			return errors.Join(fmt.Errorf("report: %w", err), sink.Close())
		}
		if rep.Delay() >= fs.Retention() {
			logger.Warn(ctx, "report delay not shorter than retention, windows may be evicted before export",
				xlog.Duration(rep.Delay()))
		}
		services = append(services, xrun.Named("reporter", rep))
	}

	watcher, err := xconf.Watch(cfg, sim.onConfigChange)
	if err != nil {
		if sink != nil {
			err = errors.Join(err, sink.Close())
		}
		return err
	}
	services = append(services, xrun.Named("config-watch", watcher))

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	err = xrun.RunServices(ctx, []xrun.Option{xrun.WithLogger(logger), xrun.WithName("xflowctl")}, services...)
	sim.summary(out)

	if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, xrun.ErrSignal) {
		return nil
	}
	return err
}

func createKeysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "资源 ID 工具",
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "由各字段拼接资源 ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "app"},
					&cli.StringFlag{Name: "ip"},
					&cli.StringFlag{Name: "node"},
					&cli.StringFlag{Name: "service"},
					&cli.StringFlag{Name: "path"},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return cmdKeysBuild(writer(cmd), xresid.Key{
						App:     cmd.String("app"),
						IP:      cmd.String("ip"),
						Node:    cmd.String("node"),
						Service: cmd.String("service"),
						Path:    cmd.String("path"),
					})
				},
			},
			{
				Name:      "parse",
				Usage:     "拆解资源 ID",
				ArgsUsage: "<resource-id>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return &usageError{msg: "keys parse requires exactly one resource id"}
					}
					return cmdKeysParse(writer(cmd), cmd.Args().First())
				},
			},
		},
	}
}

func cmdKeysBuild(out io.Writer, k xresid.Key) error {
	id, err := xresid.Encode(k)
	if err != nil {
		return &usageError{msg: err.Error()}
	}
	_, err = fmt.Fprintln(out, id)
	return err
}

func cmdKeysParse(out io.Writer, id string) error {
	k, err := xresid.Parse(id)
	if err != nil {
		return &usageError{msg: err.Error()}
	}
	_, err = fmt.Fprintf(out, "app:\t%s\nip:\t%s\nnode:\t%s\nservice:\t%s\npath:\t%s\nbreaker:\t%s\n",
		k.App, k.IP, k.Node, k.Service, k.Path, xresid.ServicePath(id))
	return err
}

func createCheckConfigCommand() *cli.Command {
	return &cli.Command{
		Name:      "check-config",
		Usage:     "校验配置文件",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return &usageError{msg: "check-config requires exactly one file"}
			}
			return cmdCheckConfig(writer(cmd), cmd.Args().First())
		},
	}
}

func cmdCheckConfig(out io.Writer, path string) error {
	_, app, err := loadAppConfig(path)
	if err != nil {
		return err
	}
	if err := app.validate(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "ok: %d quota rules, %d breaker rules\n", len(app.Quota.Rules), len(app.Breaker.Rules))
	return err
}
