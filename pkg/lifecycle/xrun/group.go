package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xflow/pkg/observability/xlog"
)

// Service 可管理的后台服务，Run 阻塞直到 ctx 取消或出错
type Service interface {
	Run(ctx context.Context) error
}

// ServiceFunc 将函数适配为 Service
type ServiceFunc func(ctx context.Context) error

func (f ServiceFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// named 带名称的服务，名称用于日志
type named struct {
	name string
	Service
}

// Named 为服务附加日志中显示的名称
func Named(name string, svc Service) Service {
	if svc == nil {
		return nil
	}
	return named{name: name, Service: svc}
}

// Group 基于 errgroup + context 管理多个服务。
// 任一服务返回错误或 Cancel 被调用时，所有服务的 ctx 被取消。
//
// Go 与 Cancel 可并发调用，Wait 只应调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 创建 Group，返回的 ctx 在任一服务出错时取消
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)
	return &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		opts:     options,
	}, egCtx
}

// Go 启动服务
func (g *Group) Go(svc Service) {
	name := "anonymous"
	if n, ok := svc.(named); ok {
		name = n.name
	}
	attrs := []slog.Attr{slog.String("group", g.opts.name), slog.String("service", name)}

	g.eg.Go(func() error {
		if svc == nil {
			return ErrNilService
		}
		g.opts.logger.Debug(g.ctx, "service starting", attrs...)
		err := svc.Run(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.opts.logger.Warn(g.ctx, "service exited with error", append(attrs, xlog.Err(err))...)
		} else {
			g.opts.logger.Debug(g.ctx, "service stopped", attrs...)
		}
		return err
	})
}

// Wait 等待所有服务退出，返回第一个错误。
//
// 因 Cancel(cause) 或信号退出时返回 cause（如 *SignalError）；
// 普通的 context 取消返回 nil。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()
	if errors.Is(err, context.Canceled) {
		if g.causeCtx.Err() == nil {
			// 来自服务内部的取消，原样返回
			return err
		}
		return g.cause()
	}
	if err == nil && g.causeCtx.Err() != nil {
		return g.cause()
	}
	return err
}

func (g *Group) cause() error {
	if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// Cancel 主动取消所有服务，cause 会由 Wait 返回。
// cause 不应包装 context.Canceled，否则会被视为普通取消。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// RunServices 运行服务直到全部退出。默认监听 DefaultSignals()，
// 收到信号时返回 *SignalError。
func RunServices(ctx context.Context, opts []Option, services ...Service) error {
	g, _ := NewGroup(ctx, opts...)

	if !g.opts.noSignalHandler {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}
		g.Go(Named("signal", ServiceFunc(func(ctx context.Context) error {
			return g.waitSignal(ctx, signals)
		})))
	}

	for _, svc := range services {
		g.Go(svc)
	}
	return g.Wait()
}

func (g *Group) waitSignal(ctx context.Context, signals []os.Signal) error {
	testc := testSigChan(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	defer signal.Stop(sigCh)

	var sig os.Signal
	select {
	case sig = <-testc:
	case sig = <-sigCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	g.opts.logger.Info(ctx, "received signal",
		slog.String("group", g.opts.name),
		slog.String("signal", sig.String()))
	g.cancel(&SignalError{Signal: sig})
	return nil
}
