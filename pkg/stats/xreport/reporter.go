package xreport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/omeyang/xflow/pkg/observability/xlog"
	"github.com/omeyang/xflow/pkg/resilience/xflow"
)

var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Reporter 定时导出统计，并发安全
type Reporter struct {
	src  Source
	sink Sink
	opts *options

	logger xlog.Logger

	mu   sync.Mutex
	last int64 // 下一轮导出的起点（毫秒，已对齐到桶）

	running atomic.Bool
}

// New 创建导出器，首轮从创建时刻减去滞后所在的秒开始
func New(src Source, sink Sink, opts ...Option) (*Reporter, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if sink == nil {
		return nil, ErrNilSink
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.widthSec < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, o.widthSec)
	}
	if o.delay < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDelay, o.delay)
	}
	if _, err := scheduleParser.Parse(o.schedule); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, o.schedule, err)
	}
	if o.node == "" {
		o.node, _ = os.Hostname()
	}

	return &Reporter{
		src:    src,
		sink:   sink,
		opts:   o,
		logger: o.logger.With(xlog.Component("xreport")),
		last:   xflow.BucketOf(o.now().Add(-o.delay).UnixMilli()),
	}, nil
}

// Delay 导出窗口的滞后
func (r *Reporter) Delay() time.Duration {
	return r.opts.delay
}

// Collect 取出上次导出之后、截至 now - delay 的完整窗口并推进起点。
// 不足一个窗口宽度时返回 false，起点不变。
func (r *Reporter) Collect() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	width := r.opts.widthSec * xflow.BucketWidthMillis
	now := xflow.BucketOf(r.opts.now().Add(-r.opts.delay).UnixMilli())
	n := (now - r.last) / width
	if n < 1 {
		return Snapshot{}, false
	}
	start, end := r.last, r.last+n*width
	r.last = end

	return Snapshot{
		BatchID:   uuid.NewString(),
		Node:      r.opts.node,
		Start:     start,
		End:       end,
		Resources: r.src.ResourceSeries(start, end, r.opts.widthSec),
	}, true
}

// Report 执行一轮导出。没有完整窗口或区间内没有任何资源时不投递。
func (r *Reporter) Report(ctx context.Context) error {
	snap, ok := r.Collect()
	if !ok || len(snap.Resources) == 0 {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("xreport: marshal snapshot: %w", err)
	}

	err = retry.New(
		retry.Context(ctx),
		retry.Attempts(r.opts.attempts),
		retry.Delay(r.opts.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Debug(ctx, "publish stats retry",
				slog.String("batch", snap.BatchID), slog.Uint64("attempt", uint64(n)+1), xlog.Err(err))
		}),
	).Do(func() error {
		return r.sink.Publish(ctx, payload)
	})
	if err != nil {
		return fmt.Errorf("xreport: publish batch %s: %w", snap.BatchID, err)
	}

	r.logger.Debug(ctx, "stats published",
		slog.String("batch", snap.BatchID), xlog.Count(int64(len(snap.Resources))))
	return nil
}

// Run 按计划执行导出，阻塞到 ctx 结束后关闭 Sink
func (r *Reporter) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(r.opts.schedule, r.job(ctx)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	r.logger.Info(ctx, "stats reporter started", slog.String("schedule", r.opts.schedule))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	stopCtx := context.WithoutCancel(ctx)
	if err := r.sink.Close(); err != nil {
		r.logger.Warn(stopCtx, "close stats sink failed", xlog.Err(err))
	}
	r.logger.Info(stopCtx, "stats reporter stopped")
	return nil
}

func (r *Reporter) job(ctx context.Context) func() {
	return func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Stack(context.WithoutCancel(ctx), "stats reporter panic", slog.Any("panic", p))
			}
		}()
		if err := r.Report(ctx); err != nil {
			r.logger.Warn(ctx, "report stats failed", xlog.Err(err))
		}
	}
}
