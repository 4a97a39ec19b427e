package xflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xflow/pkg/observability/xlog"
	"github.com/omeyang/xflow/pkg/util/xresid"
)

// maxRangeEvictBuckets 增量清理区间超过该桶数时改为全量扫描
const maxRangeEvictBuckets = 3600

// EvictResult 一轮清理的结果
type EvictResult struct {
	Cutoff          int64
	EvictedBuckets  int
	ReapedResources int
}

// Run 启动过期清理与每秒采样，阻塞到 ctx 结束。
// 同一时刻只能运行一个 Run，重复调用返回 ErrAlreadyRunning。
func (s *FlowStat) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.opts.evictionSchedule, s.guard(ctx, "evict", func() {
		s.Evict(s.now())
	})); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	if _, err := c.AddFunc(s.opts.sampleSchedule, s.guard(ctx, "sample", func() {
		s.Sample(s.now())
	})); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	s.logger.Info(ctx, "flow stat jobs started",
		slog.String("evict", s.opts.evictionSchedule),
		slog.String("sample", s.opts.sampleSchedule),
		xlog.Duration(s.Retention()))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info(context.WithoutCancel(ctx), "flow stat jobs stopped")
	return nil
}

// guard 恢复任务内的 panic 并记录堆栈，保证定时任务不退出
func (s *FlowStat) guard(ctx context.Context, job string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Stack(context.WithoutCancel(ctx), "flow stat job panic",
					slog.String("job", job), slog.Any("panic", r))
			}
		}()
		fn()
	}
}

// Evict 删除早于 now 减去保留时长的时间桶，并回收连续两轮空闲的资源（节点资源除外）。
//
// 正常情况下只扫描 [上次截止点, 本次截止点)；首次调用或区间过大时全量扫描。
func (s *FlowStat) Evict(now time.Time) EvictResult {
	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	retention := BucketOf(s.retention.Load())
	cutoff := BucketOf(now.UnixMilli()) - retention
	from := s.lastCutoff
	full := from == 0 || (cutoff-from)/BucketWidthMillis > maxRangeEvictBuckets

	res := EvictResult{Cutoff: cutoff}
	all := s.reg.snapshot()
	for _, rs := range all {
		if full {
			res.EvictedBuckets += rs.evictBefore(cutoff)
		} else if from < cutoff {
			res.EvictedBuckets += rs.evict(from, cutoff)
		}
	}
	s.lastCutoff = cutoff

	for _, rs := range all {
		if rs.ID() == xresid.NodeResource || rs.markIdle() < reapAfterSweeps {
			continue
		}
		s.mu.Lock()
		removed := s.reg.removeIf(rs.ID(), func(cur *ResourceStat) bool {
			return cur == rs && cur.Concurrency() == 0 && cur.slotCount() == 0
		})
		s.mu.Unlock()
		if removed {
			res.ReapedResources++
		}
	}

	s.metrics.recordEvicted(context.Background(), res.EvictedBuckets)
	if res.EvictedBuckets > 0 || res.ReapedResources > 0 {
		s.logger.Debug(context.Background(), "flow stat evicted",
			xlog.Bucket(cutoff), xlog.Count(int64(res.EvictedBuckets)),
			slog.Int("reaped", res.ReapedResources))
	}
	return res
}

// Sample 在 now 所在秒为仍有在途请求的资源补齐时间桶，使峰值并发在无新请求时也被记录；
// 并驱动熔断器的时间相关状态迁移，将状态记录在时间桶上。
// 长期空闲的资源不会因记录熔断状态而新建时间桶，从而可以被回收。
func (s *FlowStat) Sample(now time.Time) {
	bucketID := BucketOf(now.UnixMilli())
	for _, rs := range s.reg.snapshot() {
		if rs.Concurrency() > 0 {
			rs.TimeSlot(bucketID)
		}
		state, tracked := s.breaker.CorrectState(rs.ID(), bucketID)
		if !tracked {
			continue
		}
		if slot, ok := rs.sampleSlot(bucketID); ok {
			slot.SetCircuitBreakState(state)
		}
	}
}
