package xflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xflow/pkg/observability/xlog"
)

// scheduleParser 与 cron.WithSeconds() 使用的解析器一致
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// FlowStat 流量准入与统计引擎，并发安全。
//
// 链式准入在引擎级互斥锁内完成，保证检查与提交的原子性；
// 释放与耗时记录不获取该锁。
type FlowStat struct {
	mu  sync.Mutex
	reg *registry

	breaker   CircuitBreaker
	retention atomic.Int64 // 毫秒

	evictMu    sync.Mutex
	lastCutoff int64

	running atomic.Bool

	opts    *options
	logger  xlog.Logger
	metrics *Metrics
	now     func() time.Time
}

// New 创建引擎。后台清理与采样需调用 Run 启动。
func New(opts ...Option) (*FlowStat, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := validateRetention(o.retention); err != nil {
		return nil, err
	}
	for _, spec := range []string{o.evictionSchedule, o.sampleSchedule} {
		if _, err := scheduleParser.Parse(spec); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, spec, err)
		}
	}

	s := &FlowStat{
		reg:     newRegistry(o.shards),
		breaker: o.breaker,
		opts:    o,
		logger:  o.logger.With(xlog.Component("xflow")),
		now:     o.now,
	}
	s.retention.Store(o.retention.Milliseconds())

	m, err := NewMetrics(o.meterProvider, func() int64 { return int64(s.reg.len()) })
	if err != nil {
		return nil, fmt.Errorf("xflow: init metrics: %w", err)
	}
	s.metrics = m
	return s, nil
}

func validateRetention(d time.Duration) error {
	if d < time.Duration(BucketWidthMillis)*time.Millisecond {
		return fmt.Errorf("%w: %s", ErrInvalidRetention, d)
	}
	return nil
}

// Close 释放指标回调。不会停止 Run，Run 由其 context 控制。
func (s *FlowStat) Close() error {
	return s.metrics.Close()
}

// CurrentBucket 当前时间所在时间桶
func (s *FlowStat) CurrentBucket() int64 {
	return BucketOf(s.now().UnixMilli())
}

// SetRetention 运行期修改时间桶保留时长，下一轮清理生效
func (s *FlowStat) SetRetention(d time.Duration) error {
	if err := validateRetention(d); err != nil {
		return err
	}
	s.retention.Store(d.Milliseconds())
	s.logger.Info(context.Background(), "retention updated", xlog.Duration(d))
	return nil
}

func (s *FlowStat) Retention() time.Duration {
	return time.Duration(s.retention.Load()) * time.Millisecond
}

func (s *FlowStat) resource(id string) *ResourceStat {
	rs, created := s.reg.getOrCreate(id)
	if created {
		s.logger.Debug(context.Background(), "resource tracked", xlog.Resource(id))
	}
	return rs
}

// ResourceStat 返回已跟踪的资源
func (s *FlowStat) ResourceStat(id string) (*ResourceStat, bool) {
	return s.reg.get(id)
}

// Resources 当前跟踪的全部资源 ID，顺序不定
func (s *FlowStat) Resources() []string {
	all := s.reg.snapshot()
	ids := make([]string, len(all))
	for i, rs := range all {
		ids[i] = rs.ID()
	}
	return ids
}

// CheckAdmission 对资源链做准入判定。
//
// 由外到内逐个检查并发与 QPS 上限；第一个超限的资源记一次拦截，
// 其外层资源各记一次总拦截，立即返回，不做任何提交。
// 全部通过后为每个资源占用一个并发并计数。空链直接放行。
func (s *FlowStat) CheckAdmission(chain Chain, bucketID int64) IncrRequestResult {
	res, _ := s.admit(chain, bucketID, false)
	return res
}

// CheckAdmissionWithBreaker 在 CheckAdmission 的基础上，
// 提交前询问熔断器是否放行 chain.BreakerResourceID()。
// 熔断拒绝时在熔断资源上记一次熔断拦截，不做任何提交。
func (s *FlowStat) CheckAdmissionWithBreaker(chain Chain, bucketID int64) IncrRequestResult {
	res, _ := s.admit(chain, bucketID, true)
	return res
}

func (s *FlowStat) admit(chain Chain, bucketID int64, withBreaker bool) (IncrRequestResult, []*ResourceStat) {
	if chain.Len() == 0 {
		return Success(), nil
	}
	stats := make([]*ResourceStat, chain.Len())

	s.mu.Lock()
	res := s.checkAndCommit(chain, stats, bucketID, withBreaker)
	s.mu.Unlock()

	s.metrics.recordAdmission(context.Background(), res)
	if !res.Allowed {
		s.logger.Debug(context.Background(), "request blocked",
			xlog.Resource(res.BlockedResourceID), xlog.BlockType(res.BlockType.String()), xlog.Bucket(bucketID))
		return res, nil
	}
	return res, stats
}

// checkAndCommit 调用方持有 s.mu
func (s *FlowStat) checkAndCommit(chain Chain, stats []*ResourceStat, bucketID int64, withBreaker bool) IncrRequestResult {
	for i := range chain.Len() {
		cfg := chain.At(i)
		rs := s.resource(cfg.ResourceID)
		stats[i] = rs
		if !cfg.Limited() {
			continue
		}
		if cfg.MaxConcurrency > 0 && rs.Concurrency() >= cfg.MaxConcurrency {
			s.recordBlock(stats, i, bucketID)
			return Blocked(cfg.ResourceID, BlockConcurrentRequest)
		}
		if cfg.MaxQPS > 0 && rs.TimeSlot(bucketID).Counter() >= cfg.MaxQPS {
			s.recordBlock(stats, i, bucketID)
			return Blocked(cfg.ResourceID, BlockQPS)
		}
	}

	if withBreaker {
		if id := chain.BreakerResourceID(); id != "" && !s.breaker.Permit(id, bucketID) {
			s.resource(id).IncrCircuitBreakNum(bucketID)
			return Blocked(id, BlockCircuitBreak)
		}
	}

	for _, rs := range stats {
		rs.IncrConcurrency(bucketID)
	}
	return Success()
}

// recordBlock 拦截资源记 block，其外层资源记 total block
func (s *FlowStat) recordBlock(stats []*ResourceStat, blocked int, bucketID int64) {
	stats[blocked].IncrBlockRequests(bucketID)
	for _, ancestor := range stats[:blocked] {
		ancestor.IncrTotalBlockRequests(bucketID)
	}
}

// Release 释放一次经 CheckAdmission 准入的请求：由内到外释放并发、记录耗时与状态码。
// 必须与准入使用相同的 chain 与 bucketID。不上报熔断器。
func (s *FlowStat) Release(chain Chain, bucketID int64, rt int64, success bool, statusCode int) {
	s.releaseChain(chain, bucketID, rt, success, statusCode, false)
}

// ReleaseWithBreaker 释放一次经 CheckAdmissionWithBreaker 准入的请求，
// 并将结果上报给熔断器。两组 API 不可混用，否则熔断器的放行与结果无法一一对应。
func (s *FlowStat) ReleaseWithBreaker(chain Chain, bucketID int64, rt int64, success bool, statusCode int) {
	s.releaseChain(chain, bucketID, rt, success, statusCode, true)
}

func (s *FlowStat) releaseChain(chain Chain, bucketID, rt int64, success bool, statusCode int, observe bool) {
	if chain.Len() == 0 {
		return
	}
	stats := make([]*ResourceStat, chain.Len())
	for i := range chain.Len() {
		stats[i] = s.resource(chain.At(i).ResourceID)
	}
	s.release(chain, stats, bucketID, rt, success, statusCode, observe)
}

func (s *FlowStat) release(chain Chain, stats []*ResourceStat, bucketID, rt int64, success bool, statusCode int, observe bool) {
	for i := len(stats) - 1; i >= 0; i-- {
		rs := stats[i]
		if n := rs.DecrConcurrency(bucketID); n < 0 {
			s.logger.Warn(context.Background(), "concurrency below zero, unpaired release",
				xlog.Resource(rs.ID()), xlog.Count(n))
		}
		rs.RecordCompletion(bucketID, rt, success, statusCode)
	}
	if observe {
		if id := chain.BreakerResourceID(); id != "" {
			s.breaker.Observe(id, bucketID, success)
		}
	}
	s.metrics.recordRelease(context.Background(), rt, success)
}

// AcquireResource 单资源准入，不经过引擎锁。
// 成功后需调用 ReleaseResource。
func (s *FlowStat) AcquireResource(resourceID string, bucketID, maxConcurrency, maxQPS int64) IncrRequestResult {
	res := Success()
	if t := s.resource(resourceID).TryAcquire(bucketID, maxConcurrency, maxQPS); t != BlockNone {
		res = Blocked(resourceID, t)
	}
	s.metrics.recordAdmission(context.Background(), res)
	return res
}

// ReleaseResource 释放 AcquireResource 占用的并发并记录结果
func (s *FlowStat) ReleaseResource(resourceID string, bucketID, rt int64, success bool, statusCode int) {
	s.release(Chain{}, []*ResourceStat{s.resource(resourceID)}, bucketID, rt, success, statusCode, false)
}
