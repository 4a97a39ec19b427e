package xflow

import (
	"sync/atomic"
	"time"
)

// Token 一次成功准入的凭证，持有准入时解析出的资源与时间桶。
// Release 只生效一次，可安全地在多个路径上重复调用（如 defer 与错误分支）。
type Token struct {
	fs       *FlowStat
	chain    Chain
	stats    []*ResourceStat
	bucketID int64
	breaker  bool
	start    time.Time
	released atomic.Bool
}

// Acquire 以当前时间桶对 chain 做准入，成功时返回 Token
func (s *FlowStat) Acquire(chain Chain) (*Token, IncrRequestResult) {
	return s.acquire(chain, false)
}

// AcquireWithBreaker 同 Acquire，并在提交前询问熔断器
func (s *FlowStat) AcquireWithBreaker(chain Chain) (*Token, IncrRequestResult) {
	return s.acquire(chain, true)
}

func (s *FlowStat) acquire(chain Chain, withBreaker bool) (*Token, IncrRequestResult) {
	now := s.now()
	bucketID := BucketOf(now.UnixMilli())
	res, stats := s.admit(chain, bucketID, withBreaker)
	if !res.Allowed {
		return nil, res
	}
	return &Token{
		fs:       s,
		chain:    chain,
		stats:    stats,
		bucketID: bucketID,
		breaker:  withBreaker,
		start:    now,
	}, res
}

// BucketID 准入时的时间桶
func (t *Token) BucketID() int64 {
	return t.bucketID
}

func (t *Token) Chain() Chain {
	return t.chain
}

// Elapsed 自准入以来经过的时间
func (t *Token) Elapsed() time.Duration {
	return t.fs.now().Sub(t.start)
}

// Release 释放并记录结果，rt 单位为毫秒。返回 false 表示已释放过。
func (t *Token) Release(rt int64, success bool, statusCode int) bool {
	if t == nil || !t.released.CompareAndSwap(false, true) {
		return false
	}
	if len(t.stats) > 0 {
		t.fs.release(t.chain, t.stats, t.bucketID, rt, success, statusCode, t.breaker)
	}
	return true
}

// Done 以 Elapsed 作为耗时释放
func (t *Token) Done(success bool, statusCode int) bool {
	if t == nil {
		return false
	}
	return t.Release(t.Elapsed().Milliseconds(), success, statusCode)
}
