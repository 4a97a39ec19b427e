package xflow

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/xflow/pkg/observability/xlog"
)

func TestEvict_RemovesExpiredBuckets(t *testing.T) {
	fs := newTestFlowStat(t, WithRetention(5*time.Minute))
	chain := NewChain(cfg(svcID, 0, 0))

	old := bucket0
	recent := bucket0 + (5*time.Minute).Milliseconds()
	for _, b := range []int64{old, old + 1000, recent} {
		require.True(t, fs.CheckAdmission(chain, b).Allowed)
		fs.Release(chain, b, 1, true, 200)
	}

	// now = recent + 1.5s，截止点 = recent + 1000 - 5min = old + 1000
	res := fs.Evict(time.UnixMilli(recent + 1500))
	assert.Equal(t, old+1000, res.Cutoff)
	assert.Equal(t, 1, res.EvictedBuckets)

	assert.Zero(t, fs.WindowStat(svcID, old, old).Total)
	assert.EqualValues(t, 1, fs.WindowStat(svcID, old+1000, old+1000).Total)
	assert.EqualValues(t, 1, fs.WindowStat(svcID, recent, recent).Total)

	// 增量清理：只扫描 [上次截止点, 本次截止点)
	res = fs.Evict(time.UnixMilli(recent + 2500))
	assert.Equal(t, 1, res.EvictedBuckets)
	assert.Zero(t, fs.WindowStat(svcID, old+1000, old+1000).Total)
	assert.EqualValues(t, 1, fs.WindowStat(svcID, recent, recent).Total)
}

func TestEvict_RetentionShortened(t *testing.T) {
	fs := newTestFlowStat(t)
	rs := fs.resource(svcID)
	for i := range int64(10) {
		rs.TimeSlot(bucket0 + i*1000).Incr()
	}
	now := time.UnixMilli(bucket0 + 10_000)

	res := fs.Evict(now)
	assert.Zero(t, res.EvictedBuckets)

	require.NoError(t, fs.SetRetention(3*time.Second))
	res = fs.Evict(now)
	assert.Equal(t, 7, res.EvictedBuckets)
	assert.Equal(t, 3, rs.slotCount())
}

func TestEvict_ReapsIdleResources(t *testing.T) {
	fs := newTestFlowStat(t, WithRetention(time.Second))
	chain := NewChain(cfg(nodeID, 0, 0), cfg(svcID, 0, 0), cfg(apiID, 0, 0))

	require.True(t, fs.CheckAdmission(chain, bucket0).Allowed)
	fs.Release(chain, bucket0, 1, true, 200)

	// 持有一个在途请求的资源不会被回收
	busy := NewChain(cfg(xflowBusyID, 0, 0))
	require.True(t, fs.CheckAdmission(busy, bucket0).Allowed)

	later := time.UnixMilli(bucket0 + 10_000)
	first := fs.Evict(later)
	assert.Zero(t, first.ReapedResources)
	assert.Len(t, fs.Resources(), 4)

	second := fs.Evict(later.Add(time.Second))
	assert.Equal(t, 2, second.ReapedResources)
	assert.ElementsMatch(t, []string{nodeID, xflowBusyID}, fs.Resources())

	fs.Release(busy, bucket0, 1, true, 200)
}

const xflowBusyID = "^^^busy^"

func TestEvict_LateReleaseDoesNotRecreateBucket(t *testing.T) {
	fs := newTestFlowStat(t, WithRetention(5*time.Second))
	chain := NewChain(cfg(svcID, 0, 0))
	require.True(t, fs.CheckAdmission(chain, bucket0).Allowed)

	// 请求在途期间准入时间桶过期被清理
	fs.Evict(time.UnixMilli(bucket0 + 10_000))
	fs.Evict(time.UnixMilli(bucket0 + 11_000))
	rs, ok := fs.ResourceStat(svcID)
	require.True(t, ok)
	_, ok = rs.peekSlot(bucket0)
	require.False(t, ok)

	fs.Release(chain, bucket0, 12_000, true, 200)
	assert.Zero(t, fs.CurrentConcurrency(svcID))
	_, ok = rs.peekSlot(bucket0)
	assert.False(t, ok, "late release must not recreate an evicted bucket")
	assert.Zero(t, rs.slotCount())

	for i := int64(0); i < 3; i++ {
		fs.Evict(time.UnixMilli(bucket0 + 12_000 + i*1000))
	}
	_, ok = fs.ResourceStat(svcID)
	assert.False(t, ok, "resource should be reaped after the late release")
}

func TestEvict_TouchResetsIdle(t *testing.T) {
	fs := newTestFlowStat(t, WithRetention(time.Second))
	fs.resource(svcID)

	later := time.UnixMilli(bucket0 + 10_000)
	fs.Evict(later)
	rs, ok := fs.ResourceStat(svcID)
	require.True(t, ok)
	rs.TimeSlot(later.UnixMilli())
	res := fs.Evict(later)
	assert.Zero(t, res.ReapedResources)
	_, ok = fs.ResourceStat(svcID)
	assert.True(t, ok)
}

func TestSample(t *testing.T) {
	ctrl := gomock.NewController(t)
	cb := NewMockCircuitBreaker(ctrl)
	cb.EXPECT().CorrectState(gomock.Any(), gomock.Any()).Return("", false).AnyTimes()
	fs := newTestFlowStat(t, WithCircuitBreaker(cb))

	chain := NewChain(cfg(svcID, 0, 0)).WithBreakerResource("")
	require.True(t, fs.CheckAdmission(chain, bucket0).Allowed)
	require.True(t, fs.CheckAdmission(chain, bucket0).Allowed)

	// 下一秒没有新请求，采样补齐时间桶，峰值并发为在途请求数
	next := bucket0 + 1000
	fs.Sample(time.UnixMilli(next + 10))
	w := fs.WindowStat(svcID, next, next)
	assert.EqualValues(t, 2, w.PeakConcurrentRequests)
	assert.Zero(t, w.Total)

	fs.Release(chain, bucket0, 1, true, 200)
	fs.Release(chain, bucket0, 1, true, 200)
}

func TestSample_RecordsBreakerState(t *testing.T) {
	ctrl := gomock.NewController(t)
	cb := NewMockCircuitBreaker(ctrl)
	fs := newTestFlowStat(t, WithCircuitBreaker(cb))
	// 上一秒有一次熔断拦截
	fs.resource(apiID).IncrCircuitBreakNum(bucket0 - 1000)
	fs.resource(svcID)

	cb.EXPECT().CorrectState(apiID, bucket0).Return("half-open", true)
	cb.EXPECT().CorrectState(svcID, bucket0).Return("", false)

	fs.Sample(time.UnixMilli(bucket0))
	assert.Equal(t, "half-open", fs.WindowStat(apiID, bucket0, bucket0).CircuitBreakState)
	rs, _ := fs.ResourceStat(svcID)
	assert.Zero(t, rs.slotCount())
}

func TestSample_IdleBreakerResourceIsReaped(t *testing.T) {
	ctrl := gomock.NewController(t)
	cb := NewMockCircuitBreaker(ctrl)
	cb.EXPECT().CorrectState(apiID, gomock.Any()).Return("closed", true).AnyTimes()
	fs := newTestFlowStat(t, WithCircuitBreaker(cb), WithRetention(time.Second))

	chain := NewChain(cfg(apiID, 0, 0)).WithBreakerResource("")
	require.True(t, fs.CheckAdmission(chain, bucket0).Allowed)
	fs.Release(chain, bucket0, 1, true, 200)

	// 有流量的下一秒记录状态，之后的空闲秒不再新建时间桶
	for i := int64(1); i <= 5; i++ {
		fs.Sample(time.UnixMilli(bucket0 + i*1000))
	}
	assert.Equal(t, "closed", fs.WindowStat(apiID, bucket0+1000, bucket0+1000).CircuitBreakState)
	rs, ok := fs.ResourceStat(apiID)
	require.True(t, ok)
	assert.Equal(t, 2, rs.slotCount())

	for i := int64(0); i < 3; i++ {
		now := time.UnixMilli(bucket0 + (10+i)*1000)
		fs.Sample(now)
		fs.Evict(now)
	}
	_, ok = fs.ResourceStat(apiID)
	assert.False(t, ok)
}

// panicBreaker CorrectState 总是 panic
type panicBreaker struct{ noopBreaker }

func (panicBreaker) CorrectState(string, int64) (string, bool) { panic("boom") }

func TestGuard_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).Build()
	require.NoError(t, err)

	fs := newTestFlowStat(t, WithLogger(logger), WithCircuitBreaker(panicBreaker{}))
	fs.resource(apiID)

	assert.NotPanics(t, fs.guard(context.Background(), "sample", func() {
		fs.Sample(time.UnixMilli(bucket0))
	}))
	assert.Contains(t, buf.String(), "flow stat job panic")
	assert.Contains(t, buf.String(), "boom")
}

// syncBuffer 并发写安全的缓冲区
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun(t *testing.T) {
	var out syncBuffer
	logger, _, err := xlog.New().SetOutput(&out).Build()
	require.NoError(t, err)

	fs := newTestFlowStat(t,
		WithLogger(logger),
		WithEvictionSchedule("@every 1s"),
		WithSampleSchedule("@every 1s"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fs.Run(ctx) }()

	require.Eventually(t, func() bool { return fs.running.Load() }, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, fs.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Contains(t, out.String(), "flow stat jobs stopped")
}
