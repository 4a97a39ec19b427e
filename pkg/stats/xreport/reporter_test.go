package xreport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xflow/pkg/resilience/xflow"
)

const t0 = int64(1_700_000_000_500)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memSink 记录投递内容，前 failures 次返回错误
type memSink struct {
	mu       sync.Mutex
	calls    int
	failures int
	payloads [][]byte
	closed   bool
}

func (s *memSink) Publish(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("sink unavailable")
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memSink) snapshots(t *testing.T) []Snapshot {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.payloads))
	for _, p := range s.payloads {
		var snap Snapshot
		require.NoError(t, json.Unmarshal(p, &snap))
		out = append(out, snap)
	}
	return out
}

// staticSource 对任意区间返回一个资源
type staticSource struct{}

func (staticSource) ResourceSeries(start, end, _ int64) []xflow.ResourceTimeWindowStat {
	return []xflow.ResourceTimeWindowStat{{
		ResourceID: "^^^order^",
		Windows:    []xflow.TimeWindowStat{{StartTime: start, EndTime: end}},
	}}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, &memSink{})
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = New(staticSource{}, nil)
	assert.ErrorIs(t, err, ErrNilSink)

	_, err = New(staticSource{}, &memSink{}, WithWidth(0))
	assert.ErrorIs(t, err, ErrInvalidWidth)

	_, err = New(staticSource{}, &memSink{}, WithSchedule("every now and then"))
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = New(staticSource{}, &memSink{}, WithDelay(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidDelay)
}

func TestCollect_AlignsToWidth(t *testing.T) {
	clk := &fakeClock{t: time.UnixMilli(t0)}
	r, err := New(staticSource{}, &memSink{}, WithClock(clk.Now), WithWidth(2), WithNode("gw-1"), WithDelay(0))
	require.NoError(t, err)

	_, ok := r.Collect()
	assert.False(t, ok)

	clk.Advance(3 * time.Second)
	snap, ok := r.Collect()
	require.True(t, ok)
	assert.Equal(t, int64(1_700_000_000_000), snap.Start)
	assert.Equal(t, int64(1_700_000_002_000), snap.End)
	assert.Equal(t, "gw-1", snap.Node)
	assert.NotEmpty(t, snap.BatchID)

	// 不足一个宽度的尾部留到下一轮
	_, ok = r.Collect()
	assert.False(t, ok)

	clk.Advance(time.Second)
	next, ok := r.Collect()
	require.True(t, ok)
	assert.Equal(t, snap.End, next.Start, "相邻批次首尾相接")
	assert.NotEqual(t, snap.BatchID, next.BatchID)
}

func TestReport_FlowStat(t *testing.T) {
	clk := &fakeClock{t: time.UnixMilli(t0)}
	fs, err := xflow.New(xflow.WithClock(clk.Now))
	require.NoError(t, err)
	defer fs.Close()

	sink := &memSink{}
	r, err := New(fs, sink, WithClock(clk.Now), WithDelay(0))
	require.NoError(t, err)

	chain := xflow.NewChain(xflow.ResourceConfig{ResourceID: "^^_global^^"}, xflow.ResourceConfig{ResourceID: "^^^order^"})
	for _, code := range []int{200, 200, 503} {
		tok, res := fs.Acquire(chain)
		require.True(t, res.Allowed)
		tok.Release(12, code < 500, code)
	}

	clk.Advance(2 * time.Second)
	require.NoError(t, r.Report(context.Background()))

	snaps := sink.snapshots(t)
	require.Len(t, snaps, 1)
	byID := make(map[string][]xflow.TimeWindowStat)
	for _, rs := range snaps[0].Resources {
		byID[rs.ResourceID] = rs.Windows
	}
	require.Contains(t, byID, "^^^order^")
	windows := byID["^^^order^"]
	require.Len(t, windows, 2)
	assert.Equal(t, int64(3), windows[0].Total)
	assert.Equal(t, int64(1), windows[0].Errors)
	assert.Equal(t, int64(1), windows[0].Status5xx)
	assert.Zero(t, windows[1].Total)
}

func TestCollect_DelayWaitsForInflight(t *testing.T) {
	clk := &fakeClock{t: time.UnixMilli(t0)}
	fs, err := xflow.New(xflow.WithClock(clk.Now))
	require.NoError(t, err)
	defer fs.Close()

	r, err := New(fs, &memSink{}, WithClock(clk.Now), WithDelay(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, r.Delay())

	admitted := xflow.BucketOf(t0)
	tok, res := fs.Acquire(xflow.NewChain(xflow.ResourceConfig{ResourceID: "^^^order^"}))
	require.True(t, res.Allowed)

	// 请求在途时，准入所在的秒尚未进入导出窗口
	var compReqs int64
	collect := func() {
		snap, ok := r.Collect()
		if !ok {
			return
		}
		assert.LessOrEqual(t, snap.End, xflow.BucketOf(clk.Now().Add(-3*time.Second).UnixMilli()))
		for _, rs := range snap.Resources {
			for _, w := range rs.Windows {
				compReqs += w.CompReqs
			}
		}
	}
	clk.Advance(1500 * time.Millisecond)
	collect()

	clk.Advance(time.Second)
	tok.Release(2500, true, 200)

	for range 5 {
		clk.Advance(time.Second)
		collect()
	}
	assert.EqualValues(t, 1, compReqs, "completion in bucket %d must be exported", admitted)
	assert.EqualValues(t, 1, fs.WindowStat("^^^order^", admitted, admitted).CompReqs)
}

func TestReport_EmptyNotPublished(t *testing.T) {
	clk := &fakeClock{t: time.UnixMilli(t0)}
	fs, err := xflow.New(xflow.WithClock(clk.Now))
	require.NoError(t, err)
	defer fs.Close()

	sink := &memSink{}
	r, err := New(fs, sink, WithClock(clk.Now))
	require.NoError(t, err)

	clk.Advance(5 * time.Second)
	require.NoError(t, r.Report(context.Background()))
	assert.Zero(t, sink.calls)
}

func TestReport_Retry(t *testing.T) {
	clk := &fakeClock{t: time.UnixMilli(t0)}

	sink := &memSink{failures: 2}
	r, err := New(staticSource{}, sink, WithClock(clk.Now), WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	clk.Advance(time.Second)
	require.NoError(t, r.Report(context.Background()))
	assert.Equal(t, 3, sink.calls)
	assert.Len(t, sink.snapshots(t), 1)

	failing := &memSink{failures: 100}
	r, err = New(staticSource{}, failing, WithClock(clk.Now), WithRetry(2, time.Millisecond))
	require.NoError(t, err)
	clk.Advance(time.Second)
	err = r.Report(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink unavailable")
	assert.Equal(t, 2, failing.calls)

	// 失败的批次不会重复导出
	require.NoError(t, r.Report(context.Background()))
	assert.Equal(t, 2, failing.calls)
}

func TestWithConfig(t *testing.T) {
	o := defaultOptions()
	WithConfig(Config{Schedule: "*/5 * * * * *", WidthSec: 5, Node: "gw", Attempts: 4, RetryDelay: time.Second, Delay: 30 * time.Second})(o)
	assert.Equal(t, "*/5 * * * * *", o.schedule)
	assert.Equal(t, int64(5), o.widthSec)
	assert.Equal(t, "gw", o.node)
	assert.Equal(t, uint(4), o.attempts)
	assert.Equal(t, time.Second, o.retryDelay)
	assert.Equal(t, 30*time.Second, o.delay)

	o = defaultOptions()
	WithConfig(Config{})(o)
	assert.Equal(t, DefaultSchedule, o.schedule)
	assert.Equal(t, uint(DefaultAttempts), o.attempts)
	assert.Equal(t, DefaultDelay, o.delay)
}

func TestRun(t *testing.T) {
	sink := &memSink{}
	r, err := New(staticSource{}, sink, WithSchedule("* * * * * *"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.payloads) > 0
	}, 5*time.Second, 20*time.Millisecond)

	assert.ErrorIs(t, r.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	sink.mu.Lock()
	assert.True(t, sink.closed)
	sink.mu.Unlock()
}
