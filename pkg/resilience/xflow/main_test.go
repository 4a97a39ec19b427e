package xflow

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(ms int64) *fakeClock {
	return &fakeClock{t: time.UnixMilli(ms)}
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

func newTestFlowStat(t *testing.T, opts ...Option) *FlowStat {
	t.Helper()
	fs, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func cfg(id string, maxCon, maxQPS int64) ResourceConfig {
	return ResourceConfig{ResourceID: id, MaxConcurrency: maxCon, MaxQPS: maxQPS}
}
