package xflow

import (
	"math"
	"sync"
	"sync/atomic"
)

// BucketWidthMillis 时间桶宽度
const BucketWidthMillis int64 = 1000

// BucketOf 返回毫秒时间戳所在时间桶的 ID
func BucketOf(ms int64) int64 {
	return ms / BucketWidthMillis * BucketWidthMillis
}

// TimeSlot 单个资源在一秒内的计数。
//
// 请求计数与状态码、拦截、熔断计数为原子变量；
// 耗时与并发峰值由 mu 保护。
type TimeSlot struct {
	id int64

	counter atomic.Int64

	mu       sync.Mutex
	errors   int64
	compReqs int64
	min      int64
	max      int64
	totalRt  int64
	peak     int64

	blockRequests      atomic.Int64
	totalBlockRequests atomic.Int64

	status2xx atomic.Int64
	status4xx atomic.Int64
	status5xx atomic.Int64
	status504 atomic.Int64

	circuitBreakState atomic.Pointer[string]
	circuitBreakNum   atomic.Int64
}

func newTimeSlot(id, initialPeak int64) *TimeSlot {
	return &TimeSlot{
		id:   id,
		min:  math.MaxInt64,
		max:  math.MinInt64,
		peak: initialPeak,
	}
}

// ID 时间桶起始毫秒
func (t *TimeSlot) ID() int64 {
	return t.id
}

func (t *TimeSlot) Incr() int64 {
	return t.counter.Add(1)
}

func (t *TimeSlot) Counter() int64 {
	return t.counter.Load()
}

// AddRequestRT 记录一次完成的请求
func (t *TimeSlot) AddRequestRT(rt int64, success bool) {
	t.mu.Lock()
	t.totalRt += rt
	t.compReqs++
	if !success {
		t.errors++
	}
	if rt < t.min {
		t.min = rt
	}
	if rt > t.max {
		t.max = rt
	}
	t.mu.Unlock()
}

// UpdatePeakConcurrentRequests 峰值取 max(peak, n)
func (t *TimeSlot) UpdatePeakConcurrentRequests(n int64) {
	t.mu.Lock()
	if n > t.peak {
		t.peak = n
	}
	t.mu.Unlock()
}

func (t *TimeSlot) PeakConcurrentRequests() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peak
}

func (t *TimeSlot) IncrBlockRequests() {
	t.blockRequests.Add(1)
}

func (t *TimeSlot) IncrTotalBlockRequests() {
	t.totalBlockRequests.Add(1)
}

// IncrStatus 按状态码归类计数。504 单独计数，不计入 5xx。
func (t *TimeSlot) IncrStatus(code int) {
	switch {
	case code == 504:
		t.status504.Add(1)
	case code >= 200 && code < 300:
		t.status2xx.Add(1)
	case code >= 400 && code < 500:
		t.status4xx.Add(1)
	case code >= 500 && code < 600:
		t.status5xx.Add(1)
	}
}

func (t *TimeSlot) SetCircuitBreakState(state string) {
	t.circuitBreakState.Store(&state)
}

// CircuitBreakState 最近一次采样记录的熔断状态，未采样时为空
func (t *TimeSlot) CircuitBreakState() string {
	if p := t.circuitBreakState.Load(); p != nil {
		return *p
	}
	return ""
}

func (t *TimeSlot) IncrCircuitBreakNum() {
	t.circuitBreakNum.Add(1)
}

func (t *TimeSlot) CircuitBreakNum() int64 {
	return t.circuitBreakNum.Load()
}

// active 是否记录过请求、拦截或在途并发；只被采样创建的时间桶返回 false
func (t *TimeSlot) active() bool {
	if t.counter.Load() > 0 || t.blockRequests.Load() > 0 || t.totalBlockRequests.Load() > 0 ||
		t.circuitBreakNum.Load() > 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.compReqs > 0 || t.peak > 0
}

// slotSnapshot 聚合用的一致快照（耗时字段在同一把锁内读取）
type slotSnapshot struct {
	counter            int64
	errors             int64
	compReqs           int64
	min                int64
	max                int64
	totalRt            int64
	peak               int64
	blockRequests      int64
	totalBlockRequests int64
	status2xx          int64
	status4xx          int64
	status5xx          int64
	status504          int64
	circuitBreakNum    int64
	circuitBreakState  string
}

func (t *TimeSlot) snapshot() slotSnapshot {
	t.mu.Lock()
	s := slotSnapshot{
		errors:   t.errors,
		compReqs: t.compReqs,
		min:      t.min,
		max:      t.max,
		totalRt:  t.totalRt,
		peak:     t.peak,
	}
	t.mu.Unlock()

	s.counter = t.counter.Load()
	s.blockRequests = t.blockRequests.Load()
	s.totalBlockRequests = t.totalBlockRequests.Load()
	s.status2xx = t.status2xx.Load()
	s.status4xx = t.status4xx.Load()
	s.status5xx = t.status5xx.Load()
	s.status504 = t.status504.Load()
	s.circuitBreakNum = t.circuitBreakNum.Load()
	s.circuitBreakState = t.CircuitBreakState()
	return s
}
