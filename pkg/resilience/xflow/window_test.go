package xflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedBuckets 按桶写入请求数与完成耗时
func seedBuckets(rs *ResourceStat, start int64, counters []int64, rts [][]int64) {
	for i, n := range counters {
		b := start + int64(i)*BucketWidthMillis
		slot := rs.TimeSlot(b)
		for range n {
			slot.Incr()
		}
		for _, rt := range rts[i] {
			slot.AddRequestRT(rt, true)
		}
	}
}

func TestWindowStat_Aggregation(t *testing.T) {
	fs := newTestFlowStat(t)
	rs := fs.resource(svcID)
	seedBuckets(rs, bucket0, []int64{3, 5, 0}, [][]int64{{10, 20, 30}, {5}, {}})

	w := fs.WindowStat(svcID, bucket0, bucket0+3000)
	require.NotNil(t, w)
	assert.Equal(t, bucket0, w.StartTime)
	assert.Equal(t, bucket0+3000, w.EndTime)
	assert.EqualValues(t, 8, w.Total)
	assert.EqualValues(t, 4, w.CompReqs)
	require.NotNil(t, w.AvgRt)
	assert.EqualValues(t, 16, *w.AvgRt)
	assert.EqualValues(t, 5, *w.Min)
	assert.EqualValues(t, 30, *w.Max)
	assert.EqualValues(t, 5, w.PeakRps)
	assert.InDelta(t, 2.67, w.Rps, 1e-9)
}

func TestWindowStat_Snapping(t *testing.T) {
	fs := newTestFlowStat(t)
	rs := fs.resource(svcID)
	seedBuckets(rs, bucket0, []int64{1, 2}, [][]int64{{}, {}})

	// 非整秒边界对齐到桶
	w := fs.WindowStat(svcID, bucket0+999, bucket0+1999)
	assert.Equal(t, bucket0, w.StartTime)
	assert.Equal(t, bucket0+1000, w.EndTime)
	assert.EqualValues(t, 1, w.Total)

	// 零宽度扩展为一个桶
	w = fs.WindowStat(svcID, bucket0+1500, bucket0+1700)
	assert.Equal(t, bucket0+1000, w.StartTime)
	assert.Equal(t, bucket0+2000, w.EndTime)
	assert.EqualValues(t, 2, w.Total)
	assert.Nil(t, w.Min)
	assert.Nil(t, w.Max)
	assert.Nil(t, w.AvgRt)
	assert.InDelta(t, 2.0, w.Rps, 1e-9)
}

func TestWindowStat_Unknown(t *testing.T) {
	fs := newTestFlowStat(t)
	assert.Nil(t, fs.WindowStat("nope", bucket0, bucket0+1000))
	assert.Empty(t, fs.SeriesStat("nope", bucket0, bucket0+5000, 1))
}

func TestWindowStat_Empty(t *testing.T) {
	fs := newTestFlowStat(t)
	fs.resource(svcID)
	w := fs.WindowStat(svcID, bucket0, bucket0+5000)
	require.NotNil(t, w)
	assert.Zero(t, w.Total)
	assert.Zero(t, w.Rps)
	assert.Nil(t, w.Min)
}

func TestRoundRps(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.004, 0},
		{0.005, 0.01},
		{2.666666, 2.67},
		{9.994, 9.99},
		{10, 10},
		{10.5, 11},
		{123.4, 123},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, roundRps(tt.in), 1e-9, "roundRps(%v)", tt.in)
	}
}

func TestSeriesStat(t *testing.T) {
	fs := newTestFlowStat(t)
	rs := fs.resource(svcID)
	seedBuckets(rs, bucket0, []int64{1, 2, 3, 4, 5}, [][]int64{{}, {}, {}, {}, {}})

	t.Run("按秒切分", func(t *testing.T) {
		ws := fs.SeriesStat(svcID, bucket0, bucket0+5000, 1)
		require.Len(t, ws, 5)
		for i, w := range ws {
			assert.EqualValues(t, i+1, w.Total)
			assert.Equal(t, bucket0+int64(i)*1000, w.StartTime)
		}
	})

	t.Run("丢弃不足一个宽度的尾部", func(t *testing.T) {
		ws := fs.SeriesStat(svcID, bucket0, bucket0+5000, 2)
		require.Len(t, ws, 2)
		assert.EqualValues(t, 3, ws[0].Total)
		assert.EqualValues(t, 7, ws[1].Total)
	})

	t.Run("宽度无效或区间过短", func(t *testing.T) {
		assert.Empty(t, fs.SeriesStat(svcID, bucket0, bucket0+5000, 0))
		assert.Empty(t, fs.SeriesStat(svcID, bucket0, bucket0+2000, 3))
		assert.NotNil(t, fs.SeriesStat(svcID, bucket0, bucket0+2000, 3))
	})
}

func TestResourceSeries(t *testing.T) {
	fs := newTestFlowStat(t)
	seedBuckets(fs.resource(svcID), bucket0, []int64{1, 1}, [][]int64{{}, {}})
	seedBuckets(fs.resource(apiID), bucket0, []int64{0, 4}, [][]int64{{}, {}})

	all := fs.ResourceSeries(bucket0, bucket0+2000, 1)
	require.Len(t, all, 2)
	byID := map[string]ResourceTimeWindowStat{}
	for _, r := range all {
		byID[r.ResourceID] = r
	}
	assert.Len(t, byID[svcID].Windows, 2)
	assert.EqualValues(t, 4, byID[apiID].Windows[1].Total)

	assert.Empty(t, fs.ResourceSeries(bucket0, bucket0+2000, 5))
}

func TestPreviousAndCurrentWindow(t *testing.T) {
	clock := newFakeClock(bucket0 + 1200)
	fs := newTestFlowStat(t, WithClock(clock.Now))
	seedBuckets(fs.resource(svcID), bucket0, []int64{7, 2}, [][]int64{{}, {}})

	prev := fs.PreviousSecondStat(svcID, bucket0+1200)
	assert.EqualValues(t, 7, prev.Total)
	cur := fs.CurrentWindowStat(svcID)
	assert.EqualValues(t, 2, cur.Total)
}

func TestWindowStat_BreakerState(t *testing.T) {
	fs := newTestFlowStat(t)
	rs := fs.resource(apiID)
	rs.TimeSlot(bucket0).SetCircuitBreakState("closed")
	rs.TimeSlot(bucket0 + 1000).SetCircuitBreakState("open")
	rs.IncrCircuitBreakNum(bucket0 + 1000)

	w := fs.WindowStat(apiID, bucket0, bucket0+2000)
	assert.Equal(t, "open", w.CircuitBreakState)
	assert.EqualValues(t, 1, w.CircuitBreakNum)
}
