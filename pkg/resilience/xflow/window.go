package xflow

import "math"

// TimeWindowStat 资源在 [StartTime, EndTime) 内的聚合统计。
//
// Min、Max、AvgRt 在窗口内没有完成的请求时为 nil；
// Rps 在没有请求时为 0。
type TimeWindowStat struct {
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`

	Min   *int64 `json:"min,omitempty"`
	Max   *int64 `json:"max,omitempty"`
	AvgRt *int64 `json:"avgRt,omitempty"`

	Total    int64 `json:"total"`
	CompReqs int64 `json:"compReqs"`
	Errors   int64 `json:"errors"`

	Rps     float64 `json:"rps"`
	PeakRps int64   `json:"peakRps"`

	PeakConcurrentRequests int64 `json:"peakConcurrentRequests"`
	BlockRequests          int64 `json:"blockRequests"`
	TotalBlockRequests     int64 `json:"totalBlockRequests"`

	Status2xx int64 `json:"2xxStatus"`
	Status4xx int64 `json:"4xxStatus"`
	Status5xx int64 `json:"5xxStatus"`
	Status504 int64 `json:"504Status"`

	CircuitBreakNum   int64  `json:"circuitBreakNum"`
	CircuitBreakState string `json:"circuitBreakState,omitempty"`
}

// aggregate 按时间顺序合并 [start, end) 内各时间桶的快照，缺失的桶不计入
func aggregate(start, end int64, lookup func(bucketID int64) (*TimeSlot, bool)) *TimeWindowStat {
	w := &TimeWindowStat{StartTime: start, EndTime: end}
	minRt, maxRt := int64(math.MaxInt64), int64(math.MinInt64)
	var totalRt int64

	for id := start; id < end; id += BucketWidthMillis {
		slot, ok := lookup(id)
		if !ok {
			continue
		}
		s := slot.snapshot()
		minRt = min(minRt, s.min)
		maxRt = max(maxRt, s.max)
		w.PeakConcurrentRequests = max(w.PeakConcurrentRequests, s.peak)
		w.PeakRps = max(w.PeakRps, s.counter)
		w.Total += s.counter
		totalRt += s.totalRt
		w.Errors += s.errors
		w.CompReqs += s.compReqs
		w.BlockRequests += s.blockRequests
		w.TotalBlockRequests += s.totalBlockRequests
		w.Status2xx += s.status2xx
		w.Status4xx += s.status4xx
		w.Status5xx += s.status5xx
		w.Status504 += s.status504
		w.CircuitBreakNum += s.circuitBreakNum
		if s.circuitBreakState != "" {
			w.CircuitBreakState = s.circuitBreakState
		}
	}

	if minRt != math.MaxInt64 {
		w.Min = &minRt
	}
	if maxRt != math.MinInt64 {
		w.Max = &maxRt
	}
	if w.CompReqs > 0 {
		avg := totalRt / w.CompReqs
		w.AvgRt = &avg
	}
	if w.Total > 0 {
		w.Rps = roundRps(float64(w.Total) / (float64(end-start) / 1000))
	}
	return w
}

// roundRps 不小于 10 时取整，否则保留两位小数（四舍五入）
func roundRps(rps float64) float64 {
	if rps >= 10 {
		return math.Round(rps)
	}
	return math.Round(rps*100) / 100
}
