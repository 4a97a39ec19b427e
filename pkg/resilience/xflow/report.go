package xflow

// ResourceTimeWindowStat 单个资源的连续子窗口统计
type ResourceTimeWindowStat struct {
	ResourceID string           `json:"resourceId"`
	Windows    []TimeWindowStat `json:"windows"`
}

// snapRange 将毫秒区间对齐到时间桶，宽度为 0 时扩展为一个桶
func snapRange(start, end int64) (int64, int64) {
	s, e := BucketOf(start), BucketOf(end)
	if s == e {
		e += BucketWidthMillis
	}
	return s, e
}

// WindowStat 聚合资源在 [start, end)（毫秒）内的统计。资源未被跟踪时返回 nil。
func (s *FlowStat) WindowStat(resourceID string, start, end int64) *TimeWindowStat {
	rs, ok := s.reg.get(resourceID)
	if !ok {
		return nil
	}
	sb, eb := snapRange(start, end)
	return rs.WindowStat(sb, eb)
}

// CurrentWindowStat 当前秒的统计
func (s *FlowStat) CurrentWindowStat(resourceID string) *TimeWindowStat {
	b := s.CurrentBucket()
	return s.WindowStat(resourceID, b, b+BucketWidthMillis)
}

// PreviousSecondStat ms 所在秒的前一秒的统计
func (s *FlowStat) PreviousSecondStat(resourceID string, ms int64) *TimeWindowStat {
	end := BucketOf(ms)
	return s.WindowStat(resourceID, end-BucketWidthMillis, end)
}

// SeriesStat 将 [start, end) 切分为宽度 widthSec 秒的连续子窗口并逐个聚合。
// 宽度小于 1 或区间不足一个宽度时返回空切片；末尾不足一个宽度的部分被丢弃。
func (s *FlowStat) SeriesStat(resourceID string, start, end, widthSec int64) []TimeWindowStat {
	sb, eb, width, ok := seriesRange(start, end, widthSec)
	if !ok {
		return []TimeWindowStat{}
	}
	rs, found := s.reg.get(resourceID)
	if !found {
		return []TimeWindowStat{}
	}
	return series(rs, sb, eb, width)
}

// ResourceSeries 对全部资源执行 SeriesStat，省略没有任何窗口的资源
func (s *FlowStat) ResourceSeries(start, end, widthSec int64) []ResourceTimeWindowStat {
	sb, eb, width, ok := seriesRange(start, end, widthSec)
	if !ok {
		return []ResourceTimeWindowStat{}
	}
	all := s.reg.snapshot()
	out := make([]ResourceTimeWindowStat, 0, len(all))
	for _, rs := range all {
		if ws := series(rs, sb, eb, width); len(ws) > 0 {
			out = append(out, ResourceTimeWindowStat{ResourceID: rs.ID(), Windows: ws})
		}
	}
	return out
}

func seriesRange(start, end, widthSec int64) (sb, eb, width int64, ok bool) {
	sb, eb = snapRange(start, end)
	if widthSec < 1 || (eb-sb)/1000 < widthSec {
		return 0, 0, 0, false
	}
	return sb, eb, widthSec * 1000, true
}

func series(rs *ResourceStat, sb, eb, width int64) []TimeWindowStat {
	out := make([]TimeWindowStat, 0, (eb-sb)/width)
	for ws, we := sb, sb+width; we <= eb; ws, we = ws+width, we+width {
		out = append(out, *rs.WindowStat(ws, we))
	}
	return out
}

// CurrentConcurrency 资源当前的在途请求数，未跟踪的资源为 0
func (s *FlowStat) CurrentConcurrency(resourceID string) int64 {
	rs, ok := s.reg.get(resourceID)
	if !ok {
		return 0
	}
	return rs.Concurrency()
}
