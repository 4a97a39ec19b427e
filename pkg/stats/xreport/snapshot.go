package xreport

import (
	"github.com/omeyang/xflow/pkg/resilience/xflow"
)

// Snapshot 一轮导出的统计批次，Start 与 End 为毫秒时间戳，区间左闭右开
type Snapshot struct {
	BatchID   string                         `json:"batchId"`
	Node      string                         `json:"node,omitempty"`
	Start     int64                          `json:"start"`
	End       int64                          `json:"end"`
	Resources []xflow.ResourceTimeWindowStat `json:"resources"`
}

// Source 统计来源，*xflow.FlowStat 满足该接口
type Source interface {
	ResourceSeries(start, end, widthSec int64) []xflow.ResourceTimeWindowStat
}

var _ Source = (*xflow.FlowStat)(nil)
