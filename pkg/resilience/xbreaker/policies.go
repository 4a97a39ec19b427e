package xbreaker

import "github.com/sony/gobreaker/v2"

// Counts 统计窗口内的请求计数，即 gobreaker 的 Counts
type Counts = gobreaker.Counts

// TripPolicy 熔断判定策略
//
// 熔断器处于 closed 状态且请求失败时调用，返回 true 则进入 open 状态。
type TripPolicy interface {
	ReadyToTrip(counts Counts) bool
}

// ConsecutiveFailuresPolicy 连续失败熔断策略
type ConsecutiveFailuresPolicy struct {
	threshold   uint32
	minRequests uint32
}

// NewConsecutiveFailures 连续失败 threshold 次且窗口内请求数不少于 minRequests 时熔断。
// threshold 小于 1 时按 1 处理。
func NewConsecutiveFailures(threshold, minRequests uint32) *ConsecutiveFailuresPolicy {
	return &ConsecutiveFailuresPolicy{threshold: max(threshold, 1), minRequests: minRequests}
}

// ReadyToTrip 判断是否应该触发熔断
func (p *ConsecutiveFailuresPolicy) ReadyToTrip(counts Counts) bool {
	return counts.Requests >= p.minRequests && counts.ConsecutiveFailures >= p.threshold
}

// Threshold 返回阈值
func (p *ConsecutiveFailuresPolicy) Threshold() uint32 {
	return p.threshold
}

// FailureRatioPolicy 失败率熔断策略
//
// 请求数达到 minRequests 后才计算失败率。
type FailureRatioPolicy struct {
	ratio       float64 // 0.0 - 1.0
	minRequests uint32
}

// NewFailureRatio 创建失败率熔断策略，ratio 被限制在 [0, 1]
//
// 示例:
//
//	policy := xbreaker.NewFailureRatio(0.5, 10)
//	// 失败率达到 50% 且请求数 >= 10 时触发熔断
func NewFailureRatio(ratio float64, minRequests uint32) *FailureRatioPolicy {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &FailureRatioPolicy{ratio: ratio, minRequests: minRequests}
}

// ReadyToTrip 判断是否应该触发熔断
func (p *FailureRatioPolicy) ReadyToTrip(counts Counts) bool {
	// 请求数为零时不计算，避免除零
	if counts.Requests == 0 || counts.Requests < p.minRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.ratio
}

// Ratio 返回失败率阈值
func (p *FailureRatioPolicy) Ratio() float64 {
	return p.ratio
}

// MinRequests 返回最小请求数
func (p *FailureRatioPolicy) MinRequests() uint32 {
	return p.minRequests
}

// FailureCountPolicy 失败次数熔断策略
//
// 统计窗口内的总失败次数，不要求连续。
type FailureCountPolicy struct {
	threshold   uint32
	minRequests uint32
}

// NewFailureCount 窗口内失败 threshold 次且请求数不少于 minRequests 时熔断。
// threshold 小于 1 时按 1 处理。
func NewFailureCount(threshold, minRequests uint32) *FailureCountPolicy {
	return &FailureCountPolicy{threshold: max(threshold, 1), minRequests: minRequests}
}

// ReadyToTrip 判断是否应该触发熔断
func (p *FailureCountPolicy) ReadyToTrip(counts Counts) bool {
	return counts.Requests >= p.minRequests && counts.TotalFailures >= p.threshold
}

// Threshold 返回阈值
func (p *FailureCountPolicy) Threshold() uint32 {
	return p.threshold
}

// CompositePolicy 组合熔断策略，任一子策略满足即熔断
type CompositePolicy struct {
	policies []TripPolicy
}

// NewCompositePolicy 创建组合熔断策略，nil 策略会被过滤。
//
// 示例:
//
//	policy := xbreaker.NewCompositePolicy(
//	    xbreaker.NewFailureCount(20, 50),
//	    xbreaker.NewFailureRatio(0.5, 50),
//	)
func NewCompositePolicy(policies ...TripPolicy) *CompositePolicy {
	filtered := make([]TripPolicy, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return &CompositePolicy{policies: filtered}
}

// ReadyToTrip 任一子策略返回 true 即触发熔断
func (p *CompositePolicy) ReadyToTrip(counts Counts) bool {
	for _, policy := range p.policies {
		if policy.ReadyToTrip(counts) {
			return true
		}
	}
	return false
}

// Policies 返回所有子策略的副本
func (p *CompositePolicy) Policies() []TripPolicy {
	if len(p.policies) == 0 {
		return nil
	}
	result := make([]TripPolicy, len(p.policies))
	copy(result, p.policies)
	return result
}
