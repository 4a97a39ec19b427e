package xflow

//go:generate mockgen -source=breaker.go -destination=mock_breaker_test.go -package=xflow

// CircuitBreaker 熔断策略，由引擎在准入、释放与每秒采样时调用。
//
// 实现需并发安全。resourceID 为只包含 service 与 path 的熔断资源，
// 见 [Chain.BreakerResourceID]。
type CircuitBreaker interface {
	// Permit 是否放行一次请求。放行后引擎保证随后调用一次 Observe。
	Permit(resourceID string, bucketID int64) bool

	// Observe 上报一次已放行请求的结果
	Observe(resourceID string, bucketID int64, success bool)

	// CorrectState 每秒调用一次，驱动时间相关的状态迁移（如 open → half-open）。
	// tracked 为 false 表示该资源未配置熔断。
	CorrectState(resourceID string, bucketID int64) (state string, tracked bool)
}

// noopBreaker 未配置熔断器时使用，始终放行
type noopBreaker struct{}

func (noopBreaker) Permit(string, int64) bool                 { return true }
func (noopBreaker) Observe(string, int64, bool)               {}
func (noopBreaker) CorrectState(string, int64) (string, bool) { return "", false }
