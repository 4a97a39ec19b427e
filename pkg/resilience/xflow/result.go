package xflow

// BlockType 拦截原因
type BlockType int

const (
	// BlockNone 未拦截
	BlockNone BlockType = iota
	// BlockConcurrentRequest 超过并发上限
	BlockConcurrentRequest
	// BlockQPS 超过每秒请求上限
	BlockQPS
	// BlockCircuitBreak 熔断器拒绝
	BlockCircuitBreak
)

func (t BlockType) String() string {
	switch t {
	case BlockConcurrentRequest:
		return "CONCURRENT_REQUEST"
	case BlockQPS:
		return "QPS"
	case BlockCircuitBreak:
		return "CIRCUIT_BREAK"
	default:
		return "NONE"
	}
}

// IncrRequestResult 准入结果。Allowed 为 false 时其余字段指明拦截的资源与原因。
type IncrRequestResult struct {
	Allowed           bool
	BlockedResourceID string
	BlockType         BlockType
}

// Success 准入成功
func Success() IncrRequestResult {
	return IncrRequestResult{Allowed: true}
}

// Blocked 被 resourceID 以 t 原因拦截
func Blocked(resourceID string, t BlockType) IncrRequestResult {
	return IncrRequestResult{BlockedResourceID: resourceID, BlockType: t}
}
