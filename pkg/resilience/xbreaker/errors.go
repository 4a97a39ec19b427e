package xbreaker

import (
	"errors"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrInvalidRule 熔断规则字段不合法
	ErrInvalidRule = errors.New("xbreaker: invalid rule")

	// ErrUnknownStrategy 未知的熔断策略
	ErrUnknownStrategy = errors.New("xbreaker: unknown strategy")

	// ErrDuplicateRule 同一资源配置了多条规则
	ErrDuplicateRule = errors.New("xbreaker: duplicate rule")
)

// errRequestFailed 上报失败结果时传给 gobreaker 的占位错误
var errRequestFailed = errors.New("xbreaker: request failed")

// IsOpen 检查错误是否是熔断器打开错误
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsTooManyRequests 检查错误是否是半开状态下探测请求过多
func IsTooManyRequests(err error) bool {
	return errors.Is(err, gobreaker.ErrTooManyRequests)
}
