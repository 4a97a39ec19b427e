package xquota

import "errors"

var (
	// ErrInvalidRule 限流规则字段不合法
	ErrInvalidRule = errors.New("xquota: invalid rule")

	// ErrUnknownType 未知的规则维度
	ErrUnknownType = errors.New("xquota: unknown rule type")

	// ErrDuplicateRule 同一资源配置了多条规则
	ErrDuplicateRule = errors.New("xquota: duplicate rule")
)
