package xreport

import "context"

// Sink 统计批次的投递目标。Publish 可能被重试，实现需能承受重复投递。
type Sink interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}
