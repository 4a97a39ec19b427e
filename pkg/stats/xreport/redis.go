package xreport

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// DefaultQueue Redis 列表的默认键名
const DefaultQueue = "fizz_resource_access_stat"

// RedisSink 以 RPUSH 把批次追加到 Redis 列表，客户端由调用方管理
type RedisSink struct {
	client redis.Cmdable
	queue  string
}

// NewRedisSink queue 为空时使用 DefaultQueue
func NewRedisSink(client redis.Cmdable, queue string) *RedisSink {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RedisSink{client: client, queue: queue}
}

func (s *RedisSink) Queue() string {
	return s.queue
}

func (s *RedisSink) Publish(ctx context.Context, payload []byte) error {
	return s.client.RPush(ctx, s.queue, payload).Err()
}

// Close 不关闭客户端
func (s *RedisSink) Close() error {
	return nil
}

var _ Sink = (*RedisSink)(nil)
