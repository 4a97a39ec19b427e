package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xflow/pkg/stats/xreport"
)

const (
	sinkNone   = "none"
	sinkStdout = "stdout"
	sinkRedis  = "redis"
	sinkKafka  = "kafka"
	sinkPulsar = "pulsar"
)

// writerSink 每个批次写一行 JSON
type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newWriterSink(w io.Writer) *writerSink {
	return &writerSink{w: w}
}

func (s *writerSink) Publish(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s\n", payload)
	return err
}

func (s *writerSink) Close() error {
	return nil
}

// closingSink 关闭 Sink 的同时释放其底层客户端
type closingSink struct {
	xreport.Sink
	closeClient func() error
}

func (s closingSink) Close() error {
	err := s.Sink.Close()
	if cerr := s.closeClient(); err == nil {
		err = cerr
	}
	return err
}

// buildSink 返回 nil 表示不导出
func buildSink(c reportConfig, stdout io.Writer) (xreport.Sink, error) {
	switch c.Sink {
	case "", sinkNone:
		return nil, nil
	case sinkStdout:
		return newWriterSink(stdout), nil
	case sinkRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		return closingSink{Sink: xreport.NewRedisSink(client, c.Queue), closeClient: client.Close}, nil
	case sinkKafka:
		return xreport.NewKafkaSink(&kafka.ConfigMap{"bootstrap.servers": c.Kafka.Brokers}, c.Queue)
	case sinkPulsar:
		client, err := pulsar.NewClient(pulsar.ClientOptions{URL: c.Pulsar.URL})
		if err != nil {
			return nil, fmt.Errorf("create pulsar client: %w", err)
		}
		sink, err := xreport.NewPulsarSink(client, c.Queue)
		if err != nil {
			client.Close()
			return nil, err
		}
		return closingSink{Sink: sink, closeClient: func() error {
			client.Close()
			return nil
		}}, nil
	default:
		return nil, &usageError{msg: fmt.Sprintf("unknown report sink %q", c.Sink)}
	}
}
