package xreport

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// DefaultFlushTimeout 关闭 Kafka 生产者时等待队列清空的时长
const DefaultFlushTimeout = 5 * time.Second

// kafkaProducer *kafka.Producer 的子集
type kafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaSink 把批次写入 Kafka topic，并等待投递回执
type KafkaSink struct {
	producer kafkaProducer
	topic    string
}

// NewKafkaSink 按 config 创建生产者，config 需包含 bootstrap.servers
func NewKafkaSink(config *kafka.ConfigMap, topic string) (*KafkaSink, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	p, err := kafka.NewProducer(config)
	if err != nil {
		return nil, fmt.Errorf("xreport: create kafka producer: %w", err)
	}
	return newKafkaSink(p, topic), nil
}

func newKafkaSink(p kafkaProducer, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultQueue
	}
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Publish(ctx context.Context, payload []byte) error {
	delivery := make(chan kafka.Event, 1)
	err := s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
		Value:          payload,
	}, delivery)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-delivery:
		switch e := ev.(type) {
		case *kafka.Message:
			return e.TopicPartition.Error
		case kafka.Error:
			return e
		default:
			return fmt.Errorf("xreport: unexpected kafka event %v", ev)
		}
	}
}

// Close 等待未投递的消息后关闭生产者
func (s *KafkaSink) Close() error {
	remaining := s.producer.Flush(int(DefaultFlushTimeout.Milliseconds()))
	s.producer.Close()
	if remaining > 0 {
		return fmt.Errorf("xreport: %d kafka messages not flushed", remaining)
	}
	return nil
}

var _ Sink = (*KafkaSink)(nil)
