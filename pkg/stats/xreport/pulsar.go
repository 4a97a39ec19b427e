package xreport

import (
	"context"
	"fmt"

	"github.com/apache/pulsar-client-go/pulsar"
)

// PulsarSink 把批次同步发送到 Pulsar topic。客户端由调用方管理，生产者随 Close 关闭。
type PulsarSink struct {
	producer pulsar.Producer
}

func NewPulsarSink(client pulsar.Client, topic string) (*PulsarSink, error) {
	if topic == "" {
		topic = DefaultQueue
	}
	p, err := client.CreateProducer(pulsar.ProducerOptions{Topic: topic})
	if err != nil {
		return nil, fmt.Errorf("xreport: create pulsar producer: %w", err)
	}
	return &PulsarSink{producer: p}, nil
}

func (s *PulsarSink) Topic() string {
	return s.producer.Topic()
}

func (s *PulsarSink) Publish(ctx context.Context, payload []byte) error {
	_, err := s.producer.Send(ctx, &pulsar.ProducerMessage{Payload: payload})
	return err
}

func (s *PulsarSink) Close() error {
	s.producer.Close()
	return nil
}

var _ Sink = (*PulsarSink)(nil)
