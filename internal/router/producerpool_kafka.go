package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducerPool caches one *kafka.Writer per (channelName, clientId,
// timeoutMs) key, lazily constructed against the configured brokers.
// Concurrent dispatches may share a producer.
type KafkaProducerPool struct {
	brokers []string
	writers sync.Map // key -> *kafka.Writer
}

func NewKafkaProducerPool(brokers []string) *KafkaProducerPool {
	return &KafkaProducerPool{brokers: brokers}
}

type kafkaProducer struct {
	writer *kafka.Writer
}

func (p *kafkaProducer) Send(ctx context.Context, topic string, value []byte) (Ack, error) {
	msgs := []kafka.Message{{Topic: topic, Value: value, Time: time.Now()}}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return Ack{}, err
	}
	return Ack{}, nil
}

func producerPoolKey(channelName, clientID string, timeout time.Duration) string {
	return fmt.Sprintf("%s|%s|%d", channelName, clientID, timeout.Milliseconds())
}

func (p *KafkaProducerPool) GetProducer(ctx context.Context, channelName, clientID string, timeout time.Duration) (Producer, error) {
	key := producerPoolKey(channelName, clientID, timeout)

	if existing, ok := p.writers.Load(key); ok {
		return &kafkaProducer{writer: existing.(*kafka.Writer)}, nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: timeout,
	}

	actual, loaded := p.writers.LoadOrStore(key, writer)
	if loaded {
		writer.Close()
	}

	return &kafkaProducer{writer: actual.(*kafka.Writer)}, nil
}
