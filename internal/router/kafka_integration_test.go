//go:build integration

package router

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafkaBrokers(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return brokers
}

func TestKafkaProducerPool_PublishesAndCachesWriter(t *testing.T) {
	brokers := setupKafkaBrokers(t)
	pool := NewKafkaProducerPool(brokers)

	ctx := context.Background()
	producer, err := pool.GetProducer(ctx, "fhir", "client-1", 5*time.Second)
	require.NoError(t, err)

	again, err := pool.GetProducer(ctx, "fhir", "client-1", 5*time.Second)
	require.NoError(t, err)
	require.Same(t, producer.(*kafkaProducer).writer, again.(*kafkaProducer).writer)

	_, err = producer.Send(ctx, "audit-topic", []byte("hello"))
	require.NoError(t, err)

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: "audit-topic", GroupID: "test-group"})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)
	require.Equal(t, "hello", string(msg.Value))
}
