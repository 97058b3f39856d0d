package management

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafka "github.com/openhie/txrouter/internal/broker"
	"github.com/openhie/txrouter/pkg/models"
)

// ConfigEventProducer publishes channel-updated events so a running
// dispatch process can reload its in-memory channel cache.
type ConfigEventProducer struct {
	producer kafka.Producer
	topic    string
}

func NewConfigEventProducer(producer kafka.Producer, topic string) *ConfigEventProducer {
	return &ConfigEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *ConfigEventProducer) PublishChannelEvent(ctx context.Context, action, channelID, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType:   models.EventTypeChannelUpdated,
		ServiceType: models.ServiceTypeRouter,
		ChannelID:   channelID,
		Action:      action,
		Timestamp:   time.Now(),
		ChangedBy:   changedBy,
	}
	return p.publishEvent(ctx, event)
}

func (p *ConfigEventProducer) publishEvent(ctx context.Context, event models.ConfigUpdateEvent) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal config event: %w", err)
	}

	var eventData map[string]interface{}
	if err := json.Unmarshal(eventJSON, &eventData); err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}

	envelope := models.MessageEnvelope{
		ID:        uuid.New().String(),
		Source:    "management-service",
		Timestamp: time.Now(),
		Payload:   eventData,
		Metadata:  models.Metadata{Extra: map[string]interface{}{}},
	}

	envelope.Metadata.Extra["event_type"] = event.EventType
	envelope.Metadata.Extra["service_type"] = event.ServiceType

	return p.producer.Publish(ctx, p.topic, envelope)
}
