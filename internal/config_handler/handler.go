package config_handler

import (
	"context"
	"encoding/json"

	"github.com/openhie/txrouter/internal/logger"
	"github.com/openhie/txrouter/pkg/models"
)

// ConfigReloader refreshes the in-memory channel cache a running
// dispatch process holds, so admin-API edits take effect without a
// restart.
type ConfigReloader interface {
	ReloadChannels(ctx context.Context) error
}

// Handler consumes channel-updated events off the config-update topic
// and triggers a reload when the event matches what this process cares
// about.
type Handler struct {
	expectedEventType   string
	expectedServiceType string
	reloader            ConfigReloader
	logger              logger.Logger
}

func NewHandler(expectedEventType, expectedServiceType string, reloader ConfigReloader, log logger.Logger) *Handler {
	return &Handler{
		expectedEventType:   expectedEventType,
		expectedServiceType: expectedServiceType,
		reloader:            reloader,
		logger:              log,
	}
}

func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	eventType, ok := envelope.Metadata.Extra["event_type"].(string)
	if !ok {
		if eventTypeVal, ok := envelope.Payload["event_type"].(string); ok {
			eventType = eventTypeVal
		} else {
			h.logger.Warnw("Config event missing event_type", "id", envelope.ID)
			return nil
		}
	}

	if eventType != h.expectedEventType {
		return nil
	}

	serviceType, ok := envelope.Metadata.Extra["service_type"].(string)
	if !ok {
		if serviceTypeVal, ok := envelope.Payload["service_type"].(string); ok {
			serviceType = serviceTypeVal
		} else {
			h.logger.Warnw("Config event missing service_type", "id", envelope.ID)
			return nil
		}
	}

	if serviceType != h.expectedServiceType {
		return nil
	}

	var event models.ConfigUpdateEvent
	eventJSON, err := json.Marshal(envelope.Payload)
	if err != nil {
		h.logger.Errorw("Failed to marshal event payload", "error", err, "id", envelope.ID)
		return err
	}

	if err := json.Unmarshal(eventJSON, &event); err != nil {
		h.logger.Errorw("Failed to unmarshal config event", "error", err, "id", envelope.ID)
		return err
	}

	h.logger.Infow("Received channel config update event",
		"event_type", event.EventType,
		"action", event.Action,
		"channel_id", event.ChannelID,
	)

	if h.reloader == nil {
		return nil
	}

	if err := h.reloader.ReloadChannels(ctx); err != nil {
		h.logger.Errorw("Failed to reload channels after config update", "error", err)
		return err
	}
	h.logger.Infow("Channels reloaded successfully after config update", "action", event.Action)

	return nil
}
