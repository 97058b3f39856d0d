package models

import "time"

// ConfigUpdateEvent is published whenever a channel or route is
// created, updated, deleted, or toggled through the admin API, so a
// running dispatch process can refresh its in-memory channel cache.
type ConfigUpdateEvent struct {
	EventType   string                 `json:"event_type"`
	ServiceType string                 `json:"service_type"`
	ChannelID   string                 `json:"channel_id,omitempty"`
	Action      string                 `json:"action"`
	Timestamp   time.Time              `json:"timestamp"`
	ChangedBy   string                 `json:"changed_by,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypeChannelUpdated = "channel_updated"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionReload = "reload"
)

const (
	ServiceTypeRouter = "router"
)
