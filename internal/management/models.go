package management

import "time"

// Channel is the persisted admin-API view of a routing channel. It is
// the document stored in Mongo and mirrors internal/router.Channel,
// adding the identity and audit fields the dispatch engine doesn't
// need at runtime.
type Channel struct {
	ID         string        `json:"id" bson:"_id,omitempty"`
	Name       string        `json:"name" bson:"name"`
	URLPattern string        `json:"url_pattern" bson:"url_pattern"`
	Methods    []string      `json:"methods" bson:"methods"`
	TimeoutMs  int           `json:"timeout_ms" bson:"timeout_ms"`
	Routes     []RouteConfig `json:"routes" bson:"routes"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" bson:"updated_at"`
}

// RouteConfig is the persisted shape of one route under a channel.
type RouteConfig struct {
	Name    string `json:"name" bson:"name"`
	Status  string `json:"status" bson:"status"`
	Primary bool   `json:"primary" bson:"primary"`
	Type    string `json:"type" bson:"type"`

	Host          string `json:"host,omitempty" bson:"host,omitempty"`
	Port          int    `json:"port,omitempty" bson:"port,omitempty"`
	Secured       bool   `json:"secured,omitempty" bson:"secured,omitempty"`
	Path          string `json:"path,omitempty" bson:"path,omitempty"`
	PathTransform string `json:"path_transform,omitempty" bson:"path_transform,omitempty"`

	Topic    string `json:"topic,omitempty" bson:"topic,omitempty"`
	ClientID string `json:"client_id,omitempty" bson:"client_id,omitempty"`

	TimeoutMs int    `json:"timeout_ms,omitempty" bson:"timeout_ms,omitempty"`
	Cert      string `json:"cert,omitempty" bson:"cert,omitempty"`
	Username  string `json:"username,omitempty" bson:"username,omitempty"`
	Password  string `json:"password,omitempty" bson:"password,omitempty"`

	ForwardAuthHeader   bool   `json:"forward_auth_header,omitempty" bson:"forward_auth_header,omitempty"`
	WaitPrimaryResponse bool   `json:"wait_primary_response,omitempty" bson:"wait_primary_response,omitempty"`
	StatusCodesCheck    string `json:"status_codes_check,omitempty" bson:"status_codes_check,omitempty"`
}

type CreateChannelRequest struct {
	Name       string        `json:"name" binding:"required"`
	URLPattern string        `json:"url_pattern" binding:"required"`
	Methods    []string      `json:"methods"`
	TimeoutMs  int           `json:"timeout_ms"`
	Routes     []RouteConfig `json:"routes" binding:"required"`
}

type UpdateChannelRequest struct {
	Name       *string        `json:"name"`
	URLPattern *string        `json:"url_pattern"`
	Methods    *[]string      `json:"methods"`
	TimeoutMs  *int           `json:"timeout_ms"`
	Routes     *[]RouteConfig `json:"routes"`
}

// ChannelVersion is a point-in-time snapshot of a channel, recorded on
// every create/update so an operator can see what changed and revert.
type ChannelVersion struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	ChannelID string    `json:"channel_id" bson:"channel_id"`
	Data      string    `json:"data" bson:"data"`
	Version   int       `json:"version" bson:"version"`
	ChangedBy string    `json:"changed_by,omitempty" bson:"changed_by,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// AuditLog is one recorded change to a channel's configuration.
type AuditLog struct {
	ID        string                 `json:"id" bson:"_id,omitempty"`
	ChannelID *string                `json:"channel_id,omitempty" bson:"channel_id,omitempty"`
	Action    string                 `json:"action" bson:"action"`
	OldValue  map[string]interface{} `json:"old_value,omitempty" bson:"old_value,omitempty"`
	NewValue  map[string]interface{} `json:"new_value,omitempty" bson:"new_value,omitempty"`
	ChangedBy string                 `json:"changed_by" bson:"changed_by"`
	Timestamp time.Time              `json:"timestamp" bson:"timestamp"`
}
