package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	DefaultMongoDBName = "txrouter"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit       = 100
	MaxLimit           = 1000
	DefaultTruncateLen = 100
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	DefaultRouteTimeout   = 30 * time.Second
	DefaultConfigTopic    = "channel_config_updates"
)
