package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "linker"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultWorkerCount = 5

	DefaultBubbleDataType      = "company"
	DefaultBubbleLegacyIDField = "legacy_id"
	DefaultBubbleTimeout       = 10 * time.Second
	DefaultBubblePageSize      = 100
	DefaultRecordCacheTTL      = 10 * time.Minute

	DefaultRedisDB = 0

	DefaultLinkerTopic    = "bubble.records"
	DefaultLinkerGroupID  = "bubble-mongo-linker"
	DefaultLinkerDLQTopic = "bubble.records.dlq"

	DefaultPaginationLimit = 100
	MaxBubblePageSize      = 100
)
