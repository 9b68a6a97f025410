package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvWorkerCount = "WORKER_COUNT"

	EnvBubbleBaseURL       = "BUBBLE_BASE_URL"
	EnvBubbleAPIToken      = "BUBBLE_API_TOKEN"
	EnvBubbleDataType      = "BUBBLE_DATA_TYPE"
	EnvBubbleLegacyIDField = "BUBBLE_LEGACY_ID_FIELD"
	EnvBubbleTimeout       = "BUBBLE_TIMEOUT"
	EnvBubblePageSize      = "BUBBLE_PAGE_SIZE"
	EnvRecordCacheTTL      = "RECORD_CACHE_TTL"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvLinkerTopic    = "LINKER_TOPIC"
	EnvLinkerGroupID  = "LINKER_GROUP_ID"
	EnvLinkerDLQTopic = "LINKER_DLQ_TOPIC"
)
