package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/client"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port      string
	LogLevel  string
	LogFormat string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	WorkerCount int

	BubbleBaseURL       string
	BubbleAPIToken      string
	BubbleDataType      string
	BubbleLegacyIDField string
	BubbleTimeout       time.Duration
	BubblePageSize      int
	RecordCacheTTL      time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LinkerTopic    string
	LinkerGroupID  string
	LinkerDLQTopic string

	Log    *logger.Logger
	Client *client.Client
}

// FromEnv reads the configuration without validating it or building the
// logger.
func FromEnv() *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port:      getEnvStr(EnvPort, DefaultPort),
		LogLevel:  getEnvStr(EnvLogLevel, DefaultLogLevel),
		LogFormat: getEnvStr(EnvLogFormat, DefaultLogFormat),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		WorkerCount: getEnvNum(EnvWorkerCount, DefaultWorkerCount),

		BubbleBaseURL:       getEnvStr(EnvBubbleBaseURL, ""),
		BubbleAPIToken:      getEnvStr(EnvBubbleAPIToken, ""),
		BubbleDataType:      getEnvStr(EnvBubbleDataType, DefaultBubbleDataType),
		BubbleLegacyIDField: getEnvStr(EnvBubbleLegacyIDField, DefaultBubbleLegacyIDField),
		BubbleTimeout:       getEnvDuration(EnvBubbleTimeout, DefaultBubbleTimeout),
		BubblePageSize:      getEnvNum(EnvBubblePageSize, DefaultBubblePageSize),
		RecordCacheTTL:      getEnvDuration(EnvRecordCacheTTL, DefaultRecordCacheTTL),

		RedisAddr:     getEnvStr(EnvRedisAddr, ""),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		LinkerTopic:    getEnvStr(EnvLinkerTopic, DefaultLinkerTopic),
		LinkerGroupID:  getEnvStr(EnvLinkerGroupID, DefaultLinkerGroupID),
		LinkerDLQTopic: getEnvStr(EnvLinkerDLQTopic, DefaultLinkerDLQTopic),

		Client: client.NewClient(),
	}
}

func Load(serviceName string) *Config {
	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: cfg.LogFormat != logger.TEXT,
		Service:   serviceName,
	})

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects the shared throttle store. It is a no-op when REDIS_ADDR
// is unset.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !reMongoURI.MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.LogFormat != logger.JSON && cfg.LogFormat != logger.TEXT {
		errors = append(errors, fmt.Sprintf("LogFormat must be 'json' or 'text', got: %s", cfg.LogFormat))
	}

	for name, d := range map[string]time.Duration{
		"MongoConnTimeout": cfg.MongoConnTimeout,
		"ReadTimeout":      cfg.ReadTimeout,
		"WriteTimeout":     cfg.WriteTimeout,
		"IdleTimeout":      cfg.IdleTimeout,
		"ShutdownTimeout":  cfg.ShutdownTimeout,
		"BubbleTimeout":    cfg.BubbleTimeout,
		"RecordCacheTTL":   cfg.RecordCacheTTL,
	} {
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if cfg.WorkerCount <= 0 {
		errors = append(errors, fmt.Sprintf("WorkerCount must be positive, got: %d", cfg.WorkerCount))
	}
	if cfg.BubblePageSize <= 0 || cfg.BubblePageSize > MaxBubblePageSize {
		errors = append(errors, fmt.Sprintf("BubblePageSize must be between 1 and %d, got: %d", MaxBubblePageSize, cfg.BubblePageSize))
	}
	if cfg.BubbleBaseURL != "" {
		if u, err := url.Parse(cfg.BubbleBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("BubbleBaseURL must be an absolute http(s) URL, got: %s", cfg.BubbleBaseURL))
		}
	}
	if cfg.BubbleDataType == "" {
		errors = append(errors, "BubbleDataType cannot be empty")
	}
	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}
	if cfg.LinkerTopic == "" {
		errors = append(errors, "LinkerTopic cannot be empty")
	}
	if cfg.LinkerGroupID == "" {
		errors = append(errors, "LinkerGroupID cannot be empty")
	}
	if cfg.LinkerDLQTopic == cfg.LinkerTopic {
		errors = append(errors, "LinkerDLQTopic must differ from LinkerTopic")
	}

	return joinErrors(errors)
}

// RequireBubble reports whether the record fetcher can be built. Commands that
// never talk to Bubble (migrate, reset) skip it.
func (cfg *Config) RequireBubble() error {
	var errors []string
	if cfg.BubbleBaseURL == "" {
		errors = append(errors, "BubbleBaseURL cannot be empty")
	}
	if cfg.BubbleAPIToken == "" {
		errors = append(errors, "BubbleAPIToken cannot be empty")
	}
	return joinErrors(errors)
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"worker_count", cfg.WorkerCount,
		"bubble_base_url", cfg.BubbleBaseURL,
		"bubble_token_set", cfg.BubbleAPIToken != "",
		"bubble_data_type", cfg.BubbleDataType,
		"bubble_legacy_id_field", cfg.BubbleLegacyIDField,
		"bubble_timeout", cfg.BubbleTimeout,
		"bubble_page_size", cfg.BubblePageSize,
		"record_cache_ttl", cfg.RecordCacheTTL,
		"redis_addr", cfg.RedisAddr,
		"linker_topic", cfg.LinkerTopic,
		"linker_group_id", cfg.LinkerGroupID,
		"linker_dlq_topic", cfg.LinkerDLQTopic,
	)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

var (
	reMongoURI        = regexp.MustCompile(`^mongodb(\+srv)?://.+`)
	reMongoCredential = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
)

func redactMongoURI(uri string) string {
	return reMongoCredential.ReplaceAllString(uri, "${1}***:***@")
}

func joinErrors(errors []string) error {
	if len(errors) == 0 {
		return nil
	}
	errMsg := "Configuration validation failed:\n"
	for i, err := range errors {
		errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
	}
	return fmt.Errorf("%s", errMsg)
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
