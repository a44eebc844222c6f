package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Storage      StorageConfig
	MessageLog   MessageLogConfig
	Chat         ChatConfig
	Realtime     RealtimeConfig
	Worker       WorkerConfig
	Directory    DirectoryConfig
	Telemetry    TelemetryConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN                 string
	MaxConns            int32
	MinConns            int32
	RunMigrations       bool
	ConnMaxIdleSec      int32
	ConnMaxLifeSec      int32
	StatementTimeoutSec int
}

// RedisConfig holds the shared Redis connection used by the message log,
// the directory cache and the realtime bus.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	DialTimeoutMs  int
	ReadTimeoutMs  int
	WriteTimeoutMs int
	// Required makes an unreachable server fatal at start-up.
	Required       bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
	Service  string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// StorageConfig configures the attachment object store.
type StorageConfig struct {
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretKey       string
	S3UsePathStyle    bool
	LocalPath         string
	LocalBaseURL      string
	PresignTTLSeconds int
	PresignTimeoutMs  int
	MaxUploadBytes    int64
}

// MessageLogConfig configures the secondary append store.
type MessageLogConfig struct {
	Driver          string
	StreamPrefix    string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	AppendTimeoutMs int
}

// ChatConfig bounds user supplied chat content.
type ChatConfig struct {
	MaxSubjectLength int
	MaxContentLength int
	PreviewLength    int
	DefaultPageSize  int
	MaxPageSize      int
}

// RealtimeConfig configures live fan-out.
type RealtimeConfig struct {
	OutboundBuffer  int
	BusEnabled      bool
	BusChannel      string
	PingIntervalSec int
}

// WorkerConfig configures background reconciliation.
type WorkerConfig struct {
	ReconcileIntervalSec int
	ReconcileBatchSize   int
	ReconcileGraceSec    int
}

// DirectoryConfig configures user directory lookups.
type DirectoryConfig struct {
	CacheTTLSeconds int
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// NotificationConfig holds offline-recipient notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-chat"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:                 os.Getenv("POSTGRES_DSN"),
			MaxConns:            maxConns,
			MinConns:            minConns,
			RunMigrations:       runMigrations,
			ConnMaxIdleSec:      connMaxIdle,
			ConnMaxLifeSec:      connMaxLife,
			StatementTimeoutSec: getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_SECONDS", 5),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			PoolSize:       getEnvAsInt("REDIS_POOL_SIZE", 20),
			DialTimeoutMs:  getEnvAsInt("REDIS_DIAL_TIMEOUT_MS", 2000),
			ReadTimeoutMs:  getEnvAsInt("REDIS_READ_TIMEOUT_MS", 1000),
			WriteTimeoutMs: getEnvAsInt("REDIS_WRITE_TIMEOUT_MS", 1000),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
			Service:  getEnv("APP_NAME", "support-chat"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Storage: StorageConfig{
			S3Bucket:          os.Getenv("ATTACHMENTS_S3_BUCKET"),
			S3Region:          getEnv("ATTACHMENTS_S3_REGION", "us-east-1"),
			S3Endpoint:        os.Getenv("ATTACHMENTS_S3_ENDPOINT"),
			S3AccessKeyID:     os.Getenv("ATTACHMENTS_S3_ACCESS_KEY_ID"),
			S3SecretKey:       os.Getenv("ATTACHMENTS_S3_SECRET_ACCESS_KEY"),
			S3UsePathStyle:    getEnvAsBool("ATTACHMENTS_S3_USE_PATH_STYLE", false),
			LocalPath:         getEnv("ATTACHMENTS_LOCAL_PATH", "./data/attachments"),
			LocalBaseURL:      os.Getenv("ATTACHMENTS_LOCAL_BASE_URL"),
			PresignTTLSeconds: getEnvAsInt("ATTACHMENTS_PRESIGN_TTL_SECONDS", 900),
			PresignTimeoutMs:  getEnvAsInt("ATTACHMENTS_PRESIGN_TIMEOUT_MS", 2000),
			MaxUploadBytes:    int64(getEnvAsInt("ATTACHMENTS_MAX_UPLOAD_BYTES", 10*1024*1024)),
		},
		MessageLog: MessageLogConfig{
			Driver:          strings.ToLower(getEnv("MESSAGE_LOG_DRIVER", "redis")),
			StreamPrefix:    getEnv("MESSAGE_LOG_STREAM_PREFIX", "chat:messages:"),
			MongoURI:        os.Getenv("MESSAGE_LOG_MONGO_URI"),
			MongoDatabase:   getEnv("MESSAGE_LOG_MONGO_DATABASE", "support_chat"),
			MongoCollection: getEnv("MESSAGE_LOG_MONGO_COLLECTION", "chat_messages"),
			AppendTimeoutMs: getEnvAsInt("MESSAGE_LOG_APPEND_TIMEOUT_MS", 2000),
		},
		Chat: ChatConfig{
			MaxSubjectLength: getEnvAsInt("CHAT_MAX_SUBJECT_LENGTH", 255),
			MaxContentLength: getEnvAsInt("CHAT_MAX_CONTENT_LENGTH", 5000),
			PreviewLength:    getEnvAsInt("CHAT_PREVIEW_LENGTH", 200),
			DefaultPageSize:  getEnvAsInt("CHAT_DEFAULT_PAGE_SIZE", 50),
			MaxPageSize:      getEnvAsInt("CHAT_MAX_PAGE_SIZE", 200),
		},
		Realtime: RealtimeConfig{
			OutboundBuffer:  getEnvAsInt("REALTIME_OUTBOUND_BUFFER", 32),
			BusEnabled:      getEnvAsBool("REALTIME_BUS_ENABLED", false),
			BusChannel:      getEnv("REALTIME_BUS_CHANNEL", "support-chat:events"),
			PingIntervalSec: getEnvAsInt("REALTIME_PING_INTERVAL_SECONDS", 30),
		},
		Worker: WorkerConfig{
			ReconcileIntervalSec: getEnvAsInt("WORKER_RECONCILE_INTERVAL_SECONDS", 60),
			ReconcileBatchSize:   getEnvAsInt("WORKER_RECONCILE_BATCH_SIZE", 100),
			ReconcileGraceSec:    getEnvAsInt("WORKER_RECONCILE_GRACE_SECONDS", 30),
		},
		Directory: DirectoryConfig{
			CacheTTLSeconds: getEnvAsInt("DIRECTORY_CACHE_TTL_SECONDS", 300),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	switch cfg.MessageLog.Driver {
	case "redis", "mongo", "none":
	default:
		return nil, fmt.Errorf("invalid MESSAGE_LOG_DRIVER %q", cfg.MessageLog.Driver)
	}
	cfg.Redis.Required = cfg.MessageLog.Driver == "redis" || cfg.Realtime.BusEnabled

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PresignTTL returns the lifetime of retrieval URLs.
func (s StorageConfig) PresignTTL() time.Duration {
	return time.Duration(s.PresignTTLSeconds) * time.Second
}

// PresignTimeout bounds a single presign call.
func (s StorageConfig) PresignTimeout() time.Duration {
	return time.Duration(s.PresignTimeoutMs) * time.Millisecond
}

// S3Enabled reports whether S3 credentials are present.
func (s StorageConfig) S3Enabled() bool {
	return strings.TrimSpace(s.S3Bucket) != "" && strings.TrimSpace(s.S3AccessKeyID) != "" && strings.TrimSpace(s.S3SecretKey) != ""
}

// AppendTimeout bounds a single secondary-store append.
func (m MessageLogConfig) AppendTimeout() time.Duration {
	return time.Duration(m.AppendTimeoutMs) * time.Millisecond
}

// DialTimeout bounds connecting and the start-up ping.
func (r RedisConfig) DialTimeout() time.Duration {
	return time.Duration(r.DialTimeoutMs) * time.Millisecond
}

// ReadTimeout bounds a single command read.
func (r RedisConfig) ReadTimeout() time.Duration {
	return time.Duration(r.ReadTimeoutMs) * time.Millisecond
}

// WriteTimeout bounds a single command write.
func (r RedisConfig) WriteTimeout() time.Duration {
	return time.Duration(r.WriteTimeoutMs) * time.Millisecond
}

// ReconcileInterval returns the reconciliation tick.
func (w WorkerConfig) ReconcileInterval() time.Duration {
	return time.Duration(w.ReconcileIntervalSec) * time.Second
}

// ReconcileGrace is how old an unreplicated message must be before it is retried.
func (w WorkerConfig) ReconcileGrace() time.Duration {
	return time.Duration(w.ReconcileGraceSec) * time.Second
}

// CacheTTL returns how long directory entries stay cached.
func (d DirectoryConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLSeconds) * time.Second
}

// PingInterval returns the websocket keepalive interval.
func (r RealtimeConfig) PingInterval() time.Duration {
	return time.Duration(r.PingIntervalSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
