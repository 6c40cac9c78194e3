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
	Gmail        GmailConfig
	Ingestion    IngestionConfig
	Reply        ReplyConfig
	Retry        RetryConfig
	Breaker      BreakerConfig
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
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level   string
	Output  string
	Format  string
	Service string
}

// AuthConfig defines authentication parameters for the HTTP boundary.
type AuthConfig struct {
	JWTSecret             string
	JWTIssuer             string
	AccessTokenTTLMinutes int
	SchedulerKeyHash      string
	BcryptCost            int
}

// GmailConfig locates provider credentials.
type GmailConfig struct {
	CredentialsFile string
	TokenFile       string
	ImpersonateUser string
	UserID          string
	Sender          string
	CallTimeout     time.Duration
}

// IngestionConfig holds defaults used when the settings document omits them.
type IngestionConfig struct {
	DefaultMaxMessages    int
	DefaultProcessedLabel string
	RunLockTTL            time.Duration
	LabelCacheTTL         time.Duration
}

// ReplyConfig names the resolution labels applied after a reply.
type ReplyConfig struct {
	ClosedLabel     string
	RMALabel        string
	MaterialLabel   string
	NoResponseLabel string
}

// RetryConfig is the shared backoff policy for provider calls.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// BreakerConfig tunes the provider circuit breaker.
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
	QueueSize  int
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

	appName := getEnv("APP_NAME", "sector-mail-desk")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 300),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  os.Getenv("POSTGRES_MIGRATIONS_DIR"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Output:  getEnv("LOG_OUTPUT", "stdout"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: appName,
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			JWTIssuer:             getEnv("AUTH_JWT_ISSUER", "sector-mail-desk"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			SchedulerKeyHash:      os.Getenv("AUTH_SCHEDULER_KEY_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Gmail: GmailConfig{
			CredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", "credentials.json"),
			TokenFile:       os.Getenv("GMAIL_TOKEN_FILE"),
			ImpersonateUser: os.Getenv("GMAIL_IMPERSONATE_USER"),
			UserID:          getEnv("GMAIL_USER_ID", "me"),
			Sender:          os.Getenv("GMAIL_SENDER"),
			CallTimeout:     getEnvAsDuration("GMAIL_CALL_TIMEOUT", 30*time.Second),
		},
		Ingestion: IngestionConfig{
			DefaultMaxMessages:    getEnvAsInt("INGEST_DEFAULT_MAX_MESSAGES", 50),
			DefaultProcessedLabel: getEnv("INGEST_DEFAULT_PROCESSED_LABEL", "Traité"),
			RunLockTTL:            getEnvAsDuration("INGEST_RUN_LOCK_TTL", 10*time.Minute),
			LabelCacheTTL:         getEnvAsDuration("INGEST_LABEL_CACHE_TTL", time.Hour),
		},
		Reply: ReplyConfig{
			ClosedLabel:     getEnv("LABEL_CLOSED", "Clôturé"),
			RMALabel:        getEnv("LABEL_RMA", "RMA"),
			MaterialLabel:   getEnv("LABEL_MATERIAL", "Matériel envoyé"),
			NoResponseLabel: getEnv("LABEL_NO_RESPONSE", "Sans réponse"),
		},
		Retry: RetryConfig{
			MaxAttempts:     getEnvAsInt("RETRY_MAX_ATTEMPTS", 5),
			InitialInterval: getEnvAsDuration("RETRY_INITIAL_INTERVAL", 500*time.Millisecond),
			MaxInterval:     getEnvAsDuration("RETRY_MAX_INTERVAL", 16*time.Second),
		},
		Breaker: BreakerConfig{
			MaxRequests:         uint32(getEnvAsInt("BREAKER_MAX_REQUESTS", 3)),
			Interval:            getEnvAsDuration("BREAKER_INTERVAL", time.Minute),
			Timeout:             getEnvAsDuration("BREAKER_TIMEOUT", 30*time.Second),
			ConsecutiveFailures: uint32(getEnvAsInt("BREAKER_CONSECUTIVE_FAILURES", 5)),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			QueueSize:  getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		},
	}

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

// UsesUserToken reports whether an installed-app token file is configured.
func (g GmailConfig) UsesUserToken() bool {
	return strings.TrimSpace(g.TokenFile) != ""
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
