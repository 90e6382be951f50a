package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Stripe    StripeConfig
	Resend    ResendConfig
	Blob      BlobConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig

	// PublicSiteURL is the externally visible base URL used to build the
	// checkout success/cancel redirects. Stored without a trailing slash.
	PublicSiteURL string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	MigrationsDir string
	AutoMigrate   bool
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type ResendConfig struct {
	APIKey     string
	AudienceID string
	FromOrders string
	FromHello  string
}

type BlobConfig struct {
	ReadWriteToken string
	BaseURL        string
}

type AuthConfig struct {
	// SupabaseURL is the base URL of the auth server used for session refresh.
	SupabaseURL string
	// AnonKey is sent as the API key header on refresh calls.
	AnonKey string
	// JWTSecret verifies the HS256 access-token cookie.
	JWTSecret string
}

type RedisConfig struct {
	Addr    string
	Enabled bool
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	OrderCompleted string
	OrderRefunded  string
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

func Load() *Config {
	kafkaAddr := getEnv("KAFKA_ADDR", "")
	redisAddr := getEnv("REDIS_ADDR", "")

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:           getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("AUTO_MIGRATE", true),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Resend: ResendConfig{
			APIKey:     getEnv("RESEND_API_KEY", ""),
			AudienceID: getEnv("RESEND_AUDIENCE_ID", ""),
			FromOrders: getEnv("RESEND_FROM_ORDERS", "VERBS <tickets@verbsaroundthe.world>"),
			FromHello:  getEnv("RESEND_FROM_HELLO", "VERBS <hello@verbsaroundthe.world>"),
		},
		Blob: BlobConfig{
			ReadWriteToken: getEnv("BLOB_READ_WRITE_TOKEN", ""),
			BaseURL:        getEnv("BLOB_API_URL", "https://blob.vercel-storage.com"),
		},
		Auth: AuthConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			AnonKey:     getEnv("SUPABASE_ANON_KEY", ""),
			JWTSecret:   getEnv("SUPABASE_JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:    redisAddr,
			Enabled: redisAddr != "",
		},
		Kafka: KafkaConfig{
			Brokers: []string{kafkaAddr},
			Enabled: kafkaAddr != "",
			Topics: TopicConfig{
				OrderCompleted: getEnv("KAFKA_TOPIC_ORDER_COMPLETED", "verbs.orders.completed"),
				OrderRefunded:  getEnv("KAFKA_TOPIC_ORDER_REFUNDED", "verbs.orders.refunded"),
			},
		},
		RateLimit: RateLimitConfig{
			Limit:  getEnvInt("RATE_LIMIT", 5),
			Window: time.Duration(getEnvInt("RATE_WINDOW_MINUTES", 60)) * time.Minute,
		},
		PublicSiteURL: strings.TrimRight(getEnv("PUBLIC_SITE_URL", "http://localhost:4321"), "/"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
