package config

import (
	"os"
	"strconv"
	"time"
)

// Config collects what the binaries wire at startup. JWT settings are not
// here: internal/auth reads JWT_SECRET and JWT_EXPIRES_IN itself.
type Config struct {
	HTTPPort    string
	DatabaseURL string
	LogLevel    string

	VaultKeyHex string

	RedisAddr     string
	RedisPassword string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	TelegramToken         string
	TelegramAPIBase       string
	TelegramWebhookSecret string
	NotifySendDelay       time.Duration
	PendingTTL            time.Duration
	RenewalRemindDay      int

	WorkerInterval time.Duration
}

// Load reads the environment. godotenv is applied by the caller before this
// runs so .env files work in local development.
func Load() *Config {
	return &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		VaultKeyHex: os.Getenv("VAULT_KEY"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "subtrack-attachments"),
		MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",

		TelegramToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBase:       getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		NotifySendDelay:       getDuration("NOTIFY_SEND_DELAY", 2*time.Second),
		PendingTTL:            getDuration("PENDING_TTL", time.Hour),
		RenewalRemindDay:      getInt("RENEWAL_REMIND_DAYS", 7),

		WorkerInterval: getDuration("WORKER_INTERVAL", 24*time.Hour),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
