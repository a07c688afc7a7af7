package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig holds process-wide settings.
type AppConfig struct {
	Name     string `env:"APP_NAME" envDefault:"postapi"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

// HTTPConfig holds the Fiber server settings.
type HTTPConfig struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	BodyLimit    int           `env:"HTTP_BODY_LIMIT" envDefault:"8388608"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

// DatabaseConfig holds PostgreSQL database connection settings.
// URL, when set, takes precedence over the individual components.
type DatabaseConfig struct {
	URL                string `env:"DB_URL"`
	Host               string `env:"DB_HOST"`
	Port               string `env:"DB_PORT" envDefault:"5432"`
	User               string `env:"DB_USER"`
	Password           string `env:"DB_PASSWORD"`
	Name               string `env:"DB_NAME"`
	SSLMode            string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns       int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns       int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetimeSec int    `env:"DB_CONN_MAX_LIFETIME_SEC" envDefault:"300"`
	PingRetries        int    `env:"DB_PING_RETRIES" envDefault:"5"`
}

// StorageConfig selects the image storage backend.
// Driver is either "fs" (files under Dir) or "minio".
type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER" envDefault:"fs"`
	Dir    string `env:"STORAGE_DIR" envDefault:"./images"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"images"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

// KafkaConfig configures post event publishing. Publishing is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	Topic        string        `env:"KAFKA_TOPIC" envDefault:"blogpost.events"`
	BatchSize    int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
	MaxAttempts  int           `env:"KAFKA_MAX_ATTEMPTS" envDefault:"3"`
	Compression  string        `env:"KAFKA_COMPRESSION" envDefault:"snappy"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// AvatarConfig controls fetching avatars referenced by URL in the post metadata.
type AvatarConfig struct {
	FetchEnabled bool          `env:"AVATAR_FETCH_ENABLED" envDefault:"false"`
	FetchTimeout time.Duration `env:"AVATAR_FETCH_TIMEOUT" envDefault:"10s"`
}

// Config is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Storage  StorageConfig
	MinIO    MinIOConfig
	Kafka    KafkaConfig
	Avatar   AvatarConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
