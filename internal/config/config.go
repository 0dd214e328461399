package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // display timezone must resolve in minimal images

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported database drivers.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Supported notification backends.
const (
	NotifyLog   = "log"
	NotifySNS   = "sns"
	NotifyKafka = "kafka"
)

// emptyPassword is the DB_PASSWORD value that stands for an empty password,
// since some deploy tooling cannot export an empty variable.
const emptyPassword = "EMPTY"

// Config holds the application configuration.
type Config struct {
	ServerPort int `env:"PORT" envDefault:"8080"`

	DatabaseDriver string `env:"DB_DRIVER" envDefault:"pgx"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"./accounts.db"`
	DBHost         string `env:"DB_HOST" envDefault:"localhost"`
	DBPort         int    `env:"DB_PORT" envDefault:"5432"`
	DBUser         string `env:"DB_USER" envDefault:"postgres"`
	DBPassword     string `env:"DB_PASSWORD"`
	DBName         string `env:"DB_NAME" envDefault:"accounts"`

	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"2s"`
	HealthCheckTimeout  time.Duration `env:"HEALTH_CHECK_TIMEOUT" envDefault:"1s"`

	AWSRegion         string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3Bucket          string `env:"S3_BUCKET_NAME"`
	S3BaseEndpoint    string `env:"S3_BASE_ENDPOINT"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`

	NotifyBackend string   `env:"NOTIFY_BACKEND" envDefault:"log"`
	SNSTopicARN   string   `env:"SNS_TOPIC_ARN"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"user.verification"`

	VerificationBaseURL string        `env:"VERIFICATION_BASE_URL" envDefault:"http://localhost:8080"`
	VerificationTTL     time.Duration `env:"VERIFICATION_TTL" envDefault:"2m"`
	RequireVerification bool          `env:"REQUIRE_VERIFICATION" envDefault:"true"`

	DisplayTimezone string `env:"DISPLAY_TIMEZONE" envDefault:"America/New_York"`
	MaxUploadBytes  int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
	BcryptCost      int    `env:"BCRYPT_COST" envDefault:"10"`

	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFile        string   `env:"LOG_FILE"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return Parse()
}

// Parse builds a Config from the current environment and validates it.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBPassword == emptyPassword {
		cfg.DBPassword = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DatabaseDriver)
	}

	switch c.NotifyBackend {
	case NotifyLog:
	case NotifySNS:
		if c.SNSTopicARN == "" {
			return errors.New("SNS_TOPIC_ARN is required when NOTIFY_BACKEND=sns")
		}
	case NotifyKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when NOTIFY_BACKEND=kafka")
		}
	default:
		return fmt.Errorf("unsupported NOTIFY_BACKEND %q", c.NotifyBackend)
	}

	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		return fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}
	if c.HealthCheckInterval <= 0 {
		return errors.New("HEALTH_CHECK_INTERVAL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DatabaseDriver == DriverSQLite {
		return c.DatabasePath + "?_pragma=foreign_keys(1)"
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// DisplayLocation returns the timezone used for client-facing timestamps.
// Validate guarantees the name resolves.
func (c *Config) DisplayLocation() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// VerificationURL is the base URL activation links are built from.
func (c *Config) VerificationURL() string {
	return strings.TrimRight(c.VerificationBaseURL, "/")
}
