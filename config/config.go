package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver   string
	DBDSN      string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret string
	TokenTTL  time.Duration

	AdminEmail    string
	AdminPassword string

	ChangePollInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and the environment.
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.WithError(err).Warn(".env file not found, using environment only")
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:         getEnv("DB_DSN", ""),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "3306"),
		DBUser:        getEnv("DB_USER", "root"),
		DBPassword:    getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", "restaurant"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@restaurant.local"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "orders.changes"),
		KafkaGroup:    getEnv("KAFKA_GROUP", "backoffice"),
		CORSOrigin:    getEnv("CORS_ORIGIN", "*"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ChangePollInterval, err = getDuration("CHANGE_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 50); err != nil {
		return nil, err
	}
	burst, err := getFloat("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitBurst = int(burst)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "mysql" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// KafkaEnabled reports whether the change feed is mirrored to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
