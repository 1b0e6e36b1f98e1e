package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Price source constants
const (
	PriceSourceDatabase  = "database"
	PriceSourceHTTP      = "http"
	PriceSourceSynthetic = "synthetic"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Prices      PriceConfig
	Performance PerformanceConfig
	Scheduler   SchedulerConfig
	Log         LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled             bool
	Brokers             []string
	RecommendationTopic string // recommendation.generated from the idea engine
	PerformanceTopic    string // events published by this service
	ConsumerGroup       string
}

// RedisConfig holds the price cache configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	PriceTTL time.Duration
}

// PriceConfig selects and configures the price provider
type PriceConfig struct {
	Source     string
	ServiceURL string
	RateLimit  float64 // requests per second against the price service
}

// PerformanceConfig configures the evaluation engine. It is passed to the
// engine constructors explicitly so tests can inject alternatives.
type PerformanceConfig struct {
	Enabled         bool
	Horizons        []int
	PriceTimeout    time.Duration
	Concurrency     int
	DefaultCurrency string
}

// SchedulerConfig holds the periodic evaluation job configuration
type SchedulerConfig struct {
	Enabled bool
	Cron    string
	Token   string // shared secret for the all-users HTTP trigger
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from environment variables, after loading a .env
// file when one is present
func Load() (*Config, error) {
	_ = godotenv.Load()

	horizons, err := parseHorizons(getEnv("PERFORMANCE_HORIZONS", "1,7,30"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "performance"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "db/migrations"),
		},
		Kafka: KafkaConfig{
			Enabled:             getEnvBool("KAFKA_ENABLED", false),
			Brokers:             strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			RecommendationTopic: getEnv("KAFKA_RECOMMENDATION_TOPIC", "recommendations.generated"),
			PerformanceTopic:    getEnv("KAFKA_PERFORMANCE_TOPIC", "recommendations.performance"),
			ConsumerGroup:       getEnv("KAFKA_CONSUMER_GROUP", "recommendation-performance"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PriceTTL: getEnvDuration("REDIS_PRICE_TTL", 15*time.Minute),
		},
		Prices: PriceConfig{
			Source:     getEnv("PRICE_SOURCE", PriceSourceDatabase),
			ServiceURL: getEnv("PRICE_SERVICE_URL", "http://localhost:8081"),
			RateLimit:  getEnvFloat("PRICE_RATE_LIMIT", 5),
		},
		Performance: PerformanceConfig{
			Enabled:         getEnvBool("PERFORMANCE_ENABLED", true),
			Horizons:        horizons,
			PriceTimeout:    getEnvDuration("PERFORMANCE_PRICE_TIMEOUT", 10*time.Second),
			Concurrency:     getEnvInt("PERFORMANCE_CONCURRENCY", 4),
			DefaultCurrency: getEnv("PERFORMANCE_DEFAULT_CURRENCY", "EUR"),
		},
		Scheduler: SchedulerConfig{
			Enabled: getEnvBool("SCHEDULER_ENABLED", true),
			Cron:    getEnv("SCHEDULER_CRON", "0 */6 * * *"),
			Token:   getEnv("SCHEDULER_TOKEN", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	switch c.Prices.Source {
	case PriceSourceDatabase, PriceSourceHTTP, PriceSourceSynthetic:
	default:
		return fmt.Errorf("unknown PRICE_SOURCE: %s", c.Prices.Source)
	}
	if err := c.Performance.Validate(); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	}
	return nil
}

// Validate checks the evaluation engine settings
func (p *PerformanceConfig) Validate() error {
	if len(p.Horizons) == 0 {
		return fmt.Errorf("at least one evaluation horizon is required")
	}
	seen := make(map[int]bool, len(p.Horizons))
	for _, h := range p.Horizons {
		if h <= 0 {
			return fmt.Errorf("invalid horizon: %d", h)
		}
		if seen[h] {
			return fmt.Errorf("duplicate horizon: %d", h)
		}
		seen[h] = true
	}
	if p.PriceTimeout <= 0 {
		return fmt.Errorf("PERFORMANCE_PRICE_TIMEOUT must be positive")
	}
	if p.Concurrency < 1 {
		return fmt.Errorf("PERFORMANCE_CONCURRENCY must be at least 1")
	}
	return nil
}

// HasHorizon reports whether h is one of the configured horizons
func (p *PerformanceConfig) HasHorizon(h int) bool {
	for _, configured := range p.Horizons {
		if configured == h {
			return true
		}
	}
	return false
}

// DefaultPerformanceConfig returns the engine defaults: horizons 1, 7 and 30 days
func DefaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{
		Enabled:         true,
		Horizons:        []int{1, 7, 30},
		PriceTimeout:    10 * time.Second,
		Concurrency:     4,
		DefaultCurrency: "EUR",
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func parseHorizons(value string) ([]int, error) {
	var horizons []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid PERFORMANCE_HORIZONS entry %q: %w", part, err)
		}
		horizons = append(horizons, h)
	}
	return horizons, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
