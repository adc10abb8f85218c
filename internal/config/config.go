package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temcen/gamepulse/pkg/models"
)

type Config struct {
	Server       ServerConfig            `mapstructure:"server"`
	Catalog      CatalogConfig           `mapstructure:"catalog"`
	Distribution models.DistributionSpec `mapstructure:"distribution"`
	Stats        StatsConfig             `mapstructure:"stats"`
	Redis        RedisConfig             `mapstructure:"redis"`
	Kafka        KafkaConfig             `mapstructure:"kafka"`
	RateLimit    RateLimitConfig         `mapstructure:"rate_limit"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Monitoring   MonitoringConfig        `mapstructure:"monitoring"`
	Security     SecurityConfig          `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type CatalogConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	PageSize       int           `mapstructure:"page_size"`
	Pages          int           `mapstructure:"pages"`
	TargetCount    int           `mapstructure:"target_count"`
	PageDelay      time.Duration `mapstructure:"page_delay"`
	Ordering       string        `mapstructure:"ordering"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RefreshOnStart bool          `mapstructure:"refresh_on_start"`
}

type StatsConfig struct {
	TopGenres    int `mapstructure:"top_genres"`
	TopPlatforms int `mapstructure:"top_platforms"`
	TopRated     int `mapstructure:"top_rated"`
	PageLimit    int `mapstructure:"page_limit"`
}

type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
	ResponseTTL time.Duration `mapstructure:"response_ttl"`
	MaxBodySize int64         `mapstructure:"max_body_size"`
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		CatalogEvents string `mapstructure:"catalog_events"`
	} `mapstructure:"topics"`
}

type RateLimitConfig struct {
	Refresh int           `mapstructure:"refresh"`
	Window  time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// Load reads config/app.yaml (or configFile when set), then environment overrides
// such as CATALOG_API_KEY or REDIS_URL.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Distribution.Validate(); err != nil {
		return nil, fmt.Errorf("invalid distribution config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "development")

	// Catalog defaults
	v.SetDefault("catalog.base_url", "https://api.rawg.io/api")
	v.SetDefault("catalog.api_key", "")
	v.SetDefault("catalog.page_size", 40)
	v.SetDefault("catalog.pages", 8)
	v.SetDefault("catalog.target_count", 300)
	v.SetDefault("catalog.page_delay", "300ms")
	v.SetDefault("catalog.ordering", "-added")
	v.SetDefault("catalog.timeout", "10s")
	v.SetDefault("catalog.refresh_on_start", false)

	// Distribution defaults
	buckets := make([]map[string]interface{}, 0, 5)
	for _, b := range models.DefaultDistribution().Buckets {
		buckets = append(buckets, map[string]interface{}{
			"lower":    b.Lower,
			"upper":    b.Upper,
			"fraction": b.Fraction,
		})
	}
	v.SetDefault("distribution.buckets", buckets)

	// Stats defaults
	v.SetDefault("stats.top_genres", 8)
	v.SetDefault("stats.top_platforms", 6)
	v.SetDefault("stats.top_rated", 6)
	v.SetDefault("stats.page_limit", 40)

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.timeout", "5s")
	v.SetDefault("redis.snapshot_ttl", "6h")
	v.SetDefault("redis.response_ttl", "1m")
	v.SetDefault("redis.max_body_size", 1<<20)

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topics.catalog_events", "catalog-events")

	// Rate limit defaults
	v.SetDefault("rate_limit.refresh", 6)
	v.SetDefault("rate_limit.window", "1m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"*"})
}
