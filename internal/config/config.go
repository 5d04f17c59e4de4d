package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir    string        `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTTTLMinutes    int           `mapstructure:"JWT_TTL_MINUTES"`
	RuleCacheTTL     time.Duration `mapstructure:"RULE_CACHE_TTL"`
	WSSendBuffer     int           `mapstructure:"WS_SEND_BUFFER"`
	WSWriteTimeout   time.Duration `mapstructure:"WS_WRITE_TIMEOUT"`
	AnalyticsTimeout time.Duration `mapstructure:"ANALYTICS_TIMEOUT"`
	KafkaBrokers     []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic       string        `mapstructure:"KAFKA_TOPIC"`

	WebhookURLs         []string `mapstructure:"WEBHOOK_URLS"`
	WebhookSecret       string   `mapstructure:"WEBHOOK_SECRET"`
	WebhookCriticalOnly bool     `mapstructure:"WEBHOOK_CRITICAL_ONLY"`
}

// devJWTSecret signs tokens when ENV=development and no secret is configured.
const devJWTSecret = "dev_secret_key_change_me"

// Load reads configuration from defaults, an optional .env file and the
// environment. DATABASE_URL is required.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("JWT_TTL_MINUTES", 60*12)
	v.SetDefault("RULE_CACHE_TTL", "30s")
	v.SetDefault("WS_SEND_BUFFER", 64)
	v.SetDefault("WS_WRITE_TIMEOUT", "5s")
	v.SetDefault("ANALYTICS_TIMEOUT", "10s")
	v.SetDefault("KAFKA_TOPIC", "rpm.events")

	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"MIGRATIONS_DIR", "CORS_ORIGINS", "JWT_SECRET", "JWT_TTL_MINUTES",
		"RULE_CACHE_TTL", "WS_SEND_BUFFER", "WS_WRITE_TIMEOUT", "ANALYTICS_TIMEOUT",
		"KAFKA_BROKERS", "KAFKA_TOPIC",
		"WEBHOOK_URLS", "WEBHOOK_SECRET", "WEBHOOK_CRITICAL_ONLY",
	} {
		v.BindEnv(key)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.WebhookURLs = splitList(v.GetString("WEBHOOK_URLS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		log.Println("WARNING: JWT_SECRET not set, using the built-in development secret.")
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// KafkaEnabled reports whether envelopes should be mirrored to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

// Validate checks that the configuration is safe to run. Outside development a
// JWT secret of at least 32 bytes is required, and every timeout must be positive.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
		}
	}
	if c.JWTTTLMinutes <= 0 {
		return fmt.Errorf("JWT_TTL_MINUTES must be positive, got %d", c.JWTTTLMinutes)
	}
	if c.RuleCacheTTL <= 0 {
		return fmt.Errorf("RULE_CACHE_TTL must be positive, got %s", c.RuleCacheTTL)
	}
	if c.WSWriteTimeout <= 0 {
		return fmt.Errorf("WS_WRITE_TIMEOUT must be positive, got %s", c.WSWriteTimeout)
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.WSSendBuffer)
	}
	if c.AnalyticsTimeout <= 0 {
		return fmt.Errorf("ANALYTICS_TIMEOUT must be positive, got %s", c.AnalyticsTimeout)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
