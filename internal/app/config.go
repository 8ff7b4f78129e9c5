package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the staffhub backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Email       EmailConfig       `mapstructure:"email"`
	Events      EventsConfig      `mapstructure:"events"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	BaseURL         string        `mapstructure:"base_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
// Adapter selects the store implementation: gorm (sqlite, postgres, mysql)
// or pgx (postgres only, hand-written SQL with goose migrations).
type DatabaseConfig struct {
	Adapter      string            `mapstructure:"adapter"`
	Driver       string            `mapstructure:"driver"`
	Path         string            `mapstructure:"path"`
	DSN          string            `mapstructure:"dsn"`
	Host         string            `mapstructure:"host"`
	Port         int               `mapstructure:"port"`
	Name         string            `mapstructure:"name"`
	User         string            `mapstructure:"user"`
	Password     string            `mapstructure:"password"`
	Options      map[string]string `mapstructure:"options"`
	MaxOpenConns int               `mapstructure:"max_open_conns"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT      JWTSettings      `mapstructure:"jwt"`
	Tokens   TokenSettings    `mapstructure:"tokens"`
	Password PasswordSettings `mapstructure:"password"`
	Approval ApprovalSettings `mapstructure:"approval"`
	Signup   SignupSettings   `mapstructure:"signup"`
}

// JWTSettings configures access and refresh tokens.
type JWTSettings struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// TokenSettings configures single-use verification tokens.
type TokenSettings struct {
	EmailVerifyTTL   time.Duration `mapstructure:"email_verify_ttl"`
	PasswordResetTTL time.Duration `mapstructure:"password_reset_ttl"`
	Length           int           `mapstructure:"length"`
}

// PasswordSettings selects the password hashing algorithm.
type PasswordSettings struct {
	Algorithm  string `mapstructure:"algorithm"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

// ApprovalSettings controls the employee approval gate.
type ApprovalSettings struct {
	AutoActivate bool `mapstructure:"auto_activate"`
}

// SignupSettings controls who may self-register.
type SignupSettings struct {
	AllowAdmin bool `mapstructure:"allow_admin"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP            SMTPConfig    `mapstructure:"smtp"`
	Links           LinkConfig    `mapstructure:"links"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LinkConfig holds the URL templates embedded in email; {token} is replaced.
type LinkConfig struct {
	ConfirmURL string `mapstructure:"confirm_url"`
	ResetURL   string `mapstructure:"reset_url"`
	LoginURL   string `mapstructure:"login_url"`
}

// EventsConfig configures lifecycle event publishing.
type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig holds Kafka producer options.
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	ClientID    string   `mapstructure:"client_id"`
}

// MonitoringConfig enables metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// MaintenanceConfig controls the background cleaner.
type MaintenanceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Schedule           string `mapstructure:"schedule"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// RateLimitConfig bounds requests per client on the public auth routes.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/staffhub")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("STAFFHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.adapter", "gorm")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/staffhub.sqlite")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("auth.jwt.issuer", "staffhub")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.jwt.refresh_token_ttl", "168h") // 7 days
	v.SetDefault("auth.tokens.email_verify_ttl", "1h")
	v.SetDefault("auth.tokens.password_reset_ttl", "10m")
	v.SetDefault("auth.tokens.length", 32)
	v.SetDefault("auth.password.algorithm", "bcrypt")
	v.SetDefault("auth.password.bcrypt_cost", 12)
	v.SetDefault("auth.approval.auto_activate", false)
	v.SetDefault("auth.signup.allow_admin", false)

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")
	v.SetDefault("email.links.confirm_url", "http://localhost:8000/api/auth/confirm/{token}")
	v.SetDefault("email.links.reset_url", "http://localhost:3000/reset-password/{token}")
	v.SetDefault("email.links.login_url", "http://localhost:3000/login")
	v.SetDefault("email.dispatch_timeout", "30s")

	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("events.kafka.topic_prefix", "staffhub")
	v.SetDefault("events.kafka.client_id", "staffhub")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", "@hourly")
	v.SetDefault("maintenance.audit_retention_days", 90)

	v.SetDefault("ratelimit.requests", 30)
	v.SetDefault("ratelimit.window", "1m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
