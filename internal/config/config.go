package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type AuthConfig struct {
	// Mode selects the identity verifier: "session" (tokens issued by the
	// login endpoint) or "jwt" (tokens issued by an external provider).
	Mode                 string `mapstructure:"mode"`
	JWTSecret            string `mapstructure:"jwt_secret"`
	JWTIssuer            string `mapstructure:"jwt_issuer"`
	AdminKey             string `mapstructure:"admin_key"`
	LockoutThreshold     int    `mapstructure:"lockout_threshold"`
	LockoutWindowMinutes int    `mapstructure:"lockout_window_minutes"`

	// Optional account seeded at startup so a fresh deployment can log in.
	BootstrapUser     string `mapstructure:"bootstrap_user"`
	BootstrapPassword string `mapstructure:"bootstrap_password"`
}

type DatabaseConfig struct {
	// DSN selects PostgreSQL. When empty the embedded SQLite engine at
	// SQLitePath is used instead.
	DSN          string `mapstructure:"dsn"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	AuditListKey string `mapstructure:"audit_list_key"`
	AuditListMax int    `mapstructure:"audit_list_max"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type AuditConfig struct {
	Dir            string `mapstructure:"dir"`
	WriteTimeoutMs int    `mapstructure:"write_timeout_ms"`
	// FailClosed makes an audit-write failure fail the primary operation.
	// Default is fail-open with escalation to logs and metrics.
	FailClosed bool `mapstructure:"fail_closed"`
}

type LimitsConfig struct {
	MaxPageSize int     `mapstructure:"max_page_size"`
	RateQPS     float64 `mapstructure:"rate_qps"`
	RateBurst   int     `mapstructure:"rate_burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AuditWriteTimeout returns the bounded time the executor waits on audit
// durability before escalating.
func (c *Config) AuditWriteTimeout() time.Duration {
	if c.Audit.WriteTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Audit.WriteTimeoutMs) * time.Millisecond
}

func (c *Config) LockoutWindow() time.Duration {
	if c.Auth.LockoutWindowMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Auth.LockoutWindowMinutes) * time.Minute
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. TABLEGATE_DATABASE_DSN
	viper.SetEnvPrefix("tablegate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_only", false)
	viper.SetDefault("auth.mode", "session")
	viper.SetDefault("auth.lockout_threshold", 5)
	viper.SetDefault("auth.lockout_window_minutes", 15)
	viper.SetDefault("database.sqlite_path", "./data/tablegate.db")
	viper.SetDefault("database.max_open_conns", 50)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("redis.audit_list_key", "audit_records")
	viper.SetDefault("redis.audit_list_max", 10000)
	viper.SetDefault("catalog.path", "./configs/catalog.yaml")
	viper.SetDefault("audit.dir", "./logs")
	viper.SetDefault("audit.write_timeout_ms", 2000)
	viper.SetDefault("audit.fail_closed", false)
	viper.SetDefault("limits.max_page_size", 100)
	viper.SetDefault("limits.rate_qps", 20)
	viper.SetDefault("limits.rate_burst", 40)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
