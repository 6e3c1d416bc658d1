// Package config provides configuration management using viper.
// It supports loading from a .env file, YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Session   SessionConfig   `mapstructure:"session"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Daily     DailyConfig     `mapstructure:"daily"`
	Users     UsersConfig     `mapstructure:"users"`
	Games     GamesConfig     `mapstructure:"games"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// ServerConfig holds the public HTTP listener configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// MetricsConfig holds the metrics listener configuration.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig holds per-user request limits.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	GamesPerWindow int64         `mapstructure:"games_per_window"`
	Window         time.Duration `mapstructure:"window"`
}

// SessionConfig holds session token verification settings.
type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []string `mapstructure:"ids"`
}

// DailyConfig holds daily reward configuration.
type DailyConfig struct {
	Reward        int64 `mapstructure:"reward"`
	CooldownHours int   `mapstructure:"cooldown_hours"`
}

// Cooldown returns the daily cooldown as a duration.
func (d DailyConfig) Cooldown() time.Duration {
	return time.Duration(d.CooldownHours) * time.Hour
}

// UsersConfig holds ledger account defaults.
type UsersConfig struct {
	StartingBalance int64 `mapstructure:"starting_balance"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	MinBet   int64          `mapstructure:"min_bet"`
	MaxBet   int64          `mapstructure:"max_bet"`
	Roulette RouletteConfig `mapstructure:"roulette"`
	Mines    MinesConfig    `mapstructure:"mines"`
	Crash    CrashConfig    `mapstructure:"crash"`
}

// RouletteConfig holds roulette configuration.
type RouletteConfig struct {
	MaxBets int `mapstructure:"max_bets"`
}

// MinesConfig holds mines configuration.
type MinesConfig struct {
	DefaultGridSize  int `mapstructure:"default_grid_size"`
	DefaultMineCount int `mapstructure:"default_mine_count"`
}

// CrashConfig holds crash configuration.
type CrashConfig struct {
	ClientTolerance time.Duration `mapstructure:"client_tolerance"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
}

// KafkaConfig holds settlement event publishing configuration.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslMode,
	)
}

// Load reads configuration from file and environment variables.
// A .env file next to the config is loaded first; it never overrides
// variables already set in the environment.
func Load(configPath string) (*Config, error) {
	for _, envFile := range []string{filepath.Join(configPath, ".env"), ".env"} {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. SESSION_SECRET, DATABASE_HOST, GAMES_CRASH_CLIENT_TOLERANCE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// comma-separated env values arrive as a single element
	cfg.Admin.IDs = splitList(cfg.Admin.IDs)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return errors.New("session.secret is required")
	}
	if c.Games.MinBet > c.Games.MaxBet {
		return fmt.Errorf("games.min_bet %d exceeds games.max_bet %d", c.Games.MinBet, c.Games.MaxBet)
	}
	return nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.password", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "casino")
	v.SetDefault("database.name", "casino")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.games_per_window", 10)
	v.SetDefault("ratelimit.window", "1s")

	v.SetDefault("session.secret", "")
	v.SetDefault("session.cookie_name", "casino_session")
	v.SetDefault("session.ttl", "168h")

	v.SetDefault("admin.ids", []string{})

	v.SetDefault("daily.reward", 100000)
	v.SetDefault("daily.cooldown_hours", 24)

	v.SetDefault("users.starting_balance", 10000)

	v.SetDefault("games.min_bet", 1)
	v.SetDefault("games.max_bet", 1000000)
	v.SetDefault("games.roulette.max_bets", 32)
	v.SetDefault("games.mines.default_grid_size", 5)
	v.SetDefault("games.mines.default_mine_count", 5)
	v.SetDefault("games.crash.client_tolerance", "250ms")
	v.SetDefault("games.crash.tick_interval", "100ms")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "casino.settlements")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID string) bool {
	return slices.ContainsFunc(c.Admin.IDs, func(id string) bool {
		return strings.EqualFold(id, userID)
	})
}
