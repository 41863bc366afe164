package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Journal   Journal   `mapstructure:"journal"`
	Quotes    Quotes    `mapstructure:"quotes"`
	Refresher Refresher `mapstructure:"refresher"`
	Tracing   Tracing   `mapstructure:"tracing"`
}

// Server holds the configuration for the HTTP API.
type Server struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Journal holds the trade journal defaults.
type Journal struct {
	// TargetPositionSize is captured on every new trade that does not carry its own.
	TargetPositionSize  float64 `mapstructure:"target_position_size"`
	MaxStatisticsTrades int     `mapstructure:"max_statistics_trades"`
}

// Quotes holds the configuration for the market price provider.
type Quotes struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Refresher controls the scheduled refresh of live trade metrics.
type Refresher struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Tracing controls OpenTelemetry span export.
type Tracing struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads config.yml from path, then applies .env and environment
// overrides (JOURNAL_TARGET_POSITION_SIZE overrides journal.target_position_size).
// A missing config file is not an error; defaults cover every key.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("database.dsn", "journal.db")

	v.SetDefault("journal.target_position_size", 10000)
	v.SetDefault("journal.max_statistics_trades", 1000)

	v.SetDefault("quotes.base_url", "http://localhost:9090/api/v1")
	v.SetDefault("quotes.api_key", "")
	v.SetDefault("quotes.rate_limit", 5)       // requests per second
	v.SetDefault("quotes.rate_limit_burst", 2) // burst size
	v.SetDefault("quotes.timeout", "10s")

	v.SetDefault("refresher.enabled", false)
	v.SetDefault("refresher.schedule", "@every 15m")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "trading-journal")
}
