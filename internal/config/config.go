// Package config loads the engine's YAML configuration with environment
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	SES        SESConfig        `yaml:"ses"`
	Line       LineConfig       `yaml:"line"`
	Cron       CronConfig       `yaml:"cron"`
	Automation AutomationConfig `yaml:"automation"`
	Segments   SegmentsConfig   `yaml:"segments"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis settings. An empty Addr disables
// Redis; the engine then uses PG advisory locks and skips count caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES credentials for email sends.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	FromEmail string `yaml:"from_email"`
}

// LineConfig holds the LINE Messaging API settings for push sends.
type LineConfig struct {
	ChannelToken string `yaml:"channel_token"`
}

// CronConfig holds the shared secret that authenticates the external
// scheduler hitting /cron/process-logs.
type CronConfig struct {
	Secret string `yaml:"secret"`
}

// AutomationConfig holds log processor and sweeper settings.
type AutomationConfig struct {
	BatchLimit          int `yaml:"batch_limit"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	SweepHourUTC        int `yaml:"sweep_hour_utc"`
}

// SegmentsConfig holds segment registry settings.
type SegmentsConfig struct {
	ScanLimit int `yaml:"scan_limit"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the config file, then overlays environment
// variables (secrets are expected from the environment in production).
// A .env file is honored when present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("LINE_CHANNEL_TOKEN"); v != "" {
		cfg.Line.ChannelToken = v
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.Cron.Secret = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.SES.Region == "" {
		c.SES.Region = "us-east-1"
	}
	if c.Automation.BatchLimit == 0 {
		c.Automation.BatchLimit = 50
	}
	if c.Automation.PollIntervalSeconds == 0 {
		c.Automation.PollIntervalSeconds = 60
	}
	if c.Automation.SweepHourUTC == 0 {
		c.Automation.SweepHourUTC = 21 // 06:00 JST
	}
	if c.Segments.ScanLimit == 0 {
		c.Segments.ScanLimit = 1000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
