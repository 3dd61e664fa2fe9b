package config

import (
	"errors"
	"fmt"
	"os"

	"gymbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	OTP        OTPConfig        `yaml:"otp"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BookingConfig задает тайминги жизненного цикла брони.
type BookingConfig struct {
	ReminderOffsetMinutes int `yaml:"reminder_offset_minutes"`
	RatingWindowHours     int `yaml:"rating_window_hours"`
	SweepGraceHours       int `yaml:"sweep_grace_hours"`
}

type OTPConfig struct {
	CooldownSeconds int `yaml:"cooldown_seconds"`
	HourlyLimit     int `yaml:"hourly_limit"`
	CodeTTLSeconds  int `yaml:"code_ttl_seconds"`
}

type SchedulerConfig struct {
	PollIntervalMinutes int `yaml:"poll_interval_minutes"`
	BatchSize           int `yaml:"batch_size"`
	MaxAttempts         int `yaml:"max_attempts"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен: в контейнере переменные приходят из окружения
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Booking.ReminderOffsetMinutes < 0 {
		return errors.New("booking.reminder_offset_minutes must not be negative")
	}
	if c.OTP.HourlyLimit <= 0 {
		return errors.New("otp.hourly_limit must be positive")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Booking.ReminderOffsetMinutes == 0 {
		c.Booking.ReminderOffsetMinutes = models.ReminderOffsetMinutes
	}
	if c.Booking.RatingWindowHours == 0 {
		c.Booking.RatingWindowHours = models.RatingWindowHours
	}
	if c.Booking.SweepGraceHours == 0 {
		c.Booking.SweepGraceHours = 24
	}

	if c.OTP.CooldownSeconds == 0 {
		c.OTP.CooldownSeconds = models.OTPCooldownSeconds
	}
	if c.OTP.HourlyLimit == 0 {
		c.OTP.HourlyLimit = models.OTPHourlyLimit
	}
	if c.OTP.CodeTTLSeconds == 0 {
		c.OTP.CodeTTLSeconds = models.OTPCodeTTL
	}

	if c.Scheduler.PollIntervalMinutes == 0 {
		c.Scheduler.PollIntervalMinutes = models.DispatchIntervalMinutes
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = 100
	}
	if c.Scheduler.MaxAttempts == 0 {
		c.Scheduler.MaxAttempts = 5
	}
}
