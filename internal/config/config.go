package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port            string `yaml:"port" env:"SERVER_PORT"`
		Mode            string `yaml:"mode" env:"SERVER_MODE"`
		ShutdownTimeout string `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
		AllowedOrigins  string `yaml:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS"`
	} `yaml:"server"`

	Database struct {
		Driver          string `yaml:"driver" env:"DB_DRIVER"`
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		MigrationsDir   string `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR"`
		Seed            bool   `yaml:"seed" env:"DB_SEED"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret" env:"JWT_SECRET"`
		Issuer string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	// Risk category cut-offs applied to the overall score
	Risk struct {
		CriticalThreshold float64 `yaml:"critical_threshold" env:"RISK_CRITICAL_THRESHOLD"`
		HighThreshold     float64 `yaml:"high_threshold" env:"RISK_HIGH_THRESHOLD"`
		MediumThreshold   float64 `yaml:"medium_threshold" env:"RISK_MEDIUM_THRESHOLD"`
	} `yaml:"risk"`

	Email struct {
		Enabled      bool   `yaml:"enabled" env:"EMAIL_ENABLED"`
		Host         string `yaml:"host" env:"EMAIL_HOST"`
		Port         int    `yaml:"port" env:"EMAIL_PORT"`
		Username     string `yaml:"username" env:"EMAIL_USERNAME"`
		Password     string `yaml:"password" env:"EMAIL_PASSWORD"`
		FromName     string `yaml:"from_name" env:"EMAIL_FROM_NAME"`
		FromEmail    string `yaml:"from_email" env:"EMAIL_FROM_EMAIL"`
		UseTLS       bool   `yaml:"use_tls" env:"EMAIL_USE_TLS"`
		MaxAttempts  int    `yaml:"max_attempts" env:"EMAIL_MAX_ATTEMPTS"`
		BatchSize    int    `yaml:"batch_size" env:"EMAIL_BATCH_SIZE"`
		PollInterval string `yaml:"poll_interval" env:"EMAIL_POLL_INTERVAL"`
		Concurrency  int    `yaml:"concurrency" env:"EMAIL_CONCURRENCY"`
	} `yaml:"email"`

	Realtime struct {
		RedisAddr     string `yaml:"redis_addr" env:"REALTIME_REDIS_ADDR"`
		RedisPassword string `yaml:"redis_password" env:"REALTIME_REDIS_PASSWORD"`
		RedisDB       int    `yaml:"redis_db" env:"REALTIME_REDIS_DB"`
		RedisChannel  string `yaml:"redis_channel" env:"REALTIME_REDIS_CHANNEL"`
	} `yaml:"realtime"`

	Followups struct {
		DefaultWindowDays int `yaml:"default_window_days" env:"FOLLOWUPS_DEFAULT_WINDOW_DAYS"`
	} `yaml:"followups"`

	Reminders struct {
		Enabled  bool   `yaml:"enabled" env:"REMINDERS_ENABLED"`
		Window   string `yaml:"window" env:"REMINDERS_WINDOW"`
		Interval string `yaml:"interval" env:"REMINDERS_INTERVAL"`
	} `yaml:"reminders"`
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	// A missing file is fine; defaults plus env are enough for containers
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"
	config.Server.ShutdownTimeout = "10s"
	config.Server.AllowedOrigins = "*"

	config.Database.Driver = "postgres"
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "earlyalert"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"
	config.Database.MigrationsDir = "migrations"
	config.Database.Seed = true

	config.JWT.Issuer = "earlyalert"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Risk.CriticalThreshold = 0.70
	config.Risk.HighThreshold = 0.50
	config.Risk.MediumThreshold = 0.30

	config.Email.Port = 587
	config.Email.FromName = "Early Alert System"
	config.Email.UseTLS = true
	config.Email.MaxAttempts = 3
	config.Email.BatchSize = 10
	config.Email.PollInterval = "30s"
	config.Email.Concurrency = 4

	config.Realtime.RedisChannel = "earlyalert:notifications"

	config.Followups.DefaultWindowDays = 7

	config.Reminders.Enabled = true
	config.Reminders.Window = "24h"
	config.Reminders.Interval = "15m"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if _, err := time.ParseDuration(config.Database.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid database connection lifetime: %w", err)
	}

	if _, err := time.ParseDuration(config.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid server shutdown timeout: %w", err)
	}

	r := config.Risk
	if !(r.CriticalThreshold <= 1 && r.CriticalThreshold > r.HighThreshold &&
		r.HighThreshold > r.MediumThreshold && r.MediumThreshold > 0) {
		return fmt.Errorf("risk thresholds must satisfy 1 >= critical > high > medium > 0 (got %.2f/%.2f/%.2f)",
			r.CriticalThreshold, r.HighThreshold, r.MediumThreshold)
	}

	if config.Email.MaxAttempts < 1 {
		return fmt.Errorf("email max_attempts must be at least 1")
	}
	if config.Email.BatchSize < 1 || config.Email.Concurrency < 1 {
		return fmt.Errorf("email batch_size and concurrency must be positive")
	}
	if _, err := time.ParseDuration(config.Email.PollInterval); err != nil {
		return fmt.Errorf("invalid email poll interval: %w", err)
	}

	if config.Followups.DefaultWindowDays < 1 {
		return fmt.Errorf("followups default_window_days must be positive")
	}

	if d, err := time.ParseDuration(config.Reminders.Window); err != nil || d <= 0 {
		return fmt.Errorf("reminders window must be a positive duration, got %q", config.Reminders.Window)
	}
	if d, err := time.ParseDuration(config.Reminders.Interval); err != nil || d <= 0 {
		return fmt.Errorf("reminders interval must be a positive duration, got %q", config.Reminders.Interval)
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// EmailPollInterval returns the parsed mailer poll interval
func (c *Config) EmailPollInterval() time.Duration {
	return GetDurationOrDefault(c.Email.PollInterval, 30*time.Second)
}

// ReminderWindow is how far ahead scheduled interventions are reminded
func (c *Config) ReminderWindow() time.Duration {
	return GetDurationOrDefault(c.Reminders.Window, 24*time.Hour)
}

func (c *Config) ReminderInterval() time.Duration {
	return GetDurationOrDefault(c.Reminders.Interval, 15*time.Minute)
}

// ShutdownTimeout returns the parsed graceful shutdown timeout
func (c *Config) ShutdownTimeout() time.Duration {
	return GetDurationOrDefault(c.Server.ShutdownTimeout, 10*time.Second)
}

// AllowedOrigins splits the comma separated CORS origin list
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsProduction reports whether the server runs in release mode
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production" || c.Server.Mode == "release"
}

// GetDurationOrDefault parses s, falling back to def when it is empty or malformed
func GetDurationOrDefault(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt gets an environment variable as an integer or returns a default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
