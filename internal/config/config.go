package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all immutable runtime configuration. Mutable state (such as
// notification counters) lives with the components that own it, never here.
type Config struct {
	Station  StationConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Notify   NotifyConfig

	// FetchInterval controls how often the ingestion cycle runs.
	FetchInterval time.Duration

	// HTTPTimeout bounds each outbound forecast request.
	HTTPTimeout time.Duration

	// Retention is how long forecast samples are kept before pruning.
	Retention time.Duration

	Port string
}

// StationConfig identifies the NWS point the device waters under.
type StationConfig struct {
	// PointURL is the station metadata endpoint; its response carries the
	// forecastGridData URL for the detailed gridded forecast.
	PointURL  string
	UserAgent string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NotifyConfig lists alert recipients. All receives broadcast alerts;
// Primary is the reduced list for routine notices.
type NotifyConfig struct {
	All     []string
	Primary []string
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Station: StationConfig{
			PointURL:  os.Getenv("STATION_POINT_URL"),
			UserAgent: getEnv("STATION_USER_AGENT", "wc-server (weather watcher)"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "wc_user"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "wc_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "wc-server@example.com"),
		},
		Notify: NotifyConfig{
			All:     getEnvAsList("NOTIFY_ALL"),
			Primary: getEnvAsList("NOTIFY_PRIMARY"),
		},
		FetchInterval: getEnvAsDuration("FETCH_INTERVAL", 30*time.Minute),
		HTTPTimeout:   getEnvAsDuration("HTTP_TIMEOUT", time.Minute),
		Retention:     getEnvAsDuration("SAMPLE_RETENTION", 30*24*time.Hour),
		Port:          getEnv("PORT", "8080"),
	}

	if cfg.Station.PointURL == "" {
		return nil, fmt.Errorf("STATION_POINT_URL is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
