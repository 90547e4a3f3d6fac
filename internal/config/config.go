// Package config loads server configuration from YAML with defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the game server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Request handling
	RequestTimeoutSec int      `yaml:"request_timeout_sec"` // soft deadline per request
	CORSOrigins       []string `yaml:"cors_origins"`        // credentialed origins; reads allow *

	// Scheduler
	TickIntervalSec int `yaml:"tick_interval_sec"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	// Storage. DevMode runs on the in-memory store, no postgres needed.
	DevMode  bool           `yaml:"dev_mode"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Addr returns the HTTP listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// RequestTimeout returns the per-request soft deadline.
func (s Server) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

// TickInterval returns the scheduler period.
func (s Server) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalSec) * time.Second
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		BindAddress:       "0.0.0.0",
		Port:              8080,
		RequestTimeoutSec: 30,
		TickIntervalSec:   30,
		LogLevel:          "info",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "manhunt",
			Password: "manhunt",
			DBName:   "manhunt",
			SSLMode:  "disable",
		},
	}
}

// LoadServer loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
