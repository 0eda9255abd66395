// Package api serves the NutriSnap HTTP interface on echo.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port string

	AllowedOrigins []string // CORS allowed origins
	BodyLimit      string   // maximum request body size, e.g. "6M"

	RateLimit float64 // requests per second per client IP, 0 disables
	RateBurst int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LogLevel logger.LogLevel
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            "8000",
		AllowedOrigins:  []string{"http://localhost:5173"},
		BodyLimit:       "6M",
		RateLimit:       10,
		RateBurst:       20,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		LogLevel:        logger.LogLevelInfo,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	ws := settings.WebServer

	cfg.Host = ws.Host
	if ws.Port != "" {
		cfg.Port = ws.Port
	}
	if len(ws.CORSOrigins) > 0 {
		cfg.AllowedOrigins = ws.CORSOrigins
	}
	if ws.BodyLimit != "" {
		cfg.BodyLimit = ws.BodyLimit
	}
	cfg.RateLimit = ws.RateLimit
	if ws.RateBurst > 0 {
		cfg.RateBurst = ws.RateBurst
	}
	if settings.Logging.Level != "" {
		cfg.LogLevel = logger.LogLevel(settings.Logging.Level)
	}
	if settings.Debug {
		cfg.LogLevel = logger.LogLevelDebug
	}
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

// Address returns the listen address
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}
