// Package conf provides configuration management for NutriSnap.
package conf

import "github.com/nutrisnap/nutrisnap/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global
// logger on each call because configuration is loaded before SetGlobal runs.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
