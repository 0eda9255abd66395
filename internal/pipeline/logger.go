package pipeline

import (
	"sync"

	"github.com/nutrisnap/nutrisnap/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the pipeline module logger
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("pipeline")
	})
	return serviceLogger
}
