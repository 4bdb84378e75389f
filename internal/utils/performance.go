// Package utils holds small helpers shared by the background jobs.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowOperationThreshold is the duration above which a timed operation is
// logged at warn level.
const SlowOperationThreshold = 30 * time.Second

// OperationTimer starts timing operation and returns a func that logs and
// returns the elapsed time.
//
// Usage:
//
//	stop := utils.OperationTimer("deviation_monitor", log)
//	defer stop()
func OperationTimer(operation string, log zerolog.Logger) func() time.Duration {
	return operationTimer(operation, log, time.Now)
}

func operationTimer(operation string, log zerolog.Logger, now func() time.Time) func() time.Duration {
	start := now()

	return func() time.Duration {
		duration := now().Sub(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		if duration > SlowOperationThreshold {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Slow operation detected")
		}

		return duration
	}
}
