package logger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs HTTP request information
func LogRequest(log Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		log.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		log.WarnWithFields("HTTP request client error", fields)
	default:
		log.DebugWithFields("HTTP request completed", fields)
	}
}

// ForWorker scopes a logger to one worker and target.
func ForWorker(log Logger, workerID int, targetID string) Logger {
	return log.WithFields(map[string]interface{}{
		"worker": fmt.Sprintf("W%d", workerID),
		"target": targetID,
	})
}

// LogBatch logs the start of one page request.
func LogBatch(log Logger, batch int, cursor int64, token string, total int) {
	log.InfoWithFields("Fetching batch", map[string]interface{}{
		"batch":  batch,
		"cursor": cursor,
		"token":  token,
		"total":  total,
	})
}

// LogBatchFailure logs a failed page and the retry position.
func LogBatchFailure(log Logger, batch, failures, maxRetries int, err error) {
	log.WithError(err).WarnWithFields("Batch failed", map[string]interface{}{
		"batch": batch,
		"retry": fmt.Sprintf("%d/%d", failures, maxRetries),
	})
}

// LogTokenRefresh logs a token handshake outcome.
func LogTokenRefresh(log Logger, served int, token string, err error) {
	if err != nil {
		log.WithError(err).Warn("Token refresh failed")
		return
	}
	log.InfoWithFields("Token refreshed", map[string]interface{}{
		"served": served,
		"token":  token,
	})
}

// LogRotation logs a proxy rotation.
func LogRotation(log Logger, rotation int, ip string, ok bool) {
	fields := map[string]interface{}{
		"rotation": rotation,
		"ip":       ip,
	}
	if !ok {
		log.WarnWithFields("Proxy rotation could not verify new exit IP", fields)
		return
	}
	log.InfoWithFields("Proxy rotated", fields)
}

// LogCheckpoint logs a checkpoint save.
func LogCheckpoint(log Logger, items, batch int, final bool) {
	fields := map[string]interface{}{
		"items": items,
		"batch": batch,
	}
	if final {
		log.DebugWithFields("Final checkpoint saved", fields)
		return
	}
	log.InfoWithFields("Checkpoint saved", fields)
}

// LogTargetSummary logs the outcome of one target.
func LogTargetSummary(log Logger, items, duplicates, tokens, rotations int, errMarker string) {
	fields := map[string]interface{}{
		"items":      items,
		"duplicates": duplicates,
		"tokens":     tokens,
		"rotations":  rotations,
	}
	if errMarker != "" {
		fields["error"] = errMarker
		log.ErrorWithFields("Target finished with error", fields)
		return
	}
	log.InfoWithFields("Target completed", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(log Logger, component string, config map[string]interface{}) {
	l := log.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(log Logger, component string, reason string) {
	log.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger returns a Logger that discards everything
func NewNopLogger() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}
