package logger

import (
	"time"
)

// Standard field keys used across fetchguard components.
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldCacheKey  = "cache_key"
	FieldBackend   = "backend"
	FieldProxy     = "proxy"
	FieldStrategy  = "strategy"
	FieldAttempt   = "attempt"
	FieldDelayMs   = "delay_ms"
	FieldBreaker   = "breaker"
	FieldState     = "state"
	FieldFailures  = "failures"
	FieldLimiter   = "limiter"
	FieldWaitMs    = "wait_ms"
	FieldKind      = "kind"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Warn("retrying", logger.Fields(logger.FieldAttempt, 2, logger.FieldDelayMs, 400))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}
