package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.Mutex
	log = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Setup configures the global log level from a LOG_LEVEL-style string.
// Unknown values fall back to info.
func Setup(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		log = log.Level(zerolog.DebugLevel)
	case "WARN":
		log = log.Level(zerolog.WarnLevel)
	case "ERROR":
		log = log.Level(zerolog.ErrorLevel)
	default:
		log = log.Level(zerolog.InfoLevel)
	}
}

// SetOutput redirects log output, used by tests to capture entries.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	log = log.Output(w)
}

func Debug(message string, fields ...map[string]interface{}) {
	emit(log.Debug(), message, fields)
}

func Info(message string, fields ...map[string]interface{}) {
	emit(log.Info(), message, fields)
}

func Warn(message string, fields ...map[string]interface{}) {
	emit(log.Warn(), message, fields)
}

func Error(message string, fields ...map[string]interface{}) {
	emit(log.Error(), message, fields)
}

func emit(event *zerolog.Event, message string, fields []map[string]interface{}) {
	merged := mergeFields(fields...)
	if len(merged) > 0 {
		event = event.Fields(sanitizeFields(merged))
	}
	event.Msg(message)
}

func mergeFields(fieldMaps ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, fields := range fieldMaps {
		for k, v := range fields {
			result[k] = v
		}
	}
	return result
}

var sensitiveKeys = []string{
	"key", "token", "secret", "password", "api_key", "stripe_key",
	"client_secret", "signature", "authorization", "auth",
}

// sanitizeFields redacts values whose keys look like credentials so
// Stripe secrets never end up in log output.
func sanitizeFields(fields map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(fields))

	for k, v := range fields {
		keyLower := strings.ToLower(k)

		isSensitive := false
		for _, sensitive := range sensitiveKeys {
			if strings.Contains(keyLower, sensitive) {
				isSensitive = true
				break
			}
		}

		if !isSensitive {
			sanitized[k] = v
			continue
		}

		if str, ok := v.(string); ok && len(str) > 8 {
			sanitized[k] = str[:3] + "..." + str[len(str)-3:]
		} else {
			sanitized[k] = "[REDACTED]"
		}
	}

	return sanitized
}
