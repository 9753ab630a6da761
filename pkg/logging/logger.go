// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, tier, hash key)
//   - Shared-tier promotion and key construction
//   - Eviction candidate selection
//
// Info: Normal operation events
//   - Sidecar startup/shutdown
//   - Cleanup summaries (expired removed, evicted)
//   - Circuit breaker recovery (shared tier healthy again)
//
// Warn: Warning conditions that don't prevent operation
//   - Shared-tier failures (cache degrades to local-only)
//   - Retry attempts against the shared store
//   - Undecodable shared-tier records (treated as miss)
//   - Circuit breaker opening
//
// Error: Error conditions requiring attention
//   - Configuration errors
//   - Listener/server failures in the sidecar
//
// Context Fields:
//   - component: Subsystem name (cache-storage, agent-cache, warming,
//     kv-breaker, cache-sidecar)
//   - hash_key: Content-addressed entry key
//   - namespace: Key namespace (agent:{id}, embeddings, computations)
//   - tier: Cache tier involved (local, shared)
//   - error_class: Store error classification (timeout, connection, internal)
//   - policy: Eviction policy name (lru, lfu, adaptive)
//   - ttl: Entry time-to-live
//   - count: Number of entries affected by a bulk operation
