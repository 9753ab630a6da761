package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func emit(logger zerolog.Logger, level LogLevel, msg string) {
	switch level {
	case LevelDebug:
		logger.Debug().Msg(msg)
	case LevelWarn:
		logger.Warn().Msg(msg)
	case LevelError:
		logger.Error().Msg(msg)
	default:
		logger.Info().Msg(msg)
	}
}

func TestSetup_LevelThreshold(t *testing.T) {
	tests := []struct {
		name       string
		configured LogLevel
		emitted    LogLevel
		wantLogged bool
	}{
		{"debug_passes_at_debug", LevelDebug, LevelDebug, true},
		{"debug_filtered_at_info", LevelInfo, LevelDebug, false},
		{"info_passes_at_info", LevelInfo, LevelInfo, true},
		{"info_filtered_at_warn", LevelWarn, LevelInfo, false},
		{"warn_passes_at_warn", LevelWarn, LevelWarn, true},
		{"warn_filtered_at_error", LevelError, LevelWarn, false},
		{"error_passes_at_error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.configured, Output: buf})

			msg := "shared tier slow"
			emit(logger, tt.emitted, msg)

			logged := strings.Contains(buf.String(), msg)
			if logged != tt.wantLogged {
				t.Errorf("Expected logged=%v emitting %s at threshold %s, got %v",
					tt.wantLogged, tt.emitted, tt.configured, logged)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    LogLevel
		expected zerolog.Level
	}{
		{"debug", LevelDebug, zerolog.DebugLevel},
		{"info", LevelInfo, zerolog.InfoLevel},
		{"warn", LevelWarn, zerolog.WarnLevel},
		{"warning_alias", "warning", zerolog.WarnLevel},
		{"error", LevelError, zerolog.ErrorLevel},
		{"empty_defaults_to_info", "", zerolog.InfoLevel},
		{"unknown_defaults_to_info", "verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("cache-storage")
	logger.Warn().
		Str("operation", "set").
		Str("key", "agent:researcher:response").
		Msg("shared tier write failed")

	output := buf.String()
	if !strings.Contains(output, `"component":"cache-storage"`) {
		t.Errorf("Expected output to carry the component field, got %q", output)
	}
	if !strings.Contains(output, `"operation":"set"`) {
		t.Errorf("Expected output to carry structured fields, got %q", output)
	}
	if !strings.Contains(output, "shared tier write failed") {
		t.Errorf("Expected output to contain the message, got %q", output)
	}
}

func TestNewLogger_DistinctComponents(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	NewLogger("agent-cache").Info().Msg("manager ready")
	NewLogger("warming").Info().Msg("warming pass finished")

	output := buf.String()
	if !strings.Contains(output, `"component":"agent-cache"`) {
		t.Errorf("Expected agent-cache component in output, got %q", output)
	}
	if !strings.Contains(output, `"component":"warming"`) {
		t.Errorf("Expected warming component in output, got %q", output)
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Msg("eviction pass complete")

	output := buf.String()
	if !strings.Contains(output, "eviction pass complete") {
		t.Errorf("Expected console output to contain the message, got %q", output)
	}
	if strings.Contains(output, `"level":`) {
		t.Errorf("Expected console output to not be raw JSON, got %q", output)
	}
}
