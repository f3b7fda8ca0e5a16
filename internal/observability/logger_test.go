package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/playarr/internal/config"
)

func newTestLogger(level, format string) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLoggerWithWriter(config.LoggingConfig{Level: level, Format: format}, &buf), &buf
}

func TestNewLogger_JSONFormat(t *testing.T) {
	logger, buf := newTestLogger("info", "json")
	logger.Info("test message", slog.String("key", "value"))

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, `"key":"value"`)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &parsed))
}

func TestNewLogger_TextFormat(t *testing.T) {
	logger, buf := newTestLogger("info", "text")
	logger.Info("test message", slog.String("key", "value"))

	assert.Contains(t, buf.String(), "key=value")
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		logLevel    slog.Level
		shouldLog   bool
	}{
		{"trace logs at trace level", "trace", LevelTrace, true},
		{"debug does not log trace", "debug", LevelTrace, false},
		{"debug logs at debug level", "debug", slog.LevelDebug, true},
		{"info does not log debug", "info", slog.LevelDebug, false},
		{"warn does not log info", "warn", slog.LevelInfo, false},
		{"error logs at error level", "error", slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger(tt.configLevel, "json")
			logger.Log(context.Background(), tt.logLevel, "test")

			if tt.shouldLog {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestTraceLevelDisplay(t *testing.T) {
	logger, buf := newTestLogger("trace", "json")
	logger.Log(context.Background(), LevelTrace, "playlist body")

	assert.Contains(t, buf.String(), `"level":"TRACE"`)
	assert.NotContains(t, buf.String(), "DEBUG-4")
}

func TestNewLogger_AddSource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json", AddSource: true}, &buf)
	logger.Info("test message")

	assert.Contains(t, buf.String(), "logpos")
	assert.Contains(t, buf.String(), "internal/observability/logger_test.go:")
}

func TestNewLogger_CustomTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json", TimeFormat: "2006-01-02"}, &buf)
	logger.Info("test message")

	assert.Contains(t, buf.String(), time.Now().Format("2006-01-02"))
}

func TestNewLogger_RedactsCredentials(t *testing.T) {
	logger, buf := newTestLogger("info", "json")
	logger.Info("token acquired",
		slog.String("oauth_token", "s3cr3t-oauth"),
		slog.String("integrity_token", "s3cr3t-integrity"),
		slog.String("signature", "s3cr3t-sig"),
		slog.String("channel", "somechannel"),
	)

	output := buf.String()
	assert.NotContains(t, output, "s3cr3t-oauth")
	assert.NotContains(t, output, "s3cr3t-integrity")
	assert.NotContains(t, output, "s3cr3t-sig")
	assert.Contains(t, output, `"channel":"somechannel"`)
	assert.Contains(t, output, "token acquired")
}

func TestNewLogger_RedactsAuthorizationValues(t *testing.T) {
	logger, buf := newTestLogger("info", "json")
	logger.Info("request", slog.String("header", "OAuth abcdef"))

	assert.NotContains(t, buf.String(), "abcdef")
}

func TestWithComponent(t *testing.T) {
	logger, buf := newTestLogger("info", "json")
	WithComponent(logger, "orchestrator").Info("test")

	assert.Contains(t, buf.String(), `"component":"orchestrator"`)
}

func TestWithSession(t *testing.T) {
	logger, buf := newTestLogger("info", "json")
	WithSession(logger, "sess-1", "somechannel").Info("test")

	assert.Contains(t, buf.String(), `"session_id":"sess-1"`)
	assert.Contains(t, buf.String(), `"channel":"somechannel"`)
}

func TestWithError(t *testing.T) {
	logger, buf := newTestLogger("info", "json")
	WithError(logger, errors.New("something went wrong")).Info("test")

	assert.Contains(t, buf.String(), `"error":"something went wrong"`)
}

func TestWithError_Nil(t *testing.T) {
	logger, buf := newTestLogger("info", "json")
	WithError(logger, nil).Info("test")

	assert.NotContains(t, buf.String(), `"error"`)
}

func TestWithRequestID(t *testing.T) {
	logger, buf := newTestLogger("info", "json")
	WithRequestID(logger, "req-123").Info("test")

	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
}

func TestContextWithLogger(t *testing.T) {
	logger, buf := newTestLogger("info", "json")

	ctx := ContextWithLogger(context.Background(), logger)
	LoggerFromContext(ctx).Info("from context")

	assert.Contains(t, buf.String(), "from context")
}

func TestLoggerFromContext_Default(t *testing.T) {
	assert.Equal(t, slog.Default(), LoggerFromContext(context.Background()))
}

func TestContextWithRequestID(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-789")
	assert.Equal(t, "req-789", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestTimedOperationWithError_Success(t *testing.T) {
	logger, buf := newTestLogger("debug", "json")

	var err error
	done := TimedOperationWithError(context.Background(), logger, "acquire_token", &err)
	done()

	assert.Contains(t, buf.String(), "operation completed")
	assert.NotContains(t, buf.String(), "operation failed")
}

func TestTimedOperationWithError_Failure(t *testing.T) {
	logger, buf := newTestLogger("info", "json")

	var err error
	done := TimedOperationWithError(context.Background(), logger, "acquire_token", &err)
	err = errors.New("boom")
	done()

	output := buf.String()
	assert.Contains(t, output, "operation failed")
	assert.Contains(t, output, `"error":"boom"`)
	assert.Contains(t, output, "acquire_token")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "a/b/c.go", shortPath("/root/x/a/b/c.go"))
	assert.Equal(t, "b/c.go", shortPath("b/c.go"))
}
