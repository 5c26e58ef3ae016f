package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/projectd/internal/config"
)

func newBufferLogger(t *testing.T, cfg *Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	core, err := newCoreWithWriters(cfg, &buf, &buf)
	require.NoError(t, err)
	return newFromCore(core, cfg), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestLogger_ContextFields(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	logger, buf := newBufferLogger(t, cfg)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "64b7f0c2a1b2c3d4e5f60718")
	logger.Info(ctx, "handled", zap.Int("status", 200))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "handled", lines[0]["msg"])
	assert.Equal(t, "req-1", lines[0]["request.id"])
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", lines[0]["user.id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), lines[0]["trace_id"])
	assert.Equal(t, "projectd", lines[0]["service"])
}

func TestLogger_RedactsPerEntryFields(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	logger, buf := newBufferLogger(t, cfg)

	logger.Info(context.Background(), "connecting",
		zap.String("jwt_secret", "s3cr3t"),
		zap.String("target", "mongodb://admin:hunter2@db:27017"),
		zap.String("collection", "Projects"),
		Secret("dsn_value", config.Secret("postgres://u:p@h/db")),
	)

	out := buf.String()
	assert.NotContains(t, out, "s3cr3t")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "u:p@h")
	assert.Contains(t, out, "Projects")
}

func TestLogger_TraceLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	cfg.Level = TraceLevel
	logger, buf := newBufferLogger(t, cfg)

	logger.Trace(context.Background(), "wire")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])

	cfg.Level = zapcore.InfoLevel
	logger, buf = newBufferLogger(t, cfg)
	logger.Trace(context.Background(), "wire")
	assert.Empty(t, buf.String())
}

func TestLogger_Sampling(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Levels = map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel: {Initial: 2, Thereafter: 0},
	}
	logger, buf := newBufferLogger(t, cfg)

	for i := 0; i < 10; i++ {
		logger.Info(context.Background(), "repeated")
		logger.Error(context.Background(), "failure")
	}
	logger.Warn(context.Background(), "unsampled level")

	var info, errs, warns int
	for _, l := range decodeLines(t, buf) {
		switch l["msg"] {
		case "repeated":
			info++
		case "failure":
			errs++
		case "unsampled level":
			warns++
		}
	}
	assert.Equal(t, 2, info)
	assert.Equal(t, 10, errs, "errors are never sampled")
	assert.Equal(t, 1, warns)
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings("DEBUG", "console")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Sampling.Enabled)

	cfg, err = FromSettings("", "")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)

	_, err = FromSettings("loud", "")
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("Trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad format", func(c *Config) { c.Format = "text" }},
		{"no output", func(c *Config) { c.Output = OutputConfig{} }},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }},
		{"empty field value", func(c *Config) { c.Fields = map[string]string{"k": ""} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, NewDefaultConfig().Validate())
}
