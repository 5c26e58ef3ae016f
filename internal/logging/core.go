// internal/logging/core.go
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newCore builds the redacting, sampled core writing to the configured
// outputs.
func newCore(cfg *Config) (zapcore.Core, error) {
	return newCoreWithWriters(cfg, os.Stdout, os.Stderr)
}

func newCoreWithWriters(cfg *Config, stdout, stderr io.Writer) (zapcore.Core, error) {
	encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
	}

	writers := make([]zapcore.WriteSyncer, 0, 2)
	if cfg.Output.Stdout {
		writers = append(writers, zapcore.AddSync(stdout))
	}
	if cfg.Output.Stderr {
		writers = append(writers, zapcore.AddSync(stderr))
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled")
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), cfg.Level)
	return newSampledCore(core, cfg.Sampling), nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = encodeLevel

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// encodeLevel names TraceLevel "trace" instead of zap's "Level(-2)".
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}
