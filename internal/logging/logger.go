// Package logging builds the service logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the service log file inside the log directory.
const FileName = "zapd.log"

// Options configures New.
type Options struct {
	Dir     string
	Level   string
	Service string
	// Console overrides stderr as the console sink.
	Console zapcore.WriteSyncer
}

// New creates a zap logger that writes JSON to <Dir>/zapd.log and a console
// rendering to stderr. Service name and PID are included as initial fields.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(opts.Dir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), console, level),
	)

	return zap.New(core,
		zap.Fields(
			zap.String("service", opts.Service),
			zap.Int("pid", os.Getpid()),
		),
	), nil
}
