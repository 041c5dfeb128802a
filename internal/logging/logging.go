// Package logging wires zap + lumberjack the way a production service in
// this stack does: a rotating file sink (lumberjack) teed with stderr at
// the configured level, one *zap.Logger constructed at process startup
// and injected into every subsystem rather than referenced as a global.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process-wide logger built at startup.
type Options struct {
	Level      zapcore.Level
	FilePath   string // empty disables file rotation, logs to stderr only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func DefaultOptions() Options {
	return Options{
		Level:      zapcore.InfoLevel,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
	}
}

// New builds a *zap.Logger per opts. Callers pass the returned logger to
// each subsystem's constructor (internal/h2conn.Config.Logger, etc.)
// rather than reading a package-level singleton.
func New(opts Options) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(os.Stderr), opts.Level),
	}

	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), opts.Level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
