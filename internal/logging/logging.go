// Package logging builds the loggers used by the commands.  Everything goes
// to the console; when an event log file is configured the same entries are
// appended to it as JSON, with size based rotation.
package logging

import (
	"os"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"chartplotterhat/internal/config"
)

// Rotation limits for the event log file.
const (
	maxSizeMB  = 1
	maxBackups = 5
	maxAgeDays = 90
)

// New returns a logger named name configured by cfg, plus a function that
// flushes and closes the event log file.  The returned function is safe to
// call when no file is configured.
func New(name string, cfg config.Log) (golog.Logger, func() error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stdout), level),
	}

	var file *lumberjack.Logger
	if cfg.File != "" {
		// lumberjack appends to an existing file and rotates by size
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(fileEncoder(), zapcore.AddSync(file), level))
	}

	logger := zap.New(zapcore.NewTee(cores...)).Named(name).Sugar()
	closer := func() error {
		_ = logger.Sync()
		if file == nil {
			return nil
		}
		return file.Close()
	}
	return logger, closer
}

func fileEncoder() zapcore.Encoder {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	return zapcore.NewJSONEncoder(enc)
}
