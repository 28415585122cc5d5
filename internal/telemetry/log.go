// Package telemetry provides the daemon's structured logging (zap) and
// Prometheus metrics.
package telemetry

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zap.SugaredLogger behind the small interfaces the engine,
// registry, and platform adapters each declare for themselves.
type Logger struct {
	*zap.SugaredLogger
}

// Config controls where and how verbosely the daemon logs.
type Config struct {
	Level    string // "debug", "info", "warn", "error"
	FilePath string // empty disables file rotation, logging to stderr only
	MaxSizeMB int
	MaxBackups int
	MaxAgeDays int
}

// New builds a Logger from cfg. An empty FilePath logs to stderr only.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, err
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	stderrCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stderr), level)

	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxOr(cfg.MaxSizeMB, 50),
			MaxBackups: maxOr(cfg.MaxBackups, 5),
			MaxAge:     maxOr(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), level)
		core = zapcore.NewTee(stderrCore, fileCore)
	} else {
		core = stderrCore
	}

	logger := zap.New(core, zap.AddCaller()).With(zap.String("instance_id", uuid.NewString()))
	return &Logger{SugaredLogger: logger.Sugar()}, nil
}

func maxOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Errorf/Debugf/Warnf/Infof adapt *zap.SugaredLogger's Printf-style methods
// to the narrow Logger interfaces registry.Logger, cdp.Logger, etc. declare.
func (l *Logger) Errorf(format string, args ...any) { l.SugaredLogger.Errorf(format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.SugaredLogger.Debugf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.SugaredLogger.Warnf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.SugaredLogger.Infof(format, args...) }
