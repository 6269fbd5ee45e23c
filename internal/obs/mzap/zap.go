// Package mzap adapts go.uber.org/zap to the mlog.Logger interface,
// the way the teacher platform bridges its logging layer onto zap.
package mzap

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ideal-world/bios/internal/obs/mlog"
)

// ZapLogger wraps a zap.SugaredLogger as an mlog.Logger.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// InitializeLogger builds the process logger from ENV_NAME/LOG_LEVEL.
func InitializeLogger() (*ZapLogger, error) {
	var cfg zap.Config

	if os.Getenv("ENV_NAME") == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		var l zapcore.Level
		if err := l.Set(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(l)
		}
	}

	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{s: logger.Sugar()}, nil
}

func (l *ZapLogger) Info(args ...any)            { l.s.Info(args...) }
func (l *ZapLogger) Infof(f string, a ...any)     { l.s.Infof(f, a...) }
func (l *ZapLogger) Error(args ...any)            { l.s.Error(args...) }
func (l *ZapLogger) Errorf(f string, a ...any)    { l.s.Errorf(f, a...) }
func (l *ZapLogger) Warn(args ...any)             { l.s.Warn(args...) }
func (l *ZapLogger) Warnf(f string, a ...any)     { l.s.Warnf(f, a...) }
func (l *ZapLogger) Debug(args ...any)            { l.s.Debug(args...) }
func (l *ZapLogger) Debugf(f string, a ...any)    { l.s.Debugf(f, a...) }
func (l *ZapLogger) Fatal(args ...any)            { l.s.Fatal(args...) }
func (l *ZapLogger) Fatalf(f string, a ...any)    { l.s.Fatalf(f, a...) }

func (l *ZapLogger) WithFields(fields ...any) mlog.Logger {
	return &ZapLogger{s: l.s.With(fields...)}
}

func (l *ZapLogger) Sync() error { return l.s.Sync() }
