// Package mlog defines the logging interface used across every bios
// component, and the context plumbing that lets handlers, command
// services, and background tasks all pull the same request-scoped
// logger without passing it explicitly through every call site.
package mlog

import "context"

// Logger is the common interface for log implementations.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a child logger carrying the given key/value pairs.
	WithFields(fields ...any) Logger

	Sync() error
}

type ctxKey struct{}

// NewContext attaches a logger to ctx.
func NewContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// NewLoggerFromContext returns the logger attached to ctx, or a noop
// logger if none was attached.
func NewLoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return l
	}

	return noop{}
}

type noop struct{}

func (noop) Info(args ...any)            {}
func (noop) Infof(string, ...any)        {}
func (noop) Error(args ...any)           {}
func (noop) Errorf(string, ...any)       {}
func (noop) Warn(args ...any)            {}
func (noop) Warnf(string, ...any)        {}
func (noop) Debug(args ...any)           {}
func (noop) Debugf(string, ...any)       {}
func (noop) Fatal(args ...any)           {}
func (noop) Fatalf(string, ...any)       {}
func (n noop) WithFields(...any) Logger  { return n }
func (noop) Sync() error                 { return nil }
