// Package logger provides context-carried structured logging on top of logrus.
// Diagnostics go to stderr; user-facing results are printed by internal/output.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	// DevelopmentEnvironment selects a human-readable text formatter.
	DevelopmentEnvironment = "development"
	// ProductionEnvironment selects a JSON formatter.
	ProductionEnvironment = "production"
)

var defaultLogger = newLogger(os.Stderr, DevelopmentEnvironment, logrus.WarnLevel) //nolint: gochecknoglobals

func newLogger(w io.Writer, environment string, level logrus.Level) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	if environment == ProductionEnvironment {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logrus.NewEntry(l)
}

// Setup replaces the default logger. An unparsable level falls back to warn.
func Setup(w io.Writer, environment, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	defaultLogger = newLogger(w, environment, lvl)
}

type key struct{}

// Get returns the logger stored in ctx, or the default logger.
func Get(ctx context.Context) *logrus.Entry {
	if l, _ := ctx.Value(key{}).(*logrus.Entry); l != nil {
		return l
	}

	return defaultLogger
}

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *logrus.Entry) context.Context {
	return context.WithValue(ctx, key{}, l)
}

// WithFields returns a copy of ctx whose logger includes fields on every entry.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, Get(ctx).WithFields(fields))
}

// IsDebug reports whether the logger in ctx emits debug entries.
func IsDebug(ctx context.Context) bool {
	return Get(ctx).Logger.IsLevelEnabled(logrus.DebugLevel)
}

func Debug(ctx context.Context, msg string, fields logrus.Fields) {
	Get(ctx).WithFields(fields).Debug(msg)
}

func Info(ctx context.Context, msg string, fields logrus.Fields) {
	Get(ctx).WithFields(fields).Info(msg)
}

func Warn(ctx context.Context, msg string, fields logrus.Fields) {
	Get(ctx).WithFields(fields).Warn(msg)
}

func Error(ctx context.Context, msg string, fields logrus.Fields) {
	Get(ctx).WithFields(fields).Error(msg)
}
