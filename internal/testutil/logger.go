// Package testutil carries shared helpers for jsonsync tests: a zap logger
// whose level follows -loglevel or LOG_LEVEL, and switches for tests that need
// an external Redis or MongoDB.
package testutil

import (
	"flag"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jsonstore/jsonsync/synclog"
)

var (
	// DefaultLogLevel applies when neither the flag nor the environment set one.
	DefaultLogLevel = zapcore.InfoLevel

	logLevel string

	mu     sync.Mutex
	global *zap.Logger
)

func init() {
	flag.StringVar(&logLevel, "loglevel", "", "test log level (debug, info, warn, error)")
}

func levelFromSettings() zapcore.Level {
	name := logLevel
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	if name == "" {
		return DefaultLogLevel
	}
	return synclog.ParseLevel(name)
}

func build(level zapcore.Level) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	l, err := config.Build()
	if err != nil {
		l = zap.NewExample()
		l.Error("failed to build test logger", zap.Error(err))
	}
	return l
}

// NewLogger returns a logger for tests, tagged with context=test.
func NewLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = build(levelFromSettings())
	}
	return global.With(zap.String("context", "test"))
}

// SetLogLevel rebuilds the shared test logger at level and installs it as the
// synclog global.
func SetLogLevel(level zapcore.Level) {
	mu.Lock()
	global = build(level)
	l := global
	mu.Unlock()
	synclog.SetLogger(l)
}

// SetLogLevelFromFlag parses the test flags and applies -loglevel / LOG_LEVEL.
func SetLogLevelFromFlag() {
	if !flag.Parsed() {
		flag.Parse()
	}
	SetLogLevel(levelFromSettings())
}
