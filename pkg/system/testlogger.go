package system

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger returns a sugared logger configured for tests. It mirrors the
// development logger but disables automatic stacktraces so normal test logs
// don't include stack frames.
func NewTestLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	logger, _ := cfg.Build()
	return logger.Sugar()
}

// NewObservedLogger returns a sugared logger recording every entry at or above
// level, for tests asserting on log output.
func NewObservedLogger(level zapcore.Level) (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(level)
	return zap.New(core).Sugar(), recorded
}
