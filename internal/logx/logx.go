// Package logx centralizes how the core's components obtain a
// pion/logging-style leveled logger, the way settingengine.go threads a
// single LoggerFactory through pion-webrtc's transports.
package logx

import "github.com/pion/logging"

// Factory returns f if non-nil, otherwise a default factory that logs at
// info level to stderr — mirroring the "LoggerFactory or default" pattern
// used throughout pion-webrtc's constructors.
func Factory(f logging.LoggerFactory) logging.LoggerFactory {
	if f != nil {
		return f
	}
	return logging.NewDefaultLoggerFactory()
}

// New returns a named leveled logger from f (or the default factory).
func New(f logging.LoggerFactory, scope string) logging.LeveledLogger {
	return Factory(f).NewLogger(scope)
}
