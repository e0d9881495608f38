// Package telemetry provides the structured logger threaded through the
// object cache and object store. It wraps go.uber.org/zap, the
// structured logging library used elsewhere in the retrieval pack; the
// teacher repository has no logging subsystem of its own to imitate since
// logging is CLI-layer fmt.Println calls this module has no CLI to mirror.
package telemetry

import "go.uber.org/zap"

// Logger is the subset of *zap.Logger the core depends on, so call sites
// never need a nil check: the zero value of Logger is a usable no-op.
type Logger struct {
	z *zap.Logger
}

// NewNop returns a Logger that discards everything, the default when no
// logger is configured.
func NewNop() Logger { return Logger{z: zap.NewNop()} }

// Wrap adapts an existing *zap.Logger.
func Wrap(z *zap.Logger) Logger {
	if z == nil {
		return NewNop()
	}
	return Logger{z: z}
}

func (l Logger) logger() *zap.Logger {
	if l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

// Debug logs at debug level with structured fields.
func (l Logger) Debug(msg string, fields ...zap.Field) { l.logger().Debug(msg, fields...) }

// Warn logs at warn level with structured fields.
func (l Logger) Warn(msg string, fields ...zap.Field) { l.logger().Warn(msg, fields...) }

// Error logs at error level with structured fields.
func (l Logger) Error(msg string, fields ...zap.Field) { l.logger().Error(msg, fields...) }

// With returns a Logger with the given fields attached to every
// subsequent entry.
func (l Logger) With(fields ...zap.Field) Logger { return Logger{z: l.logger().With(fields...)} }
