// Package logger defines the minimal structured logging interface used
// across the module; see zap/ for the production backend.
package logger

import "chordmesh/internal/ring"

// Field represents a structured key:value pair.
type Field struct {
	Key string
	Val any
}

// Logger is the minimal interface required by the rest of the module.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F is a concise helper for building a Field.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FNode renders a node id compactly for logs.
func FNode(key string, id ring.Id) Field {
	return Field{Key: key, Val: id.Hex()}
}

// FContact renders a (id, session descriptor) pair compactly.
func FContact(key string, id ring.Id, sessionDescriptor string) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"id":      id.Hex(),
			"session": sessionDescriptor,
		},
	}
}

// ----------------------------------------------------------------
// NopLogger is a Logger implementation that does nothing.
type NopLogger struct{}

func (l *NopLogger) Named(name string) Logger          { return l }
func (l *NopLogger) With(fields ...Field) Logger       { return l }
func (l *NopLogger) Debug(msg string, fields ...Field) {}
func (l *NopLogger) Info(msg string, fields ...Field)  {}
func (l *NopLogger) Warn(msg string, fields ...Field)  {}
func (l *NopLogger) Error(msg string, fields ...Field) {}
