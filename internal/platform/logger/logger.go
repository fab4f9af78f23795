// Package logger provides a backend-agnostic structured logging interface,
// backed by zerolog.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logging interface used across every package in
// this module. Call sites pass alternating key/value pairs, the same
// convention as the platform logger it replaces.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	With(kv ...any) Logger
}

type zlogger struct {
	z zerolog.Logger
}

// New builds a Logger writing to w in the given level. Pass os.Stdout and
// "info" for production defaults.
func New(w io.Writer, level string) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	z := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &zlogger{z: z}
}

// NewDefault builds a Logger writing console-formatted output to stderr,
// useful for local development.
func NewDefault(level string) Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	z := zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
	return &zlogger{z: z}
}

func (l *zlogger) event(e *zerolog.Event, msg string, kv ...any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func (l *zlogger) Debug(msg string, kv ...any) { l.event(l.z.Debug(), msg, kv...) }
func (l *zlogger) Info(msg string, kv ...any)  { l.event(l.z.Info(), msg, kv...) }
func (l *zlogger) Warn(msg string, kv ...any)  { l.event(l.z.Warn(), msg, kv...) }
func (l *zlogger) Error(msg string, kv ...any) { l.event(l.z.Error(), msg, kv...) }

func (l *zlogger) With(kv ...any) Logger {
	ctx := l.z.With()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, kv[i+1])
	}
	return &zlogger{z: ctx.Logger()}
}

// NoOp returns a Logger that discards everything, used in tests that don't
// care about log output.
func NoOp() Logger { return &zlogger{z: zerolog.New(io.Discard)} }
