package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const FormatConsole = "console"

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	Format      string
	WarnStack   bool
	Output      io.Writer
}

// Logger writes JSON lines through zerolog. Request scoped fields travel
// on the context rather than on the Logger, so one Logger is shared by the
// whole process.
type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

type fieldsKey struct{}

// fields is an ordered key/value list in the shape zerolog's Event.Fields
// accepts. It is never mutated once stored on a context.
type fields []any

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatConsole) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return &Logger{
		base:      zerolog.New(out).Level(level).With().Timestamp().Str("service", opts.ServiceName).Logger(),
		warnStack: opts.WarnStack,
	}
}

// ParseLevel maps a textual level to zerolog, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func fieldsFrom(ctx context.Context) fields {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

func (l *Logger) extend(ctx context.Context, kv ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	current := fieldsFrom(ctx)
	next := make(fields, 0, len(current)+len(kv))
	next = append(append(next, current...), kv...)
	return context.WithValue(ctx, fieldsKey{}, next)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.extend(ctx, key, value)
}

func (l *Logger) WithFields(ctx context.Context, values map[string]any) context.Context {
	kv := make([]any, 0, 2*len(values))
	for k, v := range values {
		kv = append(kv, k, v)
	}
	return l.extend(ctx, kv...)
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.extend(ctx, "request_id", requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.extend(ctx, "user_id", userID)
}

func (l *Logger) WithBranchCode(ctx context.Context, branchCode string) context.Context {
	return l.extend(ctx, "branch_code", branchCode)
}

func (l *Logger) emit(ctx context.Context, event *zerolog.Event, msg string) {
	if f := fieldsFrom(ctx); len(f) > 0 {
		event = event.Fields([]any(f))
	}
	event.Msg(msg)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.emit(ctx, l.base.Debug(), msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.emit(ctx, l.base.Info(), msg)
}

// Warn attaches a stack trace only when Options.WarnStack is set.
func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.base.Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	l.emit(ctx, event, msg)
}

// Error always attaches the stack of the caller.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.base.Error().Str("stack", stackTrace())
	if err != nil {
		event = event.Err(err)
	}
	l.emit(ctx, event, msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
