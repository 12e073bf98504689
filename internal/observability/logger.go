// Package observability provides structured logging for deckdoc.
package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string
	Format      string // json or console
	Output      io.Writer
	ServiceName string
}

// Logger is a zerolog logger plus the deckdoc scoping helpers.
// The zero value is not usable; nil loggers go through OrNop.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger builds a logger writing to cfg.Output (stderr by default).
func NewLogger(cfg LogConfig) *Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	return &Logger{zl: ctx.Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

func (l *Logger) Debug() *LogEvent { return &LogEvent{evt: l.zl.Debug()} }
func (l *Logger) Info() *LogEvent  { return &LogEvent{evt: l.zl.Info()} }
func (l *Logger) Warn() *LogEvent  { return &LogEvent{evt: l.zl.Warn()} }
func (l *Logger) Error() *LogEvent { return &LogEvent{evt: l.zl.Error()} }

// With returns a child logger that always carries key=val.
func (l *Logger) With(key, val string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, val).Logger()}
}

// WithOperation tags lines with the component doing the work.
func (l *Logger) WithOperation(op string) *Logger {
	return l.With("operation", op)
}

// WithJob scopes a logger to one job id.
func (l *Logger) WithJob(jobID string) *Logger {
	return l.With("job_id", jobID)
}

// WithContext adds the request id carried by ctx. Without one, l is returned.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return l
	}
	return l.With("request_id", id)
}

// LogEvent is one log line under construction.
type LogEvent struct {
	evt *zerolog.Event
}

func (e *LogEvent) Str(key, val string) *LogEvent {
	e.evt = e.evt.Str(key, val)
	return e
}

func (e *LogEvent) Int(key string, val int) *LogEvent {
	e.evt = e.evt.Int(key, val)
	return e
}

func (e *LogEvent) Float64(key string, val float64) *LogEvent {
	e.evt = e.evt.Float64(key, val)
	return e
}

func (e *LogEvent) Dur(key string, val time.Duration) *LogEvent {
	e.evt = e.evt.Dur(key, val)
	return e
}

func (e *LogEvent) Err(err error) *LogEvent {
	e.evt = e.evt.Err(err)
	return e
}

func (e *LogEvent) Msg(msg string) {
	e.evt.Msg(msg)
}

func (e *LogEvent) Msgf(format string, args ...interface{}) {
	e.evt.Msgf(format, args...)
}

var levelAliases = map[string]string{
	"warning": "warn",
	"off":     "disabled",
	"":        "info",
}

// ParseLevel maps a config level name to a zerolog level. Unknown names are info.
func ParseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if alias, ok := levelAliases[name]; ok {
		name = alias
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request id to ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id attached to ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
