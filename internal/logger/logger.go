// Package logger configures the process-wide zerolog logger and carries
// request-scoped loggers through context.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // trace, debug, info, warn, error
	Format     string // json, console
	TimeFormat string
	Output     string // stdout, stderr, or a file path
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
		Output:     "stdout",
	}
}

// Setup initializes the global logger. Loggers pulled from a context without
// one attached fall back to it.
func Setup(cfg Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		out = f
	}

	if strings.ToLower(cfg.Format) != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger
	return nil
}

// WithComponent returns a logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

type requestIDKey struct{}

// WithRequestID stores the request id in ctx and attaches a logger carrying it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey{}, requestID)
	l := log.Logger.With().Str("request_id", requestID).Logger()
	return l.WithContext(ctx)
}

// RequestID returns the request id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Ctx returns the logger attached to ctx, falling back to the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return l
}
