// Package logger builds the process-wide slog logger from the tasknode
// configuration.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatTint = "tint"
)

var (
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
)

// NewLogger builds the root logger from the configured level and format,
// writing to stdout. Components derive their own loggers from it with
// With("service", ...).
func NewLogger(logLevel, logFormat string) (*slog.Logger, error) {
	return NewLoggerWithWriter(os.Stdout, logLevel, logFormat)
}

// NewLoggerWithWriter is NewLogger with an explicit sink, mainly so tests
// can capture output.
func NewLoggerWithWriter(w io.Writer, logLevel, logFormat string) (*slog.Logger, error) {
	level, err := parseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch logFormat {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case FormatText:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case FormatTint:
		handler = tint.NewHandler(w, &tint.Options{Level: level})
	default:
		return nil, errors.Join(ErrInvalidLogFormat, fmt.Errorf("log format: %q", logFormat))
	}

	return slog.New(handler), nil
}

// parseLevel accepts the slog level grammar: case-insensitive names with
// optional offsets, e.g. INFO, warn, DEBUG+2.
func parseLevel(logLevel string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return slog.LevelInfo, errors.Join(ErrInvalidLogLevel, fmt.Errorf("log level: %q", logLevel))
	}
	return level, nil
}
