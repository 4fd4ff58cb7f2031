// Package logging builds the application's slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"insightica/internal/config"
)

// NewLogger returns a text logger writing to stdout and, outside of tests,
// to a size-rotated file under the configured logs directory.
func NewLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout

	if !cfg.IsTest() && cfg.LogsDirectory != "" {
		rotating := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogsDirectory, cfg.AppName+".log"),
			MaxSize:    cfg.LogsMaxSizeInMb,
			MaxBackups: cfg.LogsMaxBackups,
			MaxAge:     cfg.LogsMaxAgeInDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)})
	return slog.New(handler).With(slog.String("app", cfg.AppName))
}

// ParseLevel maps a configured log level onto slog, defaulting to info.
func ParseLevel(level config.LogLevel) slog.Level {
	switch config.LogLevel(strings.ToLower(string(level))) {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
