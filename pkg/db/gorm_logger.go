package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smith3v/study-tracker/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowThreshold = 200 * time.Millisecond
	defaultGormLogLevel  = gormlogger.Warn
)

// gormSlogLogger routes gorm output through the package logger so that
// query logs honour the same level and file settings as the rest.
type gormSlogLogger struct {
	slowThreshold             time.Duration
	ignoreRecordNotFoundError bool
	logLevel                  gormlogger.LogLevel
}

func newGormLogger(levelValue string) (gormlogger.Interface, error) {
	level := defaultGormLogLevel
	var levelErr error
	if strings.TrimSpace(levelValue) != "" {
		level, levelErr = parseGormLogLevel(levelValue)
	}
	return &gormSlogLogger{
		slowThreshold:             defaultSlowThreshold,
		ignoreRecordNotFoundError: true,
		logLevel:                  level,
	}, levelErr
}

func (l *gormSlogLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *gormSlogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Info, msg, data...)
}

func (l *gormSlogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Warn, msg, data...)
}

func (l *gormSlogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Error, msg, data...)
}

func (l *gormSlogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel == gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []any{"elapsed", elapsed, "rows", rows, "sql", sql}

	switch {
	case err != nil:
		if l.ignoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}
		// Unique violations drive optimistic retries and are expected.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if l.enabled(gormlogger.Info) {
				logger.Logger.Log(ctx, slog.LevelDebug, "gorm duplicate key", append(attrs, "error", err)...)
			}
			return
		}
		if l.enabled(gormlogger.Error) {
			logger.Logger.Log(ctx, slog.LevelError, "gorm query error", append(attrs, "error", err)...)
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.enabled(gormlogger.Warn) {
			logger.Logger.Log(ctx, slog.LevelWarn, "gorm slow query", append(attrs, "threshold", l.slowThreshold)...)
		}
	default:
		if l.enabled(gormlogger.Info) {
			logger.Logger.Log(ctx, slog.LevelInfo, "gorm query", attrs...)
		}
	}
}

func (l *gormSlogLogger) printf(ctx context.Context, level gormlogger.LogLevel, msg string, data ...interface{}) {
	if !l.enabled(level) {
		return
	}
	logger.Logger.Log(ctx, slogLevelFor(level), fmt.Sprintf(msg, data...))
}

func (l *gormSlogLogger) enabled(level gormlogger.LogLevel) bool {
	if l.logLevel == gormlogger.Silent || l.logLevel < level {
		return false
	}
	switch level {
	case gormlogger.Info:
		return logger.Enabled(logger.INFO)
	case gormlogger.Warn:
		return logger.Enabled(logger.WARN)
	case gormlogger.Error:
		return logger.Enabled(logger.ERROR)
	default:
		return false
	}
}

func slogLevelFor(level gormlogger.LogLevel) slog.Level {
	switch level {
	case gormlogger.Error:
		return slog.LevelError
	case gormlogger.Warn:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func parseGormLogLevel(value string) (gormlogger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "silent":
		return gormlogger.Silent, nil
	case "error":
		return gormlogger.Error, nil
	case "warn", "warning":
		return gormlogger.Warn, nil
	case "info":
		return gormlogger.Info, nil
	default:
		return defaultGormLogLevel, fmt.Errorf("invalid gorm log level %q", value)
	}
}
