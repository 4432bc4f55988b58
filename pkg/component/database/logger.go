package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// maxLoggedSQL 会话行包含完整文档文本，日志中的 SQL 需要截断。
const maxLoggedSQL = 512

// queryLogger routes gorm output to the global logger.
type queryLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

var _ gormlogger.Interface = (*queryLogger)(nil)

func newQueryLogger(level gormlogger.LogLevel, slow time.Duration) *queryLogger {
	return &queryLogger{level: level, slow: slow}
}

func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *queryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		logger.Global().WithCtx(ctx).Infow(fmt.Sprintf(msg, data...), "component", "database")
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		logger.Global().WithCtx(ctx).Warnw(fmt.Sprintf(msg, data...), "component", "database")
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		logger.Global().WithCtx(ctx).Errorw(fmt.Sprintf(msg, data...), "component", "database")
	}
}

// Trace 记录语句：失败和慢查询按各自级别输出，其余仅在 Info 级别输出。
// 未找到记录不视为失败，会话查询经常命中这种情况。
func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		emit func(string, ...interface{})
		msg  string
	)
	log := logger.Global().WithCtx(ctx)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		emit, msg = log.Errorw, "Database query failed"
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		emit, msg = log.Warnw, "Slow database query"
	case l.level >= gormlogger.Info:
		emit, msg = log.Debugw, "Database query"
	default:
		return
	}

	sql, rows := fc()
	fields := []interface{}{
		"component", "database",
		"sql", truncateSQL(sql),
		"rows", rows,
		"duration_ms", float64(elapsed.Microseconds()) / 1000,
	}
	if err != nil {
		fields = append(fields, "error", err)
	}
	emit(msg, fields...)
}

func truncateSQL(sql string) string {
	if len(sql) <= maxLoggedSQL {
		return sql
	}
	return fmt.Sprintf("%s... (%d bytes)", sql[:maxLoggedSQL], len(sql))
}
