package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

// GormLogger writes SQL activity through the request-scoped zap logger so
// statements carry the request id, gateway and order reference. Bound
// values are never logged; card and customer data travel in them.
type GormLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{level: cfg.Level, slow: cfg.SlowThreshold}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		FromContext(ctx).Info(fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		FromContext(ctx).Warn(fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		FromContext(ctx).Error(fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
	}
}

// Trace logs failed statements at error and slow ones at warn. Everything
// else is logged at debug when the level is Info. A missing row is not a
// failure: lookups report it as nil.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)

	switch {
	case failed && l.level >= gormlogger.Error:
		FromContext(ctx).Error("db.query", l.fields(fc, elapsed, err)...)
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		FromContext(ctx).Warn("db.slow_query", l.fields(fc, elapsed, nil)...)
	case l.level >= gormlogger.Info:
		FromContext(ctx).Debug("db.query", l.fields(fc, elapsed, nil)...)
	}
}

// ParamsFilter drops every bound value from the logged statement.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) fields(fc func() (string, int64), elapsed time.Duration, err error) []zap.Field {
	sql, rows := fc()
	stmt := parseStatement(sql)
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("db.operation", stmt.operation),
		zap.String("db.table", stmt.table),
		zap.String("domain", stmt.domain()),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Duration("elapsed", elapsed),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

type statement struct {
	operation string
	table     string
}

// parseStatement reads the first verb and the first table a statement
// touches.
func parseStatement(sql string) statement {
	st := statement{operation: "UNKNOWN"}
	tokens := strings.Fields(sql)
	verbFound := false
	for i, raw := range tokens {
		token := strings.ToUpper(strings.Trim(raw, "();"))
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if !verbFound {
				st.operation = token
				verbFound = true
			}
		}
		if st.table != "" {
			continue
		}
		switch token {
		case "FROM", "INTO", "UPDATE":
			if i+1 < len(tokens) {
				st.table = strings.Trim(tokens[i+1], "`\"();")
			}
		}
	}
	return st
}

// domain groups tables by the part of the service that owns them.
func (s statement) domain() string {
	switch {
	case s.table == "purchase_orders" || strings.HasPrefix(s.table, "payment_"):
		return "payment"
	case strings.HasPrefix(s.table, "promo"):
		return "promo"
	case strings.HasPrefix(s.table, "referral") || s.table == "rewards_balances":
		return "referral"
	case s.table == "":
		return ""
	default:
		return "other"
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
