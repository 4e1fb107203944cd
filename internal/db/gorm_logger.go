package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arencloud/sqlexport/internal/logging"
)

// gormLogger forwards gorm's output to the structured logger. Raw SQL is never
// logged; statements are summarised as operation and table.
type gormLogger struct {
	l     logging.Logger
	level logger.LogLevel
}

func newGormLogger(l logging.Logger, lvl logger.LogLevel) *gormLogger {
	return &gormLogger{l: l, level: lvl}
}

func (g *gormLogger) LogMode(l logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = l
	return &cp
}

func (g *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Info {
		g.l.Info("gorm", "msg", msg, "args", data)
	}
}

func (g *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Warn {
		g.l.Error("gorm_warn", "msg", msg, "args", data)
	}
}

func (g *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Error {
		g.l.Error("gorm_error", "msg", msg, "args", data)
	}
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	sql, rows := fc()
	op, table := summarizeSQL(sql)
	fields := []any{"op", op, "table", table, "rows", rows, "durationMs", float64(time.Since(begin)) / 1e6}
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		if g.level >= logger.Error {
			g.l.Error("gorm_sql", append(fields, "error", err.Error())...)
		}
	case g.level >= logger.Info:
		g.l.Debug("gorm_sql", fields...)
	}
}

// summarizeSQL returns the statement verb and the table it touches, e.g.
// "INSERT", "export_submissions".
func summarizeSQL(sql string) (op string, table string) {
	q := strings.Join(strings.Fields(strings.ToUpper(sql)), " ")
	if q == "" {
		return "", ""
	}
	op, _, _ = strings.Cut(q, " ")
	ws := strings.Fields(tableClause(q))
	if len(ws) > 0 {
		table = strings.Trim(ws[0], "`\"(")
	}
	return op, strings.ToLower(table)
}

func tableClause(q string) string {
	for _, prefix := range []string{"UPDATE ", "INSERT INTO ", "DELETE FROM ", "CREATE TABLE "} {
		if after, ok := strings.CutPrefix(q, prefix); ok {
			return after
		}
	}
	if _, after, ok := strings.Cut(q, " FROM "); ok {
		return after
	}
	return q
}
