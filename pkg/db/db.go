// Package db 提供 GORM 初始化、连接池配置、事务助手与 slog 适配的 SQL 日志
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wyfcoding/vectorplus/pkg/metrics"
)

// Config 数据库配置
type Config struct {
	// mysql 或 memory
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    int    `mapstructure:"conn_max_lifetime"` // 秒
	LogEnabled         bool   `mapstructure:"log_enabled"`
	SlowQueryThreshold int    `mapstructure:"slow_query_threshold"` // 毫秒
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
}

// DB 数据库实例包装
type DB struct {
	*gorm.DB
}

// Open 建立 MySQL 连接并配置连接池
func Open(ctx context.Context, cfg Config, l *slog.Logger, m *metrics.Metrics) (*DB, error) {
	if cfg.Driver != "mysql" {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gdb, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger:         NewGormLogger(l, m, cfg.LogEnabled, time.Duration(cfg.SlowQueryThreshold)*time.Millisecond),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l.InfoContext(ctx, "database connected", "driver", cfg.Driver)
	return &DB{DB: gdb}, nil
}

// Close 关闭连接
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx 在事务中执行，fn 返回错误时回滚
func (d *DB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.DB.WithContext(ctx).Transaction(fn)
}

// GormLogger 把 GORM 日志转到 slog，并记录查询耗时
type GormLogger struct {
	logger             *slog.Logger
	metrics            *metrics.Metrics
	enabled            bool
	slowQueryThreshold time.Duration
}

// NewGormLogger 创建 GORM 日志适配器
func NewGormLogger(l *slog.Logger, m *metrics.Metrics, enabled bool, slowQueryThreshold time.Duration) *GormLogger {
	return &GormLogger{
		logger:             l.With("component", "gorm"),
		metrics:            m,
		enabled:            enabled,
		slowQueryThreshold: slowQueryThreshold,
	}
}

func (g *GormLogger) LogMode(logger.LogLevel) logger.Interface { return g }

func (g *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if g.enabled {
		g.logger.InfoContext(ctx, msg, "data", data)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	g.logger.WarnContext(ctx, msg, "data", data)
}

func (g *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	g.logger.ErrorContext(ctx, msg, "data", data)
}

// Trace 记录 SQL 执行；未找到记录属于正常分支，不按错误输出
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	if g.metrics != nil {
		g.metrics.DBQueryDuration.WithLabelValues("query").Observe(elapsed.Seconds())
	}

	sql, rows := fc()
	args := []any{"duration", elapsed, "rows", rows, "sql", sql}
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		g.logger.ErrorContext(ctx, "sql execution failed", append(args, "error", err)...)
	case g.slowQueryThreshold > 0 && elapsed > g.slowQueryThreshold:
		g.logger.WarnContext(ctx, "slow query detected", args...)
	case g.enabled:
		g.logger.DebugContext(ctx, "sql executed", args...)
	}
}
