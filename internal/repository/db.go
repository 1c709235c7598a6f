package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateSignals,
		migrationCreateDecisions,
		migrationCreateLogFailures,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

const migrationCreateSignals = `
CREATE TABLE IF NOT EXISTS signals (
    id VARCHAR(64) PRIMARY KEY,
    station_id VARCHAR(64) NOT NULL,
    type VARCHAR(32) NOT NULL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_station_id ON signals(station_id);
CREATE INDEX IF NOT EXISTS idx_signals_recorded_at ON signals(recorded_at);
`

const migrationCreateDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id VARCHAR(64) PRIMARY KEY,
    station_id VARCHAR(64) NOT NULL,
    station_name VARCHAR(255),
    trigger VARCHAR(64) NOT NULL,
    severity VARCHAR(16) NOT NULL,
    action VARCHAR(64) NOT NULL,
    mode VARCHAR(16) NOT NULL,
    source VARCHAR(16) NOT NULL,
    status VARCHAR(32) NOT NULL,
    explanation JSONB NOT NULL,
    metrics JSONB,
    execution_result JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    approved_at TIMESTAMP WITH TIME ZONE,
    executed_at TIMESTAMP WITH TIME ZONE
);
CREATE INDEX IF NOT EXISTS idx_decisions_station_id ON decisions(station_id);
CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
`

const migrationCreateLogFailures = `
CREATE TABLE IF NOT EXISTS log_failures (
    id VARCHAR(64) PRIMARY KEY,
    type VARCHAR(64) NOT NULL,
    decision_id VARCHAR(64),
    station_id VARCHAR(64),
    payload JSONB,
    error TEXT NOT NULL,
    attempts INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_log_failures_decision_id ON log_failures(decision_id);
`
