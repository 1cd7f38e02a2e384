// Package database wires up the worker's relational store and the
// orchestrator's redis dedupe cache, the way the teacher's internal/database
// package wires MySQL + Redis for its handlers.
package database

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gasopt/optimizer/config"
)

// NewWorkerDB opens the worker's persistence store. An empty DatabaseURL
// falls back to a local SQLite file so the worker can run standalone in
// dev without postgres, matching spec.md §6.4's optional PGSSLMODE.
func NewWorkerDB(cfg *config.WorkerConfig) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return gorm.Open(sqlite.Open("worker.db"), &gorm.Config{})
	}

	dsn := cfg.DatabaseURL
	if cfg.PGSSLMode != "" {
		dsn = fmt.Sprintf("%s sslmode=%s", dsn, cfg.PGSSLMode)
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
}

// NewRedis connects to the dedupe cache. A nil return with nil error means
// redis was not configured; callers fall back to an in-process map so local
// dev doesn't require a running redis.
func NewRedis(cfg *config.RedisConfig) *redis.Client {
	if cfg == nil || cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
