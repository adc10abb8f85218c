package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/config"
)

// Database holds the optional Redis connection shared by the snapshot cache, the
// response cache and the refresh rate limiter. Redis is nil when no URL is configured.
type Database struct {
	Redis  *redis.Client
	logger *logrus.Logger
}

func New(cfg *config.Config, logger *logrus.Logger) (*Database, error) {
	db := &Database{
		logger: logger,
	}

	if !cfg.Redis.Enabled() {
		logger.Info("Redis not configured, using in-process snapshot storage")
		return db, nil
	}

	if err := db.initRedis(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	return db, nil
}

func (db *Database) initRedis(cfg *config.Config) error {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	db.Redis = client
	db.logger.Info("Redis connection established")
	return nil
}

// Ping checks Redis; it is a no-op when Redis is disabled.
func (db *Database) Ping(ctx context.Context) error {
	if db.Redis == nil {
		return nil
	}
	return db.Redis.Ping(ctx).Err()
}

func (db *Database) Close() error {
	if db.Redis == nil {
		return nil
	}
	if err := db.Redis.Close(); err != nil {
		return fmt.Errorf("failed to close Redis: %w", err)
	}
	db.logger.Info("Redis connection closed")
	return nil
}
