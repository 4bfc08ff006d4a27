// Redis 연결 초기화 유틸
//
// 환경변수:
//   - REDIS_URL: redis://:password@host:port/db (설정 시 아래 값보다 우선)
//   - REDIS_HOST (default: localhost)
//   - REDIS_PORT (default: 6379)
//   - REDIS_PASSWORD
//   - REDIS_DB (default: 0)
//   - REDIS_MAX_RETRIES (default: 5)

package cache

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitefolio/backend/internal/config"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Printf("[Redis] connected to %s (db=%d)", opts.Addr, opts.DB)
	return client, nil
}

func redisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	maxRetries, err := strconv.Atoi(cfg.MaxRetries)
	if err != nil || maxRetries < 0 {
		return nil, fmt.Errorf("invalid REDIS_MAX_RETRIES: %q", cfg.MaxRetries)
	}

	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		opts.MaxRetries = maxRetries
		return opts, nil
	}

	db, err := strconv.Atoi(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %q", cfg.DB)
	}

	return &redis.Options{
		Addr:            net.JoinHostPort(cfg.Host, cfg.Port),
		Password:        cfg.Password,
		DB:              db,
		MaxRetries:      maxRetries,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 3 * time.Second,
	}, nil
}

// Pinger adapts a redis client to the health check.
type Pinger struct {
	Client redis.UniversalClient
}

func (p Pinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
