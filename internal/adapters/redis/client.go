package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/news-digest/internal/adapters/config"
	"github.com/selivandex/news-digest/pkg/logger"
)

// Client serves shared article batches and per-user adjust locks.
// Every key and lock name is namespaced with the configured prefix.
type Client struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	prefix      string
}

// New connects the cache client and the redlock manager
func New(cfg *config.RedisConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cache := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     cfg.PoolSize,
	})

	if err := cache.Ping(ctx).Err(); err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
	}

	// single instance; list every master here for a multi-node quorum
	lockAddrs := []string{"tcp://" + cfg.GetAddr()}

	lockManager, err := redlock.NewRedLock(ctx, lockAddrs)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("address", cfg.GetAddr()),
		zap.Int("db", cfg.DB),
		zap.String("key_prefix", cfg.KeyPrefix),
	)

	return &Client{
		lockManager: lockManager,
		cache:       cache,
		prefix:      cfg.KeyPrefix,
	}, nil
}

// Locker returns the redlock-backed per-user locker
func (c *Client) Locker() Locker {
	return &prefixedLocker{
		locker: NewRedLocker(c.lockManager),
		prefix: c.prefix,
	}
}

// Close closes redis connections
func (c *Client) Close() error {
	if err := c.cache.Close(); err != nil {
		return fmt.Errorf("failed to close redis cache: %w", err)
	}
	return nil
}

// Health pings redis; it backs the readiness probe
func (c *Client) Health(ctx context.Context) error {
	if err := c.cache.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Get returns a cached article batch or nil, nil on a miss
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.cache.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores an article batch for ttl
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.cache.Set(ctx, c.prefix+key, value, ttl).Err()
}

type prefixedLocker struct {
	locker Locker
	prefix string
}

func (l *prefixedLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return l.locker.TryLock(ctx, l.prefix+name, ttl)
}

func (l *prefixedLocker) Unlock(ctx context.Context, name string) error {
	return l.locker.Unlock(ctx, l.prefix+name)
}
