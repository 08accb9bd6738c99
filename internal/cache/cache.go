/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for read-side
// tracker queries.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/vakt/internal/events"
)

// Default TTL values for different cache types
const (
	DefaultCurrentBlockTTL = 1 * time.Minute
	DefaultTimesheetTTL    = 5 * time.Minute
	DefaultWorkerTTL       = 30 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyCurrentBlock = "vakt:cache:current:"   // + worker_id
	KeyTimesheet    = "vakt:cache:timesheet:" // + worker_id:from:to
	KeyWorker       = "vakt:cache:worker:"    // + worker_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	CurrentBlockTTL time.Duration
	TimesheetTTL    time.Duration
	WorkerTTL       time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:       "localhost:6379",
		CurrentBlockTTL: DefaultCurrentBlockTTL,
		TimesheetTTL:    DefaultTimesheetTTL,
		WorkerTTL:       DefaultWorkerTTL,
		DisableOnError:  true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. An unreachable Redis yields a
// disabled cache rather than an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Current block caching

// CachedBlock is the wire shape of a time block kept in cache.
type CachedBlock struct {
	ID          string     `json:"id"`
	WorkerID    string     `json:"worker_id"`
	Category    string     `json:"category"`
	Type        string     `json:"type"`
	JobID       *string    `json:"job_id,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Coefficient float64    `json:"coefficient"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes"`
}

// GetCurrentBlock retrieves the cached open block for a worker.
func (c *Cache) GetCurrentBlock(ctx context.Context, workerID string) (*CachedBlock, bool) {
	var block CachedBlock
	found, err := c.get(ctx, KeyCurrentBlock+workerID, &block)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("worker_id", workerID).Str("block_id", block.ID).Msg("current block cache hit")
	return &block, true
}

// SetCurrentBlock caches the open block for a worker.
func (c *Cache) SetCurrentBlock(ctx context.Context, workerID string, block *CachedBlock) error {
	c.logger.Debug().Str("worker_id", workerID).Str("block_id", block.ID).Msg("caching current block")
	return c.set(ctx, KeyCurrentBlock+workerID, block, c.config.CurrentBlockTTL)
}

// InvalidateCurrentBlock removes a worker's current block from cache.
func (c *Cache) InvalidateCurrentBlock(ctx context.Context, workerID string) error {
	c.logger.Debug().Str("worker_id", workerID).Msg("invalidating current block cache")
	return c.delete(ctx, KeyCurrentBlock+workerID)
}

// Timesheet caching

func timesheetKey(workerID string, from, to time.Time) string {
	return fmt.Sprintf("%s%s:%d:%d", KeyTimesheet, workerID, from.Unix(), to.Unix())
}

// GetTimesheet retrieves cached blocks for a worker and range.
func (c *Cache) GetTimesheet(ctx context.Context, workerID string, from, to time.Time) ([]CachedBlock, bool) {
	var blocks []CachedBlock
	found, err := c.get(ctx, timesheetKey(workerID, from, to), &blocks)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("worker_id", workerID).Int("count", len(blocks)).Msg("timesheet cache hit")
	return blocks, true
}

// SetTimesheet caches blocks for a worker and range.
func (c *Cache) SetTimesheet(ctx context.Context, workerID string, from, to time.Time, blocks []CachedBlock) error {
	c.logger.Debug().Str("worker_id", workerID).Int("count", len(blocks)).Msg("caching timesheet")
	return c.set(ctx, timesheetKey(workerID, from, to), blocks, c.config.TimesheetTTL)
}

// InvalidateTimesheets removes all cached timesheet ranges for a worker.
func (c *Cache) InvalidateTimesheets(ctx context.Context, workerID string) error {
	c.logger.Debug().Str("worker_id", workerID).Msg("invalidating timesheet caches")
	return c.deletePattern(ctx, KeyTimesheet+workerID+":*")
}

// Worker caching

// CachedWorker represents a cached worker record.
type CachedWorker struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`
	Role      string `json:"role"`
}

// GetWorker retrieves a cached worker by ID.
func (c *Cache) GetWorker(ctx context.Context, workerID string) (*CachedWorker, bool) {
	var worker CachedWorker
	found, err := c.get(ctx, KeyWorker+workerID, &worker)
	if err != nil || !found {
		return nil, false
	}
	return &worker, true
}

// SetWorker caches a worker record.
func (c *Cache) SetWorker(ctx context.Context, worker *CachedWorker) error {
	return c.set(ctx, KeyWorker+worker.ID, worker, c.config.WorkerTTL)
}

// InvalidateWorker removes all caches related to a worker.
func (c *Cache) InvalidateWorker(ctx context.Context, workerID string) error {
	c.logger.Debug().Str("worker_id", workerID).Msg("invalidating all worker caches")

	if err := c.InvalidateCurrentBlock(ctx, workerID); err != nil {
		return err
	}
	if err := c.InvalidateTimesheets(ctx, workerID); err != nil {
		return err
	}
	return c.delete(ctx, KeyWorker+workerID)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "vakt:cache:*")
}

// StartInvalidator subscribes to cache invalidation events and evicts
// affected keys until ctx is cancelled.
func (c *Cache) StartInvalidator(ctx context.Context, bus *events.Bus) {
	blocksChanged := bus.Subscribe(events.EventBlocksChanged)
	workerUpdated := bus.Subscribe(events.EventWorkerUpdated)
	defer func() {
		bus.Unsubscribe(events.EventBlocksChanged, blocksChanged)
		bus.Unsubscribe(events.EventWorkerUpdated, workerUpdated)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-blocksChanged:
			if workerID, ok := payload["worker_id"].(string); ok && workerID != "" {
				_ = c.InvalidateCurrentBlock(ctx, workerID)
				_ = c.InvalidateTimesheets(ctx, workerID)
			}
		case payload := <-workerUpdated:
			if workerID, ok := payload["worker_id"].(string); ok && workerID != "" {
				_ = c.InvalidateWorker(ctx, workerID)
			}
		}
	}
}
