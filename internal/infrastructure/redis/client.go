package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-shop-api/internal/config"
	"github.com/go-shop-api/internal/infrastructure/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// Client wraps the go-redis client with health checking and pool-stat reporting.
type Client struct {
	*goredis.Client
	metrics *metrics.Metrics

	mu        sync.Mutex
	lastStats *goredis.PoolStats
}

// NewClient parses cfg.RedisURL, applies pool settings and pings the server.
func NewClient(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Client, error) {
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client, metrics: m}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats pushes the current pool statistics into Prometheus.
// Counters receive the delta since the previous call.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.RedisPoolTotalConns.Set(float64(stats.TotalConns))
	c.metrics.RedisPoolIdleConns.Set(float64(stats.IdleConns))

	var prev goredis.PoolStats
	if c.lastStats != nil {
		prev = *c.lastStats
	}
	if stats.Hits > prev.Hits {
		c.metrics.RedisPoolHits.Add(float64(stats.Hits - prev.Hits))
	}
	if stats.Misses > prev.Misses {
		c.metrics.RedisPoolMisses.Add(float64(stats.Misses - prev.Misses))
	}
	if stats.Timeouts > prev.Timeouts {
		c.metrics.RedisPoolTimeouts.Add(float64(stats.Timeouts - prev.Timeouts))
	}
	c.lastStats = stats
}

// ScheduleStats records pool stats on the given cron spec (e.g. "@every 15s").
// The caller owns the returned scheduler and must Stop it.
func (c *Client) ScheduleStats(spec string) (*cron.Cron, error) {
	sched := cron.New()
	if _, err := sched.AddFunc(spec, c.RecordPoolStats); err != nil {
		return nil, fmt.Errorf("schedule redis stats %q: %w", spec, err)
	}
	sched.Start()
	slog.Info("redis pool stats scheduled", "spec", spec)
	return sched, nil
}
