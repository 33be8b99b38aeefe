package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a JSON key/value cache with expiry.
type Store interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Config describes the Redis connection. Namespace is prepended to every
// key so several deployments can share one database.
type Config struct {
	Addr      string
	Password  string
	DB        int
	UseTLS    bool
	Namespace string
}

// Redis is the shared Store used when REDIS_ADDR is configured.
type Redis struct {
	client *redis.Client
	ns     string
	logger *slog.Logger
}

var _ Store = (*Redis)(nil)

// New builds the client. It does not dial; call Ping to check the server.
func New(cfg Config, logger *slog.Logger) *Redis {
	opts := &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &Redis{
		client: redis.NewClient(opts),
		ns:     cfg.Namespace,
		logger: logger.With("component", "redis"),
	}
}

// Client exposes the go-redis client for pub/sub.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.ns+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes key into dest. A missing key reports false with no error.
func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, r.ns+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// DeletePrefix scans for keys under prefix and deletes them in batches.
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	const batchSize = 200
	var (
		deleted int
		batch   []string
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, r.ns+prefix+"*", batchSize).Iterator()
	for iter.Next(ctx) {
		if batch = append(batch, iter.Val()); len(batch) >= batchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	r.logger.Debug("cache prefix dropped", "prefix", prefix, "keys", deleted)
	return deleted, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
