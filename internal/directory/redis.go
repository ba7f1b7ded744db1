// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/ManuGH/cylinderd/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisKey is the hash holding one JSON customer per field.
const DefaultRedisKey = "cylinderd:customers"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Key overrides DefaultRedisKey.
	Key string
}

// RedisDirectory shares the customer set between daemon instances.
type RedisDirectory struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisDirectory connects and pings the server.
func NewRedisDirectory(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisDirectory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}
	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("key", key).
		Msg("connected to Redis customer directory")
	return &RedisDirectory{client: client, key: key, logger: logger}, nil
}

func (d *RedisDirectory) Get(ctx context.Context, id string) (model.Customer, error) {
	raw, err := d.client.HGet(ctx, d.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Customer{}, ErrUnknownCustomer
	}
	if err != nil {
		return model.Customer{}, fmt.Errorf("redis hget: %w", err)
	}
	var c model.Customer
	if err := json.Unmarshal(raw, &c); err != nil {
		return model.Customer{}, fmt.Errorf("decode customer %s: %w", id, err)
	}
	return c, nil
}

func (d *RedisDirectory) List(ctx context.Context) (out []model.Customer, err error) {
	defer func() { metrics.RecordDirectoryLoad("redis", len(out), err) }()

	all, err := d.client.HGetAll(ctx, d.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out = make([]model.Customer, 0, len(all))
	for id, raw := range all {
		var c model.Customer
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			d.logger.Warn().Err(err).Str("customer", id).Msg("skipping undecodable customer")
			continue
		}
		out = append(out, c)
	}
	sortCustomers(out)
	return out, nil
}

func (d *RedisDirectory) Put(ctx context.Context, c model.Customer) error {
	n, err := Normalize(c)
	if err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode customer: %w", err)
	}
	if err := d.client.HSet(ctx, d.key, n.ID, data).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (d *RedisDirectory) Close() error {
	return d.client.Close()
}
