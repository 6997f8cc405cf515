package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/types"
)

const redisKeyPrefix = "user:"

// RedisGateway stores user records as JSON values keyed by userId.
type RedisGateway struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisGateway(baseLog *logger.Logger, addr string) (*RedisGateway, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisGateway{
		log: baseLog.With("service", "RedisGateway"),
		rdb: rdb,
	}, nil
}

func (g *RedisGateway) Get(ctx context.Context, userID string) (*types.UserRecord, error) {
	raw, err := g.rdb.Get(ctx, redisKeyPrefix+userID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", userID, err)
	}
	var rec types.UserRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return &rec, nil
}

func (g *RedisGateway) Put(ctx context.Context, rec *types.UserRecord) error {
	existing, err := g.Get(ctx, rec.UserID)
	if err != nil {
		return err
	}
	var existingCreated time.Time
	if existing != nil {
		existingCreated = existing.CreatedDate
	}
	out := prepareForWrite(rec, existingCreated)
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", rec.UserID, err)
	}
	if err := g.rdb.Set(ctx, redisKeyPrefix+rec.UserID, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", rec.UserID, err)
	}
	return nil
}

func (g *RedisGateway) Close() error {
	return g.rdb.Close()
}
