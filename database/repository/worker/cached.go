package workerRepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homeserve/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const workerCachePrefix = "worker:profile:"

// CachedWorkerRepo reads profiles through Redis. Cache errors never fail a
// lookup; the inner repository stays the source of truth.
type CachedWorkerRepo struct {
	Inner  WorkerRepository
	Client *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func NewCachedWorkerRepo(inner WorkerRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedWorkerRepo {
	return &CachedWorkerRepo{Inner: inner, Client: client, TTL: ttl, Logger: logger}
}

func workerKey(id string) string {
	return fmt.Sprintf("%s%s", workerCachePrefix, id)
}

func (c *CachedWorkerRepo) GetWorkerProfile(ctx context.Context, workerID string) (*models.WorkerProfile, error) {
	if val, err := c.Client.Get(ctx, workerKey(workerID)).Bytes(); err == nil {
		var p models.WorkerProfile
		if json.Unmarshal(val, &p) == nil {
			return &p, nil
		}
	} else if err != redis.Nil {
		c.Logger.Warn("worker cache read failed", zap.String("workerID", workerID), zap.Error(err))
	}

	p, err := c.Inner.GetWorkerProfile(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		if err := c.Client.Set(ctx, workerKey(workerID), data, c.TTL).Err(); err != nil {
			c.Logger.Warn("worker cache write failed", zap.String("workerID", workerID), zap.Error(err))
		}
	}
	return p, nil
}

// SaveWorkerProfile writes through and drops the cached copy so the next read
// sees the new rate card.
func (c *CachedWorkerRepo) SaveWorkerProfile(ctx context.Context, profile *models.WorkerProfile) error {
	if err := c.Inner.SaveWorkerProfile(ctx, profile); err != nil {
		return err
	}
	if err := c.Client.Del(ctx, workerKey(profile.ID)).Err(); err != nil {
		c.Logger.Warn("worker cache invalidation failed", zap.String("workerID", profile.ID), zap.Error(err))
	}
	return nil
}
