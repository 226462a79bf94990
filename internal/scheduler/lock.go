package scheduler

import (
	"context"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
)

// Locker распределенная блокировка запуска задачи
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// CacheLocker блокировка поверх кэша (SET NX в Redis)
type CacheLocker struct {
	cache interfaces.CachePort
}

func NewCacheLocker(cache interfaces.CachePort) *CacheLocker {
	return &CacheLocker{cache: cache}
}

func (l *CacheLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.cache.Lock(ctx, key, ttl)
}

func (l *CacheLocker) Release(ctx context.Context, key string) error {
	return l.cache.Unlock(ctx, key)
}

func lockKey(job models.JobType, marketplaceID string) string {
	return "sync:lock:" + string(job) + ":" + marketplaceID
}
