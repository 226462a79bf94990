package marketapi

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiters хранит отдельный ограничитель частоты запросов для каждой кампании
type Limiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewLimiters создает набор ограничителей. rps <= 0 отключает ограничение.
func NewLimiters(rps float64, burst int) *Limiters {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Limiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Wait блокирует до получения разрешения для ключа или отмены контекста
func (l *Limiters) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}

func (l *Limiters) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}
