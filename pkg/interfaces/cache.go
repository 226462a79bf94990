package interfaces

import (
	"context"
	"time"
)

// CachePort кэш с распределенными блокировками.
// Блокировки используются планировщиком, чтобы задачу конфигурации не выполняли два процесса сразу.
type CachePort interface {
	// Get возвращает nil, nil для отсутствующего ключа
	Get(ctx context.Context, key string) ([]byte, error)
	// Set сохраняет значение, expiration 0 - без срока
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Delete(ctx context.Context, key string) error

	// Lock захватывает блокировку на expiration, false - блокировка занята
	Lock(ctx context.Context, key string, expiration time.Duration) (bool, error)
	// Unlock снимает блокировку, только если ее держит этот экземпляр
	Unlock(ctx context.Context, key string) error

	Close() error
}
