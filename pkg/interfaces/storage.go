package interfaces

import (
	"context"
)

// StoragePort постоянное хранилище данных с проверкой доступности
type StoragePort interface {
	// Ping проверяет соединение с хранилищем
	Ping(ctx context.Context) error

	// Close закрывает соединение с хранилищем
	Close() error
}
