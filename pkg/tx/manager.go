// Package tx переносит транзакцию pgx через context, чтобы репозитории
// выполняли запросы в транзакции, открытой уровнем сервисов.
package tx

import (
	"context"
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/jackc/pgx/v5"
)

type ctxKey struct{}

// Manager выполняет функцию в транзакции
type Manager interface {
	// WithinTx фиксирует транзакцию, если fn вернула nil, иначе откатывает.
	// Вложенный вызов переиспользует транзакцию из ctx.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Beginner источник транзакций, обычно *pgxpool.Pool
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PgxManager Manager поверх пула pgx
type PgxManager struct {
	db     Beginner
	logger interfaces.LoggerPort
}

func NewPgxManager(db Beginner, logger interfaces.LoggerPort) *PgxManager {
	return &PgxManager{db: db, logger: logger}
}

func (m *PgxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}

	t, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// откат выполняется и при панике в fn; отмена ctx не должна ему мешать
		rbErr := t.Rollback(context.WithoutCancel(ctx))
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Warn("Не удалось откатить транзакцию", interfaces.LogField{Key: "error", Value: rbErr.Error()})
		}
	}()

	if err := fn(WithTx(ctx, t)); err != nil {
		return err
	}
	if err := t.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}
	committed = true
	return nil
}

// WithTx возвращает контекст с транзакцией
func WithTx(ctx context.Context, t pgx.Tx) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext возвращает транзакцию, открытую WithinTx выше по стеку
func FromContext(ctx context.Context) (pgx.Tx, bool) {
	t, ok := ctx.Value(ctxKey{}).(pgx.Tx)
	return t, ok
}
