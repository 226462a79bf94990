package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/pkg/tx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// код ошибки PostgreSQL unique_violation
const uniqueViolation = "23505"

// Storage хранилище каталога, конфигураций маркетплейсов и состояния синхронизации в PostgreSQL
type Storage struct {
	pool      *pgxpool.Pool
	txManager tx.Manager
	logger    interfaces.LoggerPort
}

// NewPostgresStorage создает новый экземпляр Storage и проверяет соединение
func NewPostgresStorage(ctx context.Context, connectionString string, logger interfaces.LoggerPort) (*Storage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewPostgresStorageWithPool(ctx, pool, logger)
}

func NewPostgresStorageWithPool(ctx context.Context, pool *pgxpool.Pool, logger interfaces.LoggerPort) (*Storage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Storage{
		pool:      pool,
		txManager: tx.NewPgxManager(pool, logger),
		logger:    logger,
	}, nil
}

// TxManager возвращает менеджер транзакций поверх пула хранилища
func (r *Storage) TxManager() tx.Manager {
	return r.txManager
}

// Ping проверяет соединение с БД
func (r *Storage) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает соединение с БД
func (r *Storage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// getExecutor возвращает исполнителя запросов (транзакцию или пул)
func (r *Storage) getExecutor(ctx context.Context) executor {
	if tx := r.getTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// getTx получает транзакцию из контекста
func (r *Storage) getTx(ctx context.Context) pgx.Tx {
	t, ok := tx.FromContext(ctx)
	if !ok {
		return nil
	}
	return t
}

// argList накапливает позиционные параметры запроса
type argList []interface{}

// add добавляет значение и возвращает его плейсхолдер
func (a *argList) add(v interface{}) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// mapWriteError переводит ошибки ограничений в доменные
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &models.DuplicateError{Fields: constraintFields(pgErr.ConstraintName)}
	}
	return err
}

func constraintFields(constraint string) []string {
	switch constraint {
	case "marketplaces_pkey":
		return []string{"id"}
	case "marketplaces_name_key":
		return []string{"name"}
	case "":
		return nil
	}
	return []string{constraint}
}

func genFilterConditions(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}
