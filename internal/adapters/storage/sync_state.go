package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// GetWatermark возвращает время последнего успешного запуска или нулевое время
func (r *Storage) GetWatermark(ctx context.Context, marketplaceID string, job models.JobType) (time.Time, error) {
	var lastRun time.Time
	err := r.getExecutor(ctx).QueryRow(ctx,
		`SELECT last_run FROM catalog.sync_watermarks WHERE marketplace_id = $1 AND job = $2`,
		marketplaceID, string(job),
	).Scan(&lastRun)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get watermark: %w", err)
	}
	return lastRun, nil
}

// SetWatermark записывает время запуска задачи, другие задачи не затрагиваются
func (r *Storage) SetWatermark(ctx context.Context, marketplaceID string, job models.JobType, at time.Time) error {
	_, err := r.getExecutor(ctx).Exec(ctx, `
		INSERT INTO catalog.sync_watermarks (marketplace_id, job, last_run)
		VALUES ($1, $2, $3)
		ON CONFLICT (marketplace_id, job) DO UPDATE SET last_run = EXCLUDED.last_run
	`, marketplaceID, string(job), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}
	return nil
}

// EnqueuePrices вставляет или обновляет записи очереди одним пакетом
func (r *Storage) EnqueuePrices(ctx context.Context, entries []models.SendPriceQueueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO catalog.send_price_queue (marketplace_id, external_sku, price, queued_at)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (marketplace_id, external_sku)
			DO UPDATE SET price = EXCLUDED.price, queued_at = EXCLUDED.queued_at
		`, e.MarketplaceID, e.ExternalSKU, e.Price.String(), e.QueuedAt.UTC())
	}

	results := r.getExecutor(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to enqueue price: %w", err)
		}
	}
	return results.Close()
}

// OldestPrices возвращает до limit записей конфигурации, самые старые первыми
func (r *Storage) OldestPrices(ctx context.Context, marketplaceID string, limit int) ([]models.SendPriceQueueEntry, error) {
	rows, err := r.getExecutor(ctx).Query(ctx, `
		SELECT marketplace_id, external_sku, price::text, queued_at
		FROM catalog.send_price_queue
		WHERE marketplace_id = $1
		ORDER BY queued_at, external_sku
		LIMIT $2
	`, marketplaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read price queue: %w", err)
	}
	return collectQueueEntries(rows)
}

// DeletePrices удаляет отправленные записи
func (r *Storage) DeletePrices(ctx context.Context, marketplaceID string, skus []string) error {
	if len(skus) == 0 {
		return nil
	}
	_, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM catalog.send_price_queue WHERE marketplace_id = $1 AND external_sku = ANY($2)`,
		marketplaceID, skus,
	)
	if err != nil {
		return fmt.Errorf("failed to delete queued prices: %w", err)
	}
	return nil
}

// ListPrices возвращает страницу очереди и общее число записей конфигурации
func (r *Storage) ListPrices(ctx context.Context, marketplaceID string, limit, offset int) ([]models.SendPriceQueueEntry, int, error) {
	executor := r.getExecutor(ctx)

	var total int
	err := executor.QueryRow(ctx,
		`SELECT COUNT(*) FROM catalog.send_price_queue WHERE marketplace_id = $1`, marketplaceID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count queued prices: %w", err)
	}
	if total == 0 {
		return []models.SendPriceQueueEntry{}, 0, nil
	}

	rows, err := executor.Query(ctx, `
		SELECT marketplace_id, external_sku, price::text, queued_at
		FROM catalog.send_price_queue
		WHERE marketplace_id = $1
		ORDER BY queued_at, external_sku
		LIMIT $2 OFFSET $3
	`, marketplaceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list queued prices: %w", err)
	}
	entries, err := collectQueueEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func collectQueueEntries(rows pgx.Rows) ([]models.SendPriceQueueEntry, error) {
	defer rows.Close()

	var entries []models.SendPriceQueueEntry
	for rows.Next() {
		var e models.SendPriceQueueEntry
		var price string
		if err := rows.Scan(&e.MarketplaceID, &e.ExternalSKU, &price, &e.QueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		var err error
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("queue entry %s: invalid price: %w", e.ExternalSKU, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue rows: %w", err)
	}
	return entries, nil
}
