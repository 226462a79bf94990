package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/jackc/pgx/v5"
)

const categoryColumns = `id, name, code, parent_code, is_deleted, marketplace_settings, updated_at`

// ListCategories возвращает все категории, включая удаленные
func (r *Storage) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.getExecutor(ctx).Query(ctx, `SELECT `+categoryColumns+` FROM catalog.categories ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}
	return categories, nil
}

// GetCategoryByCode возвращает категорию по коду ERP, nil если не найдена
func (r *Storage) GetCategoryByCode(ctx context.Context, code string) (*models.Category, error) {
	row := r.getExecutor(ctx).QueryRow(ctx, `SELECT `+categoryColumns+` FROM catalog.categories WHERE code = $1`, code)
	category, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return category, nil
}

// SetCategoryBlocked меняет флаг блокировки категории для маркетплейса под блокировкой строки
func (r *Storage) SetCategoryBlocked(ctx context.Context, code, marketplaceID string, blocked bool) error {
	return r.txManager.WithinTx(ctx, func(ctx context.Context) error {
		executor := r.getExecutor(ctx)

		var raw []byte
		err := executor.QueryRow(ctx,
			`SELECT marketplace_settings FROM catalog.categories WHERE code = $1 FOR UPDATE`, code,
		).Scan(&raw)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to lock category: %w", err)
		}

		category := &models.Category{Code: code}
		if err := json.Unmarshal(raw, &category.MarketplaceSettings); err != nil {
			return fmt.Errorf("failed to decode category settings: %w", err)
		}
		category.SetBlocked(marketplaceID, blocked)

		settings, err := json.Marshal(category.MarketplaceSettings)
		if err != nil {
			return fmt.Errorf("failed to encode category settings: %w", err)
		}
		_, err = executor.Exec(ctx,
			`UPDATE catalog.categories SET marketplace_settings = $2, updated_at = $3 WHERE code = $1`,
			code, string(settings), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to save category settings: %w", err)
		}
		return nil
	})
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	var (
		c   models.Category
		raw []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Code, &c.ParentCode, &c.IsDeleted, &raw, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan category row: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.MarketplaceSettings); err != nil {
			return nil, fmt.Errorf("category %s: failed to decode settings: %w", c.Code, err)
		}
	}
	return &c, nil
}
