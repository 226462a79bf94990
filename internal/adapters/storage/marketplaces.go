package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const marketplaceColumns = `id, name, type, active, nullify_stocks, special_price_name, minimal_price::text,
	product_types, interval_minutes, update_prices_via_api, update_stocks_via_api, shop, settings,
	created_at, updated_at`

// ListMarketplaces возвращает конфигурации маркетплейсов, при activeOnly только активные
func (r *Storage) ListMarketplaces(ctx context.Context, activeOnly bool) ([]*models.Marketplace, error) {
	query := `SELECT ` + marketplaceColumns + ` FROM catalog.marketplaces`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := r.getExecutor(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list marketplaces: %w", err)
	}
	defer rows.Close()

	var marketplaces []*models.Marketplace
	for rows.Next() {
		mp, err := scanMarketplace(rows)
		if err != nil {
			return nil, err
		}
		marketplaces = append(marketplaces, mp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating marketplace rows: %w", err)
	}
	return marketplaces, nil
}

// GetMarketplace возвращает конфигурацию по ID, nil если не найдена
func (r *Storage) GetMarketplace(ctx context.Context, id string) (*models.Marketplace, error) {
	row := r.getExecutor(ctx).QueryRow(ctx, `SELECT `+marketplaceColumns+` FROM catalog.marketplaces WHERE id = $1`, id)
	mp, err := scanMarketplace(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return mp, nil
}

// CreateMarketplace сохраняет новую конфигурацию
func (r *Storage) CreateMarketplace(ctx context.Context, mp *models.Marketplace) error {
	args, err := marketplaceArgs(mp)
	if err != nil {
		return err
	}
	args = append(args, mp.CreatedAt, mp.UpdatedAt)
	_, err = r.getExecutor(ctx).Exec(ctx, `
		INSERT INTO catalog.marketplaces (id, name, type, active, nullify_stocks, special_price_name,
			minimal_price, product_types, interval_minutes, update_prices_via_api, update_stocks_via_api,
			shop, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to create marketplace: %w", mapWriteError(err))
	}
	return nil
}

// UpdateMarketplace перезаписывает конфигурацию, created_at не меняется
func (r *Storage) UpdateMarketplace(ctx context.Context, mp *models.Marketplace) error {
	args, err := marketplaceArgs(mp)
	if err != nil {
		return err
	}
	args = append(args, mp.UpdatedAt)
	tag, err := r.getExecutor(ctx).Exec(ctx, `
		UPDATE catalog.marketplaces SET
			name = $2, type = $3, active = $4, nullify_stocks = $5, special_price_name = $6,
			minimal_price = $7::numeric, product_types = $8, interval_minutes = $9,
			update_prices_via_api = $10, update_stocks_via_api = $11, shop = $12, settings = $13,
			updated_at = $14
		WHERE id = $1
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update marketplace: %w", mapWriteError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteMarketplace удаляет конфигурацию вместе с водяными знаками и очередью цен
func (r *Storage) DeleteMarketplace(ctx context.Context, id string) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, `DELETE FROM catalog.marketplaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete marketplace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// marketplaceArgs параметры $1..$13, общие для INSERT и UPDATE
func marketplaceArgs(mp *models.Marketplace) ([]interface{}, error) {
	productTypes, err := json.Marshal(mp.ProductTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product types: %w", err)
	}
	if mp.ProductTypes == nil {
		productTypes = []byte("[]")
	}
	shop, err := json.Marshal(mp.Shop)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shop: %w", err)
	}
	settings := string(mp.Settings)
	if settings == "" {
		settings = "{}"
	}

	return []interface{}{
		mp.ID, mp.Name, string(mp.Type), mp.Active, mp.NullifyStocks, mp.SpecialPriceName,
		mp.MinimalPrice.String(), string(productTypes), mp.IntervalMinutes, mp.UpdatePricesViaAPI,
		mp.UpdateStocksViaAPI, string(shop), settings,
	}, nil
}

func scanMarketplace(row pgx.Row) (*models.Marketplace, error) {
	var mp models.Marketplace
	var channel, minimalPrice string
	var productTypes, shop, settings []byte
	err := row.Scan(
		&mp.ID, &mp.Name, &channel, &mp.Active, &mp.NullifyStocks, &mp.SpecialPriceName, &minimalPrice,
		&productTypes, &mp.IntervalMinutes, &mp.UpdatePricesViaAPI, &mp.UpdateStocksViaAPI, &shop, &settings,
		&mp.CreatedAt, &mp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan marketplace row: %w", err)
	}

	mp.Type = models.ChannelType(channel)
	if mp.MinimalPrice, err = decimal.NewFromString(minimalPrice); err != nil {
		return nil, fmt.Errorf("marketplace %s: invalid minimal price: %w", mp.ID, err)
	}
	if err := json.Unmarshal(productTypes, &mp.ProductTypes); err != nil {
		return nil, fmt.Errorf("marketplace %s: failed to decode product types: %w", mp.ID, err)
	}
	if err := json.Unmarshal(shop, &mp.Shop); err != nil {
		return nil, fmt.Errorf("marketplace %s: failed to decode shop: %w", mp.ID, err)
	}
	mp.Settings = json.RawMessage(settings)
	return &mp, nil
}
