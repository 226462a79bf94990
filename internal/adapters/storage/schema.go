package postgres

import (
	"context"
	"fmt"
)

// schema создает таблицы хранилища, если их нет. Запросы идемпотентны.
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS catalog`,

	`CREATE TABLE IF NOT EXISTS catalog.categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		parent_code TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		marketplace_settings JSONB NOT NULL DEFAULT '[]',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS catalog.products (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		barcode TEXT NOT NULL DEFAULT '',
		articul TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		brand TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		base_price NUMERIC(14, 2) NOT NULL DEFAULT 0,
		special_prices JSONB NOT NULL DEFAULT '[]',
		stock INTEGER NOT NULL DEFAULT 0,
		category_code TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		weight DOUBLE PRECISION NOT NULL DEFAULT 0,
		dimensions JSONB NOT NULL DEFAULT '{}',
		country_of_origin TEXT NOT NULL DEFAULT '',
		images JSONB NOT NULL DEFAULT '[]',
		characteristics JSONB NOT NULL DEFAULT '[]',
		marketplace_settings JSONB NOT NULL DEFAULT '[]',
		price_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS products_articul_idx ON catalog.products (articul)`,
	`CREATE INDEX IF NOT EXISTS products_price_updated_at_idx ON catalog.products (price_updated_at)`,
	`CREATE INDEX IF NOT EXISTS products_marketplace_settings_idx ON catalog.products USING GIN (marketplace_settings jsonb_path_ops)`,

	`CREATE TABLE IF NOT EXISTS catalog.marketplaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		nullify_stocks BOOLEAN NOT NULL DEFAULT FALSE,
		special_price_name TEXT NOT NULL DEFAULT '',
		minimal_price NUMERIC(14, 2) NOT NULL DEFAULT 0,
		product_types JSONB NOT NULL DEFAULT '[]',
		interval_minutes INTEGER NOT NULL DEFAULT 0,
		update_prices_via_api BOOLEAN NOT NULL DEFAULT FALSE,
		update_stocks_via_api BOOLEAN NOT NULL DEFAULT FALSE,
		shop JSONB NOT NULL DEFAULT '{}',
		settings JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT marketplaces_name_key UNIQUE (name)
	)`,

	`CREATE TABLE IF NOT EXISTS catalog.sync_watermarks (
		marketplace_id TEXT NOT NULL REFERENCES catalog.marketplaces (id) ON DELETE CASCADE,
		job TEXT NOT NULL,
		last_run TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (marketplace_id, job)
	)`,

	`CREATE TABLE IF NOT EXISTS catalog.send_price_queue (
		marketplace_id TEXT NOT NULL REFERENCES catalog.marketplaces (id) ON DELETE CASCADE,
		external_sku TEXT NOT NULL,
		price NUMERIC(14, 2) NOT NULL,
		queued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (marketplace_id, external_sku)
	)`,
	`CREATE INDEX IF NOT EXISTS send_price_queue_queued_at_idx ON catalog.send_price_queue (marketplace_id, queued_at)`,
}

// Migrate применяет схему хранилища
func (r *Storage) Migrate(ctx context.Context) error {
	return r.txManager.WithinTx(ctx, func(ctx context.Context) error {
		executor := r.getExecutor(ctx)
		for _, stmt := range schema {
			if _, err := executor.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}
