package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const productColumns = `id, code, barcode, articul, name, description, brand, type,
	base_price::text, special_prices, stock, category_code, is_deleted, weight, dimensions,
	country_of_origin, images, characteristics, marketplace_settings, price_updated_at, updated_at`

// ListProducts возвращает товары по фильтру в порядке возрастания ID
func (r *Storage) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	where, args := productFilter(filter)

	query := `SELECT ` + productColumns + ` FROM catalog.products ` + where + ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ` + args.add(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + args.add(filter.Offset)
	}

	rows, err := r.getExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

// productFilter строит условие WHERE для выборки товаров
func productFilter(filter models.ProductFilter) (string, argList) {
	var conditions []string
	var args argList

	if filter.Listable {
		conditions = append(conditions, "is_deleted = FALSE", "category_code <> ''")
	}
	if len(filter.ProductTypes) > 0 {
		types := make([]string, len(filter.ProductTypes))
		for i, t := range filter.ProductTypes {
			types[i] = strings.ToLower(t)
		}
		conditions = append(conditions, "lower(type) = ANY("+args.add(types)+")")
	}
	if filter.MarketplaceID != "" {
		switch {
		case filter.ExternalIdentifier != "":
			conditions = append(conditions, "marketplace_settings @> "+args.add(settingDoc(map[string]string{
				"marketplace_id":      filter.MarketplaceID,
				"external_identifier": filter.ExternalIdentifier,
			}))+"::jsonb")
		case filter.MappedOnly:
			conditions = append(conditions, `EXISTS (SELECT 1 FROM jsonb_array_elements(marketplace_settings) s
				WHERE s->>'marketplace_id' = `+args.add(filter.MarketplaceID)+`
				AND COALESCE(s->>'external_identifier', '') <> '')`)
		default:
			conditions = append(conditions, "marketplace_settings @> "+args.add(settingDoc(map[string]string{
				"marketplace_id": filter.MarketplaceID,
			}))+"::jsonb")
		}
	}
	if filter.PriceUpdatedSince != nil {
		conditions = append(conditions, "price_updated_at >= "+args.add(*filter.PriceUpdatedSince))
	}
	if len(filter.Articuls) > 0 {
		conditions = append(conditions, "articul = ANY("+args.add(filter.Articuls)+")")
	}

	return genFilterConditions(conditions), args
}

// settingDoc JSONB-массив из одного элемента для оператора @>
func settingDoc(fields map[string]string) string {
	doc, _ := json.Marshal([]map[string]string{fields})
	return string(doc)
}

// GetProduct получает товар по ID, nil если не найден
func (r *Storage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	row := r.getExecutor(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM catalog.products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return product, nil
}

// SaveMarketplaceSetting заменяет настройку товара для маркетплейса под блокировкой строки
func (r *Storage) SaveMarketplaceSetting(ctx context.Context, productID string, setting models.MarketplaceSetting) error {
	return r.txManager.WithinTx(ctx, func(ctx context.Context) error {
		executor := r.getExecutor(ctx)

		var raw []byte
		err := executor.QueryRow(ctx,
			`SELECT marketplace_settings FROM catalog.products WHERE id = $1 FOR UPDATE`, productID,
		).Scan(&raw)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to lock product: %w", err)
		}

		product := &models.Product{ID: productID}
		if err := json.Unmarshal(raw, &product.MarketplaceSettings); err != nil {
			return fmt.Errorf("failed to decode marketplace settings: %w", err)
		}
		product.SetMarketplaceSetting(setting)

		settings, err := json.Marshal(product.MarketplaceSettings)
		if err != nil {
			return fmt.Errorf("failed to encode marketplace settings: %w", err)
		}
		_, err = executor.Exec(ctx,
			`UPDATE catalog.products SET marketplace_settings = $2, updated_at = $3 WHERE id = $1`,
			productID, string(settings), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to save marketplace setting: %w", err)
		}
		return nil
	})
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	var basePrice string
	var specialPrices, dimensions, images, characteristics, mpJSON []byte
	err := row.Scan(
		&p.ID, &p.Code, &p.Barcode, &p.Articul, &p.Name, &p.Description, &p.Brand, &p.Type,
		&basePrice, &specialPrices, &p.Stock, &p.CategoryCode, &p.IsDeleted, &p.Weight, &dimensions,
		&p.CountryOfOrigin, &images, &characteristics, &mpJSON, &p.PriceUpdatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product row: %w", err)
	}

	if p.BasePrice, err = decimal.NewFromString(basePrice); err != nil {
		return nil, fmt.Errorf("product %s: invalid base price: %w", p.ID, err)
	}
	for _, field := range []struct {
		raw  []byte
		dest interface{}
	}{
		{specialPrices, &p.SpecialPrices},
		{dimensions, &p.Dimensions},
		{images, &p.Images},
		{characteristics, &p.Characteristics},
		{mpJSON, &p.MarketplaceSettings},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return nil, fmt.Errorf("product %s: failed to decode JSON column: %w", p.ID, err)
		}
	}
	return &p, nil
}
