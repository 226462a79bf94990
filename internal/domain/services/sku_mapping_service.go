package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/domain/pricing"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
)

// SKUMappingService поддерживает внешние идентификаторы товаров в актуальном состоянии
type SKUMappingService struct {
	products     ProductStore
	marketplaces MarketplaceStore
	api          MarketAPI
	logger       interfaces.LoggerPort
}

// NewSKUMappingService создает сервис маппинга SKU
func NewSKUMappingService(products ProductStore, marketplaces MarketplaceStore, api MarketAPI, logger interfaces.LoggerPort) *SKUMappingService {
	return &SKUMappingService{
		products:     products,
		marketplaces: marketplaces,
		api:          api,
		logger:       logger,
	}
}

// MappingResult итог обновления маппинга
type MappingResult struct {
	Updated int
	Cleared int
}

// Refresh загружает все соответствия кампании и записывает внешние идентификаторы товаров.
// Идентификаторы товаров, которых больше нет в ответе, очищаются.
func (s *SKUMappingService) Refresh(ctx context.Context, mp *models.Marketplace) (MappingResult, error) {
	var result MappingResult

	settings, err := mp.APISettings()
	if err != nil {
		return result, err
	}

	mappings, err := s.api.SKUMappings(ctx, settings, nil)
	if err != nil {
		return result, err
	}
	byArticul := make(map[string]string, len(mappings))
	for _, m := range mappings {
		byArticul[m.ShopSKU] = m.MarketSKU
	}

	products, err := s.products.ListProducts(ctx, models.ProductFilter{Listable: true, ProductTypes: mp.ProductTypes})
	if err != nil {
		return result, fmt.Errorf("failed to list products: %w", err)
	}

	var errs []error
	for _, p := range products {
		override, _ := pricing.ResolveSetting(p.MarketplaceSettings, mp.ID)
		want := byArticul[p.Articul]
		if want == override.ExternalIdentifier {
			continue
		}

		if err := s.saveIdentifier(ctx, p.ID, mp.ID, override, want); err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", p.ID, err))
			continue
		}
		if want == "" {
			result.Cleared++
		} else {
			result.Updated++
		}
	}

	s.logger.WithMarketplace(mp.ID).InfoWithContext(ctx, "Маппинг SKU обновлен",
		interfaces.LogField{Key: "mappings", Value: len(mappings)},
		interfaces.LogField{Key: "updated", Value: result.Updated},
		interfaces.LogField{Key: "cleared", Value: result.Cleared})

	return result, errors.Join(errs...)
}

// ResolveExternalSKU повторно определяет соответствие для товаров с указанным SKU маркетплейса.
// Устаревший идентификатор очищается, новый записывается только если маркетплейс вернул другой SKU.
func (s *SKUMappingService) ResolveExternalSKU(ctx context.Context, marketplaceID, externalSKU string) error {
	mp, err := s.marketplaces.GetMarketplace(ctx, marketplaceID)
	if err != nil {
		return fmt.Errorf("failed to get marketplace: %w", err)
	}
	if mp == nil {
		return fmt.Errorf("marketplace %s: %w", marketplaceID, models.ErrNotFound)
	}
	settings, err := mp.APISettings()
	if err != nil {
		return err
	}

	products, err := s.products.ListProducts(ctx, models.ProductFilter{
		MarketplaceID:      marketplaceID,
		ExternalIdentifier: externalSKU,
	})
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	log := s.logger.WithMarketplace(marketplaceID)
	if len(products) == 0 {
		log.InfoWithContext(ctx, "Товар с SKU маркетплейса не найден", interfaces.LogField{Key: "sku", Value: externalSKU})
		return nil
	}

	var errs []error
	for _, p := range products {
		override, _ := pricing.ResolveSetting(p.MarketplaceSettings, marketplaceID)

		replacement := ""
		if p.Articul != "" {
			mappings, err := s.api.SKUMappings(ctx, settings, []string{p.Articul})
			if err != nil {
				errs = append(errs, fmt.Errorf("product %s: %w", p.ID, err))
				continue
			}
			for _, m := range mappings {
				if m.ShopSKU == p.Articul && m.MarketSKU != externalSKU {
					replacement = m.MarketSKU
					break
				}
			}
		}

		if err := s.saveIdentifier(ctx, p.ID, marketplaceID, override, replacement); err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", p.ID, err))
			continue
		}
		log.InfoWithContext(ctx, "SKU маркетплейса переопределен",
			interfaces.LogField{Key: "product_id", Value: p.ID},
			interfaces.LogField{Key: "old_sku", Value: externalSKU},
			interfaces.LogField{Key: "new_sku", Value: replacement})
	}

	return errors.Join(errs...)
}

func (s *SKUMappingService) saveIdentifier(ctx context.Context, productID, marketplaceID string, override pricing.Override, sku string) error {
	return s.products.SaveMarketplaceSetting(ctx, productID, models.MarketplaceSetting{
		MarketplaceID:      marketplaceID,
		NullifyStock:       override.NullifyStock,
		IgnoreRestrictions: override.IgnoreRestrictions,
		ExternalIdentifier: sku,
	})
}

// DirectRepairTrigger выполняет переопределение SKU в том же процессе
type DirectRepairTrigger struct {
	resolver *SKUMappingService
}

// NewDirectRepairTrigger создает синхронный триггер переопределения
func NewDirectRepairTrigger(resolver *SKUMappingService) *DirectRepairTrigger {
	return &DirectRepairTrigger{resolver: resolver}
}

func (t *DirectRepairTrigger) TriggerSKUResolve(ctx context.Context, marketplaceID, externalSKU string) error {
	return t.resolver.ResolveExternalSKU(ctx, marketplaceID, externalSKU)
}
