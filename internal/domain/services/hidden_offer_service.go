package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/athebyme/gomarket-platform/internal/domain/categories"
	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/domain/pricing"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	pkgmodels "github.com/athebyme/gomarket-platform/pkg/models"
)

const (
	defaultHiddenBatchSize    = 500
	defaultHiddenOfferComment = "Нет в наличии"
)

// HiddenSyncResult итог синхронизации скрытых предложений
type HiddenSyncResult struct {
	Hidden int
	Shown  int
}

// HiddenOfferService скрывает на маркетплейсе недоступные товары и возвращает доступные
type HiddenOfferService struct {
	products   ProductStore
	categories CategoryStore
	api        MarketAPI
	logger     interfaces.LoggerPort
	batchSize  int
}

// NewHiddenOfferService создает сервис скрытых предложений
func NewHiddenOfferService(products ProductStore, categories CategoryStore, api MarketAPI, logger interfaces.LoggerPort, batchSize int) *HiddenOfferService {
	if batchSize <= 0 {
		batchSize = defaultHiddenBatchSize
	}
	return &HiddenOfferService{
		products:   products,
		categories: categories,
		api:        api,
		logger:     logger,
		batchSize:  batchSize,
	}
}

// Sync сравнивает желаемый набор скрытых SKU с текущим на маркетплейсе.
// Возвращаются в продажу только SKU наших товаров. Ошибка пакета не прерывает остальные пакеты.
func (s *HiddenOfferService) Sync(ctx context.Context, mp *models.Marketplace) (HiddenSyncResult, error) {
	var result HiddenSyncResult

	settings, err := mp.APISettings()
	if err != nil {
		return result, err
	}

	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list categories: %w", err)
	}
	byCode := make(map[string]*models.Category, len(cats))
	for _, c := range cats {
		byCode[c.Code] = c
	}

	products, err := s.products.ListProducts(ctx, models.ProductFilter{MarketplaceID: mp.ID, MappedOnly: true})
	if err != nil {
		return result, fmt.Errorf("failed to list products: %w", err)
	}

	owned := make(map[string]bool, len(products))
	desired := make(map[string]bool)
	for _, p := range products {
		override, _ := pricing.ResolveSetting(p.MarketplaceSettings, mp.ID)
		sku := override.ExternalIdentifier
		if sku == "" {
			continue
		}
		owned[sku] = true
		if !s.sellable(p, mp, byCode) {
			desired[sku] = true
		}
	}

	remote, err := s.api.HiddenOffers(ctx, settings)
	if err != nil {
		return result, err
	}
	hiddenNow := make(map[string]bool, len(remote))
	for _, h := range remote {
		hiddenNow[h.SKU] = true
	}

	var toHide, toShow []string
	for sku := range desired {
		if !hiddenNow[sku] {
			toHide = append(toHide, sku)
		}
	}
	for sku := range hiddenNow {
		if owned[sku] && !desired[sku] {
			toShow = append(toShow, sku)
		}
	}
	sort.Strings(toHide)
	sort.Strings(toShow)

	comment := settings.HiddenOfferComment
	if comment == "" {
		comment = defaultHiddenOfferComment
	}

	var errs []error
	for _, batch := range chunk(toHide, s.batchSize) {
		offers := make([]pkgmodels.HiddenOffer, 0, len(batch))
		for _, sku := range batch {
			offers = append(offers, pkgmodels.HiddenOffer{SKU: sku, Comment: comment, TTLHours: settings.HiddenOfferTTLHours})
		}
		if err := s.api.HideOffers(ctx, settings, offers); err != nil {
			errs = append(errs, fmt.Errorf("hide batch: %w", err))
			continue
		}
		result.Hidden += len(batch)
	}
	for _, batch := range chunk(toShow, s.batchSize) {
		if err := s.api.ShowOffers(ctx, settings, batch); err != nil {
			errs = append(errs, fmt.Errorf("show batch: %w", err))
			continue
		}
		result.Shown += len(batch)
	}

	s.logger.WithMarketplace(mp.ID).InfoWithContext(ctx, "Скрытые предложения синхронизированы",
		interfaces.LogField{Key: "hidden", Value: result.Hidden},
		interfaces.LogField{Key: "shown", Value: result.Shown},
		interfaces.LogField{Key: "failed_batches", Value: len(errs)})

	return result, errors.Join(errs...)
}

func (s *HiddenOfferService) sellable(p *models.Product, mp *models.Marketplace, byCode map[string]*models.Category) bool {
	if p.IsDeleted || p.CategoryCode == "" || !mp.AcceptsProductType(p.Type) {
		return false
	}
	cat, ok := byCode[p.CategoryCode]
	if !ok || !categories.Visible(cat) {
		return false
	}
	view, ok := pricing.Derive(p, mp, categories.IsBlocked(cat, mp.ID))
	return ok && view.Available
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for len(items) > 0 {
		n := size
		if len(items) < n {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
