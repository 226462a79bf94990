package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/domain/pricing"
	"github.com/athebyme/gomarket-platform/internal/metrics"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	pkgmodels "github.com/athebyme/gomarket-platform/pkg/models"
)

// DefaultDrainBatchSize максимальное число цен в одной отправке
const DefaultDrainBatchSize = 50

// DrainResult итог отправки пакета цен
type DrainResult struct {
	Sent     int
	Repaired []string
}

// PriceQueueService наполняет очередь цен и отправляет ее на маркетплейс
type PriceQueueService struct {
	products   ProductStore
	queue      PriceQueueStore
	watermarks WatermarkStore
	api        MarketAPI
	repair     RepairTrigger
	logger     interfaces.LoggerPort
	batchSize  int
	now        func() time.Time
}

// NewPriceQueueService создает сервис очереди цен
func NewPriceQueueService(
	products ProductStore,
	queue PriceQueueStore,
	watermarks WatermarkStore,
	api MarketAPI,
	repair RepairTrigger,
	logger interfaces.LoggerPort,
	batchSize int,
) *PriceQueueService {
	if batchSize <= 0 {
		batchSize = DefaultDrainBatchSize
	}
	return &PriceQueueService{
		products:   products,
		queue:      queue,
		watermarks: watermarks,
		api:        api,
		repair:     repair,
		logger:     logger,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Enqueue ставит цены в очередь. Повтор ключа (MarketplaceID, ExternalSKU) перезаписывает цену.
func (s *PriceQueueService) Enqueue(ctx context.Context, entries ...models.SendPriceQueueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	now := s.now().UTC()
	index := make(map[[2]string]int, len(entries))
	deduped := make([]models.SendPriceQueueEntry, 0, len(entries))
	for _, e := range entries {
		if e.MarketplaceID == "" || e.ExternalSKU == "" {
			return &models.ValidationError{Field: "external_sku", Message: "не задан маркетплейс или SKU"}
		}
		e.QueuedAt = now
		key := [2]string{e.MarketplaceID, e.ExternalSKU}
		if i, ok := index[key]; ok {
			deduped[i] = e
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, e)
	}

	if err := s.queue.EnqueuePrices(ctx, deduped); err != nil {
		return fmt.Errorf("failed to enqueue prices: %w", err)
	}
	return nil
}

// Fill ставит в очередь цены товаров, измененные с последнего успешного наполнения.
// Водяной знак сдвигает планировщик после успешного завершения.
func (s *PriceQueueService) Fill(ctx context.Context, mp *models.Marketplace) (int, error) {
	since, err := s.watermarks.GetWatermark(ctx, mp.ID, models.JobPriceQueueFill)
	if err != nil {
		return 0, fmt.Errorf("failed to get watermark: %w", err)
	}

	filter := models.ProductFilter{MarketplaceID: mp.ID, MappedOnly: true}
	if !since.IsZero() {
		filter.PriceUpdatedSince = &since
	}
	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to list products: %w", err)
	}

	entries := make([]models.SendPriceQueueEntry, 0, len(products))
	for _, p := range products {
		if p.IsDeleted {
			continue
		}
		override, _ := pricing.ResolveSetting(p.MarketplaceSettings, mp.ID)
		if override.ExternalIdentifier == "" {
			continue
		}
		price, ok := pricing.EffectivePrice(p.BasePrice, p.SpecialPrices, mp.SpecialPriceName)
		if !ok {
			continue
		}
		entries = append(entries, models.SendPriceQueueEntry{
			MarketplaceID: mp.ID,
			ExternalSKU:   override.ExternalIdentifier,
			Price:         price,
		})
	}

	if err := s.Enqueue(ctx, entries...); err != nil {
		return 0, err
	}

	s.logger.WithMarketplace(mp.ID).DebugWithContext(ctx, "Очередь цен пополнена",
		interfaces.LogField{Key: "since", Value: since},
		interfaces.LogField{Key: "queued", Value: len(entries)})
	return len(entries), nil
}

// Drain отправляет самые старые записи очереди одним пакетом.
// Отправленные записи удаляются. При ответе об отсутствии маппинга удаляются только
// затронутые записи и для каждого SKU запускается переопределение, остальные ждут следующего запуска.
func (s *PriceQueueService) Drain(ctx context.Context, mp *models.Marketplace) (DrainResult, error) {
	var result DrainResult

	entries, err := s.queue.OldestPrices(ctx, mp.ID, s.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to read price queue: %w", err)
	}
	if len(entries) == 0 {
		return result, nil
	}

	settings, err := mp.APISettings()
	if err != nil {
		return result, err
	}

	updates := make([]pkgmodels.PriceUpdate, 0, len(entries))
	skus := make([]string, 0, len(entries))
	for _, e := range entries {
		updates = append(updates, pkgmodels.PriceUpdate{SKU: e.ExternalSKU, Price: e.Price, Currency: settings.Currency})
		skus = append(skus, e.ExternalSKU)
	}

	log := s.logger.WithMarketplace(mp.ID)

	pushErr := s.api.PushPrices(ctx, settings, updates)
	if pushErr == nil {
		if err := s.queue.DeletePrices(ctx, mp.ID, skus); err != nil {
			return result, fmt.Errorf("failed to delete sent prices: %w", err)
		}
		result.Sent = len(skus)
		metrics.PriceQueueProcessed.WithLabelValues(mp.ID, "sent").Add(float64(len(skus)))
		log.InfoWithContext(ctx, "Цены отправлены", interfaces.LogField{Key: "count", Value: len(skus)})
		return result, nil
	}

	var mnf *models.MappingNotFoundError
	if !errors.As(pushErr, &mnf) {
		return result, fmt.Errorf("failed to push prices: %w", pushErr)
	}

	unmapped := batchSKUs(mnf.SKUs, skus)
	if len(unmapped) == 0 {
		return result, fmt.Errorf("failed to push prices: unmapped SKUs outside batch: %w", pushErr)
	}

	if err := s.queue.DeletePrices(ctx, mp.ID, unmapped); err != nil {
		return result, fmt.Errorf("failed to delete unmapped prices: %w", err)
	}
	result.Repaired = unmapped
	metrics.PriceQueueProcessed.WithLabelValues(mp.ID, "repaired").Add(float64(len(unmapped)))

	for _, sku := range unmapped {
		log.WarnWithContext(ctx, "Маркетплейс не нашел SKU, запущено переопределение",
			interfaces.LogField{Key: "sku", Value: sku})
		if s.repair == nil {
			continue
		}
		if err := s.repair.TriggerSKUResolve(ctx, mp.ID, sku); err != nil {
			log.ErrorWithContext(ctx, "Ошибка переопределения SKU",
				interfaces.LogField{Key: "sku", Value: sku},
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	return result, nil
}

// batchSKUs оставляет из reported только SKU текущей пачки
func batchSKUs(reported, batch []string) []string {
	inBatch := make(map[string]struct{}, len(batch))
	for _, sku := range batch {
		inBatch[sku] = struct{}{}
	}
	var out []string
	for _, sku := range reported {
		if _, ok := inBatch[sku]; ok {
			out = append(out, sku)
			delete(inBatch, sku)
		}
	}
	return out
}

// List возвращает записи очереди конфигурации
func (s *PriceQueueService) List(ctx context.Context, marketplaceID string, limit, offset int) ([]models.SendPriceQueueEntry, int, error) {
	entries, total, err := s.queue.ListPrices(ctx, marketplaceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list price queue: %w", err)
	}
	return entries, total, nil
}
