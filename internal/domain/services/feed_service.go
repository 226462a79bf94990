package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/feed"
	"github.com/athebyme/gomarket-platform/internal/metrics"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
)

// FeedResult итог генерации фида
type FeedResult struct {
	Path     string
	Offers   int
	Skipped  map[feed.SkipReason]int
	Warnings []string
}

// FeedService генерирует файлы фидов для конфигураций маркетплейсов
type FeedService struct {
	products     ProductStore
	categories   CategoryStore
	publisher    EventPublisher
	logger       interfaces.LoggerPort
	feedDir      string
	imageBaseURL string
	now          func() time.Time
}

// NewFeedService создает сервис генерации фидов. publisher может быть nil.
func NewFeedService(
	products ProductStore,
	categories CategoryStore,
	publisher EventPublisher,
	logger interfaces.LoggerPort,
	feedDir, imageBaseURL string,
) *FeedService {
	return &FeedService{
		products:     products,
		categories:   categories,
		publisher:    publisher,
		logger:       logger,
		feedDir:      feedDir,
		imageBaseURL: imageBaseURL,
		now:          time.Now,
	}
}

// Generate строит и записывает фид конфигурации
func (s *FeedService) Generate(ctx context.Context, mp *models.Marketplace) (*FeedResult, error) {
	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	products, err := s.products.ListProducts(ctx, models.ProductFilter{
		Listable:     true,
		ProductTypes: mp.ProductTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	builder := feed.NewBuilder(mp, s.imageBaseURL)
	for _, c := range cats {
		builder.AddCategory(c)
	}
	for _, p := range products {
		builder.AddProduct(p)
	}
	doc := builder.Build(s.now())

	log := s.logger.WithMarketplace(mp.ID)
	for _, w := range doc.Warnings {
		log.WarnWithContext(ctx, "Проблема данных каталога", interfaces.LogField{Key: "warning", Value: w})
	}

	formatter := feed.FormatterFor(doc.Capabilities.Format)
	path, err := feed.WriteFile(s.feedDir, mp.ID, formatter, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to write feed: %w", err)
	}

	metrics.FeedOffers.WithLabelValues(mp.ID).Set(float64(len(doc.Offers)))
	for reason, n := range doc.Skipped {
		metrics.FeedSkipped.WithLabelValues(mp.ID, string(reason)).Add(float64(n))
	}

	log.InfoWithContext(ctx, "Фид сгенерирован",
		interfaces.LogField{Key: "path", Value: path},
		interfaces.LogField{Key: "offers", Value: len(doc.Offers)},
		interfaces.LogField{Key: "categories", Value: len(doc.Categories)})

	s.publish(ctx, models.FeedGeneratedEvent{
		MarketplaceID: mp.ID,
		Path:          path,
		Offers:        len(doc.Offers),
		Warnings:      doc.Warnings,
		GeneratedAt:   doc.Date,
	})

	return &FeedResult{
		Path:     path,
		Offers:   len(doc.Offers),
		Skipped:  doc.Skipped,
		Warnings: doc.Warnings,
	}, nil
}

// publish не влияет на результат генерации: файл уже записан
func (s *FeedService) publish(ctx context.Context, event models.FeedGeneratedEvent) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "Ошибка сериализации события", interfaces.LogField{Key: "error", Value: err.Error()})
		return
	}
	if err := s.publisher.Publish(ctx, models.TopicFeedGenerated, data); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось опубликовать событие генерации фида",
			interfaces.LogField{Key: "marketplace_id", Value: event.MarketplaceID},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}
