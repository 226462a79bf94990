package services

import (
	"context"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-platform/pkg/models"
)

// ProductStore хранилище товаров каталога
type ProductStore interface {
	// ListProducts возвращает товары по фильтру в порядке возрастания ID
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	// GetProduct возвращает nil, nil если товар не найден
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	// SaveMarketplaceSetting атомарно заменяет настройку товара для маркетплейса
	SaveMarketplaceSetting(ctx context.Context, productID string, setting models.MarketplaceSetting) error
}

// CategoryStore хранилище категорий
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]*models.Category, error)
	// GetCategoryByCode возвращает nil, nil если категория не найдена
	GetCategoryByCode(ctx context.Context, code string) (*models.Category, error)
	SetCategoryBlocked(ctx context.Context, code, marketplaceID string, blocked bool) error
}

// MarketplaceStore хранилище конфигураций маркетплейсов
type MarketplaceStore interface {
	ListMarketplaces(ctx context.Context, activeOnly bool) ([]*models.Marketplace, error)
	// GetMarketplace возвращает nil, nil если конфигурация не найдена
	GetMarketplace(ctx context.Context, id string) (*models.Marketplace, error)
	CreateMarketplace(ctx context.Context, mp *models.Marketplace) error
	UpdateMarketplace(ctx context.Context, mp *models.Marketplace) error
	DeleteMarketplace(ctx context.Context, id string) error
}

// WatermarkStore хранит время последнего успешного запуска по паре (конфигурация, задача)
type WatermarkStore interface {
	// GetWatermark возвращает нулевое время, если задача еще не выполнялась
	GetWatermark(ctx context.Context, marketplaceID string, job models.JobType) (time.Time, error)
	SetWatermark(ctx context.Context, marketplaceID string, job models.JobType, at time.Time) error
}

// PriceQueueStore очередь цен на отправку
type PriceQueueStore interface {
	// EnqueuePrices вставляет или обновляет записи по ключу (MarketplaceID, ExternalSKU)
	EnqueuePrices(ctx context.Context, entries []models.SendPriceQueueEntry) error
	// OldestPrices возвращает до limit записей конфигурации, самые старые первыми
	OldestPrices(ctx context.Context, marketplaceID string, limit int) ([]models.SendPriceQueueEntry, error)
	DeletePrices(ctx context.Context, marketplaceID string, skus []string) error
	ListPrices(ctx context.Context, marketplaceID string, limit, offset int) ([]models.SendPriceQueueEntry, int, error)
}

// MarketAPI API маркетплейса
type MarketAPI interface {
	SKUMappings(ctx context.Context, api *models.APISettings, shopSKUs []string) ([]pkgmodels.OfferMapping, error)
	HiddenOffers(ctx context.Context, api *models.APISettings) ([]pkgmodels.HiddenOffer, error)
	HideOffers(ctx context.Context, api *models.APISettings, offers []pkgmodels.HiddenOffer) error
	ShowOffers(ctx context.Context, api *models.APISettings, skus []string) error
	PushPrices(ctx context.Context, api *models.APISettings, prices []pkgmodels.PriceUpdate) error
}

// RepairTrigger запускает повторное определение одного SKU маркетплейса
type RepairTrigger interface {
	TriggerSKUResolve(ctx context.Context, marketplaceID, externalSKU string) error
}

// EventPublisher публикует события синхронизации
type EventPublisher interface {
	Publish(ctx context.Context, topic string, message []byte) error
}
