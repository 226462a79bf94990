package services

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/categories"
	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/pkg/tx"
)

// CatalogService операции управления каталогом, влияющие на выгрузку
type CatalogService struct {
	products     ProductStore
	categories   CategoryStore
	marketplaces MarketplaceStore
	txManager    tx.Manager
	logger       interfaces.LoggerPort
}

// NewCatalogService создает сервис каталога
func NewCatalogService(
	products ProductStore,
	categories CategoryStore,
	marketplaces MarketplaceStore,
	txManager tx.Manager,
	logger interfaces.LoggerPort,
) *CatalogService {
	return &CatalogService{
		products:     products,
		categories:   categories,
		marketplaces: marketplaces,
		txManager:    txManager,
		logger:       logger,
	}
}

// SetCategoryBlocked меняет блокировку категории для маркетплейса.
// При nested блокировка явно записывается и всем потомкам в одной транзакции.
// Возвращает число измененных категорий.
func (s *CatalogService) SetCategoryBlocked(ctx context.Context, code, marketplaceID string, blocked, nested bool) (int, error) {
	if err := s.requireMarketplace(ctx, marketplaceID); err != nil {
		return 0, err
	}

	category, err := s.categories.GetCategoryByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("failed to get category: %w", err)
	}
	if category == nil {
		return 0, fmt.Errorf("category %s: %w", code, models.ErrNotFound)
	}

	if !nested {
		if err := s.categories.SetCategoryBlocked(ctx, code, marketplaceID, blocked); err != nil {
			return 0, fmt.Errorf("failed to update category: %w", err)
		}
		return 1, nil
	}

	all, err := s.categories.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list categories: %w", err)
	}
	codes := []string{code}
	for _, c := range categories.Descendants(all, code) {
		codes = append(codes, c.Code)
	}

	err = s.txManager.WithinTx(ctx, func(txCtx context.Context) error {
		for _, c := range codes {
			if err := s.categories.SetCategoryBlocked(txCtx, c, marketplaceID, blocked); err != nil {
				return fmt.Errorf("category %s: %w", c, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update category tree: %w", err)
	}

	s.logger.InfoWithContext(ctx, "Блокировка категорий изменена",
		interfaces.LogField{Key: "root", Value: code},
		interfaces.LogField{Key: "marketplace_id", Value: marketplaceID},
		interfaces.LogField{Key: "blocked", Value: blocked},
		interfaces.LogField{Key: "count", Value: len(codes)})

	return len(codes), nil
}

// GetProduct возвращает товар или ErrNotFound
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	return product, nil
}

// SetProductMarketplaceSetting записывает настройку товара для маркетплейса.
// У товара остается ровно одна настройка на маркетплейс, сопоставление SKU
// меняется только при явно переданном идентификаторе.
func (s *CatalogService) SetProductMarketplaceSetting(ctx context.Context, productID string, update models.MarketplaceSettingUpdate) (*models.Product, error) {
	if err := s.requireMarketplace(ctx, update.MarketplaceID); err != nil {
		return nil, err
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	current, _ := product.MarketplaceSetting(update.MarketplaceID)
	setting := update.ApplyTo(current)
	product.SetMarketplaceSetting(setting)
	product.UpdatedAt = time.Now().UTC()

	if err := s.products.SaveMarketplaceSetting(ctx, productID, setting); err != nil {
		return nil, fmt.Errorf("failed to save product setting: %w", err)
	}
	return product, nil
}

func (s *CatalogService) requireMarketplace(ctx context.Context, id string) error {
	if id == "" {
		return &models.ValidationError{Field: "marketplace_id", Message: "идентификатор маркетплейса обязателен"}
	}
	mp, err := s.marketplaces.GetMarketplace(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get marketplace: %w", err)
	}
	if mp == nil {
		return fmt.Errorf("marketplace %s: %w", id, models.ErrNotFound)
	}
	return nil
}
