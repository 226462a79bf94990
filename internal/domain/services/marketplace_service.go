package services

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/google/uuid"
)

// MarketplaceService управляет конфигурациями маркетплейсов
type MarketplaceService struct {
	store  MarketplaceStore
	logger interfaces.LoggerPort
}

// NewMarketplaceService создает сервис конфигураций
func NewMarketplaceService(store MarketplaceStore, logger interfaces.LoggerPort) *MarketplaceService {
	return &MarketplaceService{store: store, logger: logger}
}

// Create создает конфигурацию
func (s *MarketplaceService) Create(ctx context.Context, mp *models.Marketplace) (*models.Marketplace, error) {
	if err := mp.Validate(); err != nil {
		return nil, err
	}
	if mp.ID == "" {
		mp.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	mp.CreatedAt = now
	mp.UpdatedAt = now

	if err := s.store.CreateMarketplace(ctx, mp); err != nil {
		return nil, fmt.Errorf("failed to create marketplace: %w", err)
	}

	s.logger.InfoWithContext(ctx, "Конфигурация маркетплейса создана",
		interfaces.LogField{Key: "marketplace_id", Value: mp.ID},
		interfaces.LogField{Key: "type", Value: mp.Type})
	return mp, nil
}

// Update заменяет конфигурацию целиком
func (s *MarketplaceService) Update(ctx context.Context, mp *models.Marketplace) (*models.Marketplace, error) {
	if err := mp.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, mp.ID)
	if err != nil {
		return nil, err
	}
	mp.CreatedAt = existing.CreatedAt
	mp.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateMarketplace(ctx, mp); err != nil {
		return nil, fmt.Errorf("failed to update marketplace: %w", err)
	}
	return mp, nil
}

// Get возвращает конфигурацию или ErrNotFound
func (s *MarketplaceService) Get(ctx context.Context, id string) (*models.Marketplace, error) {
	mp, err := s.store.GetMarketplace(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get marketplace: %w", err)
	}
	if mp == nil {
		return nil, fmt.Errorf("marketplace %s: %w", id, models.ErrNotFound)
	}
	return mp, nil
}

func (s *MarketplaceService) List(ctx context.Context, activeOnly bool) ([]*models.Marketplace, error) {
	list, err := s.store.ListMarketplaces(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list marketplaces: %w", err)
	}
	return list, nil
}

func (s *MarketplaceService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteMarketplace(ctx, id); err != nil {
		return fmt.Errorf("failed to delete marketplace: %w", err)
	}
	s.logger.InfoWithContext(ctx, "Конфигурация маркетплейса удалена", interfaces.LogField{Key: "marketplace_id", Value: id})
	return nil
}
