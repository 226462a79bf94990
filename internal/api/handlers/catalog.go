package handlers

import (
	"context"
	"net/http"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/go-chi/chi/v5"
)

// CatalogManager операции над товарами и категориями каталога
type CatalogManager interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	SetProductMarketplaceSetting(ctx context.Context, productID string, update models.MarketplaceSettingUpdate) (*models.Product, error)
	SetCategoryBlocked(ctx context.Context, code, marketplaceID string, blocked, nested bool) (int, error)
}

// CatalogHandler обработчик запросов каталога
type CatalogHandler struct {
	catalog CatalogManager
	logger  interfaces.LoggerPort
}

// NewCatalogHandler создает обработчик каталога
func NewCatalogHandler(catalog CatalogManager, logger interfaces.LoggerPort) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, "Ошибка получения товара", err)
		return
	}
	writeJSON(w, r, http.StatusOK, product)
}

type productSettingRequest struct {
	NullifyStock       bool    `json:"nullify_stock"`
	IgnoreRestrictions bool    `json:"ignore_restrictions"`
	ExternalIdentifier *string `json:"external_identifier"` // Отсутствие поля сохраняет сопоставление
}

// SetProductSetting записывает настройку товара для маркетплейса из пути
func (h *CatalogHandler) SetProductSetting(w http.ResponseWriter, r *http.Request) {
	var req productSettingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	update := models.MarketplaceSettingUpdate{
		MarketplaceID:      chi.URLParam(r, "marketplaceID"),
		NullifyStock:       req.NullifyStock,
		IgnoreRestrictions: req.IgnoreRestrictions,
		ExternalIdentifier: req.ExternalIdentifier,
	}
	product, err := h.catalog.SetProductMarketplaceSetting(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		writeError(w, r, h.logger, "Ошибка сохранения настройки товара", err)
		return
	}
	writeJSON(w, r, http.StatusOK, product)
}

type categoryBlockRequest struct {
	Blocked bool `json:"blocked"`
	Nested  bool `json:"nested"`
}

// SetCategoryBlocked меняет блокировку категории, nested распространяет ее на потомков
func (h *CatalogHandler) SetCategoryBlocked(w http.ResponseWriter, r *http.Request) {
	var req categoryBlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	code := chi.URLParam(r, "code")
	marketplaceID := chi.URLParam(r, "marketplaceID")
	updated, err := h.catalog.SetCategoryBlocked(r.Context(), code, marketplaceID, req.Blocked, req.Nested)
	if err != nil {
		writeError(w, r, h.logger, "Ошибка изменения блокировки категории", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"code":           code,
		"marketplace_id": marketplaceID,
		"blocked":        req.Blocked,
		"updated":        updated,
	})
}
