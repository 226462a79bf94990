package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/go-chi/chi/v5"
)

// MarketplaceManager операции над конфигурациями маркетплейсов
type MarketplaceManager interface {
	Create(ctx context.Context, mp *models.Marketplace) (*models.Marketplace, error)
	Update(ctx context.Context, mp *models.Marketplace) (*models.Marketplace, error)
	Get(ctx context.Context, id string) (*models.Marketplace, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Marketplace, error)
	Delete(ctx context.Context, id string) error
}

// MarketplaceHandler обработчик запросов конфигураций маркетплейсов
type MarketplaceHandler struct {
	marketplaces MarketplaceManager
	logger       interfaces.LoggerPort
}

// NewMarketplaceHandler создает обработчик конфигураций
func NewMarketplaceHandler(marketplaces MarketplaceManager, logger interfaces.LoggerPort) *MarketplaceHandler {
	return &MarketplaceHandler{marketplaces: marketplaces, logger: logger}
}

// List возвращает конфигурации, ?active=true оставляет только активные
func (h *MarketplaceHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeErrorMessage(w, r, http.StatusBadRequest, "bad_request", "Параметр active должен быть true или false")
			return
		}
		activeOnly = parsed
	}

	list, err := h.marketplaces.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, h.logger, "Ошибка получения списка маркетплейсов", err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

func (h *MarketplaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	mp, err := h.marketplaces.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, "Ошибка получения маркетплейса", err)
		return
	}
	writeJSON(w, r, http.StatusOK, mp)
}

func (h *MarketplaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var mp models.Marketplace
	if !decodeJSON(w, r, &mp) {
		return
	}

	created, err := h.marketplaces.Create(r.Context(), &mp)
	if err != nil {
		writeError(w, r, h.logger, "Ошибка создания маркетплейса", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// Update заменяет конфигурацию, идентификатор берется из пути
func (h *MarketplaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var mp models.Marketplace
	if !decodeJSON(w, r, &mp) {
		return
	}
	mp.ID = chi.URLParam(r, "id")

	updated, err := h.marketplaces.Update(r.Context(), &mp)
	if err != nil {
		writeError(w, r, h.logger, "Ошибка обновления маркетплейса", err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *MarketplaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.marketplaces.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, "Ошибка удаления маркетплейса", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
