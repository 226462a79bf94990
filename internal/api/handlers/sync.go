package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/pkg/utils"
	"github.com/go-chi/chi/v5"
)

// PriceQueueReader постраничное чтение очереди цен
type PriceQueueReader interface {
	List(ctx context.Context, marketplaceID string, limit, offset int) ([]models.SendPriceQueueEntry, int, error)
}

// JobRunner внеочередной запуск задачи синхронизации
type JobRunner interface {
	RunNow(ctx context.Context, jobType models.JobType, marketplaceID string) error
}

// SyncHandler обработчик запросов синхронизации
type SyncHandler struct {
	marketplaces MarketplaceManager
	queue        PriceQueueReader
	jobs         JobRunner
	jobTimeout   time.Duration
	logger       interfaces.LoggerPort
}

// NewSyncHandler создает обработчик синхронизации.
// jobTimeout ограничивает ручной запуск задачи, 0 - без ограничения.
func NewSyncHandler(
	marketplaces MarketplaceManager,
	queue PriceQueueReader,
	jobs JobRunner,
	jobTimeout time.Duration,
	logger interfaces.LoggerPort,
) *SyncHandler {
	return &SyncHandler{marketplaces: marketplaces, queue: queue, jobs: jobs, jobTimeout: jobTimeout, logger: logger}
}

// ListPriceQueue возвращает страницу очереди цен конфигурации
func (h *SyncHandler) ListPriceQueue(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pageParams(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, "bad_request", "Некорректные параметры пагинации")
		return
	}

	marketplaceID := chi.URLParam(r, "id")
	if _, err := h.marketplaces.Get(r.Context(), marketplaceID); err != nil {
		writeError(w, r, h.logger, "Ошибка получения маркетплейса", err)
		return
	}

	req := utils.NewPageRequest(page, pageSize)
	entries, total, err := h.queue.List(r.Context(), marketplaceID, req.Limit(), req.Offset())
	if err != nil {
		writeError(w, r, h.logger, "Ошибка получения очереди цен", err)
		return
	}

	writeJSON(w, r, http.StatusOK, utils.NewPage(req, entries, int64(total)))
}

// RunJob синхронно выполняет задачу для конфигурации
func (h *SyncHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	jobType := models.JobType(chi.URLParam(r, "job"))
	marketplaceID := chi.URLParam(r, "id")

	ctx := r.Context()
	if h.jobTimeout > 0 {
		// Задача может идти дольше общего таймаута записи сервера
		_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(h.jobTimeout + 5*time.Second))
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.jobTimeout)
		defer cancel()
	}

	if err := h.jobs.RunNow(ctx, jobType, marketplaceID); err != nil {
		writeError(w, r, h.logger, "Ошибка выполнения задачи", err)
		return
	}

	h.logger.InfoWithContext(r.Context(), "Задача выполнена по запросу",
		interfaces.LogField{Key: "job", Value: jobType},
		interfaces.LogField{Key: "marketplace_id", Value: marketplaceID})
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"job":            jobType,
		"marketplace_id": marketplaceID,
		"status":         "completed",
	})
}
