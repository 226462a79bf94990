package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/go-chi/render"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, response{Success: true, Data: data})
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: code, Code: status, Message: message})
}

// writeError переводит ошибку сервиса в HTTP-ответ.
// Внутренние ошибки логируются, клиенту уходит только общее сообщение.
func writeError(w http.ResponseWriter, r *http.Request, logger interfaces.LoggerPort, message string, err error) {
	var (
		validationErr *models.ValidationError
		duplicateErr  *models.DuplicateError
	)
	switch {
	case errors.As(err, &validationErr):
		writeErrorMessage(w, r, http.StatusBadRequest, "bad_request", validationErr.Error())
	case errors.Is(err, models.ErrNotFound):
		writeErrorMessage(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &duplicateErr):
		writeErrorMessage(w, r, http.StatusUnprocessableEntity, "duplicate", duplicateErr.Error())
	default:
		logger.ErrorWithContext(r.Context(), message,
			interfaces.LogField{Key: "error", Value: err.Error()},
			interfaces.LogField{Key: "path", Value: r.URL.Path})
		writeErrorMessage(w, r, http.StatusInternalServerError, "internal_error", message)
	}
}

// decodeJSON читает тело запроса. При ошибке ответ уже записан.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "bad_request", "Некорректное тело запроса")
		return false
	}
	return true
}

// pageParams разбирает page и page_size с ограничением размера страницы
func pageParams(r *http.Request) (page, pageSize int, ok bool) {
	page, pageSize = 1, defaultPageSize
	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return 0, 0, false
		}
		page = p
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		s, err := strconv.Atoi(v)
		if err != nil || s < 1 {
			return 0, 0, false
		}
		pageSize = min(s, maxPageSize)
	}
	return page, pageSize, true
}
