package marketapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/athebyme/gomarket-platform/internal/metrics"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
)

// ErrUnavailable временная недоступность API маркетплейса
var ErrUnavailable = errors.New("marketplace api unavailable")

// Backoff возвращает паузу перед повтором попытки с номером attempt
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Executor выполняет HTTP-запросы с ограничением частоты, повторами и декодированием JSON
type Executor struct {
	logger       interfaces.LoggerPort
	limiters     *Limiters
	http         *http.Client
	retryMax     int
	backoff      func(attempt int) time.Duration
	errorHandler func(status int, body []byte) error
}

// NewExecutor создает исполнителя. errorHandler вызывается для ответов 4xx.
func NewExecutor(
	logger interfaces.LoggerPort,
	limiters *Limiters,
	httpClient *http.Client,
	retryMax int,
	errorHandler func(status int, body []byte) error,
) *Executor {
	return &Executor{
		logger:       logger,
		limiters:     limiters,
		http:         httpClient,
		retryMax:     retryMax,
		backoff:      Backoff,
		errorHandler: errorHandler,
	}
}

// DoJSON выполняет запрос и декодирует тело ответа в out.
// 5xx, 429 и сетевые ошибки повторяются, остальные 4xx сразу передаются в errorHandler.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.backoff(attempt-1)); err != nil {
				return err
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return fmt.Errorf("failed to reset request body: %w", err)
				}
				req.Body = body
			}
		}

		if e.limiters != nil {
			if err := e.limiters.Wait(ctx, rateLimitKey); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		start := time.Now()
		resp, err := e.http.Do(req.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			metrics.MarketAPIRequests.WithLabelValues(req.Method, "error").Inc()
			e.logger.Warn("Ошибка HTTP запроса к маркетплейсу",
				interfaces.LogField{Key: "url", Value: req.URL.String()},
				interfaces.LogField{Key: "attempt", Value: attempt},
				interfaces.LogField{Key: "error", Value: err.Error()})
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		metrics.MarketAPIRequests.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			e.logger.Warn("Маркетплейс вернул ошибку сервера",
				interfaces.LogField{Key: "url", Value: req.URL.String()},
				interfaces.LogField{Key: "status", Value: resp.StatusCode},
				interfaces.LogField{Key: "latency", Value: elapsed.String()},
				interfaces.LogField{Key: "attempt", Value: attempt})
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 400 {
			if e.errorHandler != nil {
				return e.errorHandler(resp.StatusCode, body)
			}
			return fmt.Errorf("marketplace returned %d", resp.StatusCode)
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn("Не удалось разобрать ответ маркетплейса",
					interfaces.LogField{Key: "url", Value: req.URL.String()},
					interfaces.LogField{Key: "error", Value: err.Error()})
				return fmt.Errorf("decode failed: %w", err)
			}
		}

		e.logger.Debug("Запрос к маркетплейсу выполнен",
			interfaces.LogField{Key: "url", Value: req.URL.String()},
			interfaces.LogField{Key: "status", Value: resp.StatusCode},
			interfaces.LogField{Key: "elapsed", Value: elapsed.String()})

		return nil
	}

	return fmt.Errorf("%w: request failed after %d attempts: %w", ErrUnavailable, e.retryMax+1, lastErr)
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
