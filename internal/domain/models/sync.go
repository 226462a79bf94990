package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobType тип фоновой задачи синхронизации
type JobType string

const (
	JobFeedGeneration  JobType = "feed_generation"
	JobSKUMapping      JobType = "sku_mapping"
	JobHiddenOffers    JobType = "hidden_offers"
	JobPriceQueueFill  JobType = "price_queue_fill"
	JobPriceQueueDrain JobType = "price_queue_drain"
)

// JobTypes перечисляет все задачи
var JobTypes = []JobType{
	JobFeedGeneration,
	JobSKUMapping,
	JobHiddenOffers,
	JobPriceQueueFill,
	JobPriceQueueDrain,
}

// Valid проверяет, что тип задачи известен
func (j JobType) Valid() bool {
	for _, t := range JobTypes {
		if t == j {
			return true
		}
	}
	return false
}

// Watermark время последнего успешного запуска задачи для конфигурации.
// Каждая задача пишет только свою запись.
type Watermark struct {
	MarketplaceID string    `json:"marketplace_id"`
	Job           JobType   `json:"job"`
	LastRun       time.Time `json:"last_run"`
}

// SendPriceQueueEntry цена, ожидающая отправки на маркетплейс.
// Уникальна по паре (MarketplaceID, ExternalSKU).
type SendPriceQueueEntry struct {
	MarketplaceID string          `json:"marketplace_id"`
	ExternalSKU   string          `json:"external_sku"`
	Price         decimal.Decimal `json:"price"`
	QueuedAt      time.Time       `json:"queued_at"`
}
