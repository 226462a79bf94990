package models

import "time"

// Темы обмена сообщениями
const (
	TopicFeedGenerated = "marketplace.feed_generated"
	TopicSKUResolve    = "marketplace.sku_resolve"
)

// FeedGeneratedEvent фид конфигурации записан на диск
type FeedGeneratedEvent struct {
	MarketplaceID string    `json:"marketplace_id"`
	Path          string    `json:"path"`
	Offers        int       `json:"offers"`
	Warnings      []string  `json:"warnings,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// SKUResolveCommand команда повторно определить соответствие для одного SKU маркетплейса
type SKUResolveCommand struct {
	MarketplaceID string    `json:"marketplace_id"`
	ExternalSKU   string    `json:"external_sku"`
	RequestedAt   time.Time `json:"requested_at"`
}
