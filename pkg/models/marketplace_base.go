package models

import "github.com/shopspring/decimal"

// OfferMapping связывает артикул магазина с SKU карточки на маркетплейсе
type OfferMapping struct {
	ShopSKU   string `json:"shop_sku"`   // Артикул товара в нашей системе
	MarketSKU string `json:"market_sku"` // SKU карточки в системе маркетплейса
}

// HiddenOffer представляет скрытое на маркетплейсе предложение
type HiddenOffer struct {
	SKU      string `json:"sku"`
	Comment  string `json:"comment,omitempty"`
	TTLHours int    `json:"ttl_hours,omitempty"` // Время скрытия, 0 - бессрочно
}

// PriceUpdate представляет цену, отправляемую на маркетплейс
type PriceUpdate struct {
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}
