package models

import "time"

// ProductFilter представляет структурированную модель для выборки товаров
type ProductFilter struct {
	// Listable оставляет неудаленные товары с указанной категорией
	Listable bool

	ProductTypes []string

	// MarketplaceID оставляет товары, у которых есть настройка для маркетплейса
	MarketplaceID string
	// MappedOnly дополнительно требует непустой внешний идентификатор
	MappedOnly         bool
	ExternalIdentifier string

	PriceUpdatedSince *time.Time
	Articuls          []string

	Limit  int
	Offset int
}
