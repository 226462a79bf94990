package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpecialPrice именованная альтернативная цена товара (например, акционная)
type SpecialPrice struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Dimensions габариты товара в сантиметрах
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero сообщает, что габариты не заданы
func (d Dimensions) IsZero() bool {
	return d.Length <= 0 || d.Width <= 0 || d.Height <= 0
}

// Characteristic произвольная характеристика товара
type Characteristic struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MarketplaceSetting настройки товара для конкретного маркетплейса
type MarketplaceSetting struct {
	MarketplaceID      string `json:"marketplace_id"`
	NullifyStock       bool   `json:"nullify_stock"`
	IgnoreRestrictions bool   `json:"ignore_restrictions"`
	ExternalIdentifier string `json:"external_identifier,omitempty"` // SKU товара на маркетплейсе
}

// MarketplaceSettingUpdate изменение настройки товара.
// Nil ExternalIdentifier оставляет сохраненное сопоставление.
type MarketplaceSettingUpdate struct {
	MarketplaceID      string
	NullifyStock       bool
	IgnoreRestrictions bool
	ExternalIdentifier *string
}

// ApplyTo накладывает изменение на текущую настройку
func (u MarketplaceSettingUpdate) ApplyTo(current MarketplaceSetting) MarketplaceSetting {
	setting := MarketplaceSetting{
		MarketplaceID:      u.MarketplaceID,
		NullifyStock:       u.NullifyStock,
		IgnoreRestrictions: u.IgnoreRestrictions,
		ExternalIdentifier: current.ExternalIdentifier,
	}
	if u.ExternalIdentifier != nil {
		setting.ExternalIdentifier = *u.ExternalIdentifier
	}
	return setting
}

// Product представляет товар каталога продавца
type Product struct {
	ID              string           `json:"id"`
	Code            string           `json:"code"`
	Barcode         string           `json:"barcode,omitempty"`
	Articul         string           `json:"articul"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	Brand           string           `json:"brand,omitempty"`
	Type            string           `json:"type,omitempty"`
	BasePrice       decimal.Decimal  `json:"base_price"`
	SpecialPrices   []SpecialPrice   `json:"special_prices,omitempty"`
	Stock           int              `json:"stock"`
	CategoryCode    string           `json:"category_code,omitempty"` // Пустой код исключает товар из всех фидов
	IsDeleted       bool             `json:"is_deleted"`
	Weight          float64          `json:"weight,omitempty"`
	Dimensions      Dimensions       `json:"dimensions"`
	CountryOfOrigin string           `json:"country_of_origin,omitempty"`
	Images          []string         `json:"images,omitempty"`
	Characteristics []Characteristic `json:"characteristics,omitempty"`

	MarketplaceSettings []MarketplaceSetting `json:"marketplace_settings,omitempty"`

	PriceUpdatedAt time.Time `json:"price_updated_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MarketplaceSetting возвращает настройку товара для маркетплейса
func (p *Product) MarketplaceSetting(marketplaceID string) (MarketplaceSetting, bool) {
	for _, s := range p.MarketplaceSettings {
		if s.MarketplaceID == marketplaceID {
			return s, true
		}
	}
	return MarketplaceSetting{}, false
}

// SetMarketplaceSetting добавляет или заменяет настройку маркетплейса.
// Для одного маркетплейса у товара хранится не больше одной записи.
func (p *Product) SetMarketplaceSetting(setting MarketplaceSetting) {
	for i := range p.MarketplaceSettings {
		if p.MarketplaceSettings[i].MarketplaceID == setting.MarketplaceID {
			p.MarketplaceSettings[i] = setting
			return
		}
	}
	p.MarketplaceSettings = append(p.MarketplaceSettings, setting)
}
