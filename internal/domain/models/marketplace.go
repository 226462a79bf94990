package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChannelType тип канала маркетплейса
type ChannelType string

const (
	// ChannelYML маркетплейс, принимающий YML-фид
	ChannelYML ChannelType = "yml"
	// ChannelYandexMarket маркетплейс с фидом и API скрытия предложений и цен
	ChannelYandexMarket ChannelType = "yandex_market"
	// ChannelJSONCatalog маркетплейс, принимающий каталог в JSON
	ChannelJSONCatalog ChannelType = "json_catalog"
)

// Valid проверяет, что тип канала известен
func (c ChannelType) Valid() bool {
	switch c {
	case ChannelYML, ChannelYandexMarket, ChannelJSONCatalog:
		return true
	}
	return false
}

// Shop метаданные магазина, попадающие в фид
type Shop struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	URL     string `json:"url"`
}

// Marketplace конфигурация выгрузки каталога на маркетплейс
type Marketplace struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Type               ChannelType     `json:"type"`
	Active             bool            `json:"active"`
	NullifyStocks      bool            `json:"nullify_stocks"`
	SpecialPriceName   string          `json:"special_price_name,omitempty"`
	MinimalPrice       decimal.Decimal `json:"minimal_price"`
	ProductTypes       []string        `json:"product_types,omitempty"`
	IntervalMinutes    int             `json:"interval_minutes"`
	UpdatePricesViaAPI bool            `json:"update_prices_via_api"`
	UpdateStocksViaAPI bool            `json:"update_stocks_via_api"`
	Shop               Shop            `json:"shop"`
	// Settings канально-специфичные параметры, см. APISettings
	Settings  json.RawMessage `json:"settings,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// APISettings параметры доступа к API маркетплейса
type APISettings struct {
	BaseURL             string `json:"api_url,omitempty"`
	CampaignID          int64  `json:"campaign_id"`
	Token               string `json:"token"`
	Currency            string `json:"currency,omitempty"`
	WarehouseID         int64  `json:"warehouse_id,omitempty"`
	ShippingLeadTime    int    `json:"shipping_lead_time,omitempty"` // в днях
	HiddenOfferComment  string `json:"hidden_offer_comment,omitempty"`
	HiddenOfferTTLHours int    `json:"hidden_offer_ttl_hours,omitempty"`
}

// Interval возвращает интервал перегенерации фида
func (m *Marketplace) Interval() time.Duration {
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// SupportsAPI сообщает, есть ли у канала API для скрытия предложений и отправки цен
func (m *Marketplace) SupportsAPI() bool {
	return m.Type == ChannelYandexMarket
}

// AcceptsProductType проверяет, подходит ли тип товара под конфигурацию.
// Пустой список типов означает, что подходят все товары.
func (m *Marketplace) AcceptsProductType(productType string) bool {
	if len(m.ProductTypes) == 0 {
		return true
	}
	for _, t := range m.ProductTypes {
		if strings.EqualFold(t, productType) {
			return true
		}
	}
	return false
}

// APISettings разбирает канально-специфичные параметры
func (m *Marketplace) APISettings() (*APISettings, error) {
	settings := &APISettings{Currency: "RUR"}
	if len(m.Settings) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(m.Settings, settings); err != nil {
		return nil, &ValidationError{Field: "settings", Message: fmt.Sprintf("некорректный JSON: %v", err)}
	}
	if settings.Currency == "" {
		settings.Currency = "RUR"
	}
	return settings, nil
}

// Validate проверяет конфигурацию перед сохранением
func (m *Marketplace) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return &ValidationError{Field: "name", Message: "название обязательно"}
	}
	if !m.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("неизвестный тип канала %q", m.Type)}
	}
	if m.IntervalMinutes < 0 {
		return &ValidationError{Field: "interval_minutes", Message: "интервал не может быть отрицательным"}
	}
	if m.MinimalPrice.IsNegative() {
		return &ValidationError{Field: "minimal_price", Message: "минимальная цена не может быть отрицательной"}
	}
	settings, err := m.APISettings()
	if err != nil {
		return err
	}
	if m.SupportsAPI() && (m.UpdatePricesViaAPI || m.UpdateStocksViaAPI) {
		if settings.CampaignID <= 0 {
			return &ValidationError{Field: "settings.campaign_id", Message: "для работы через API нужен идентификатор кампании"}
		}
		if settings.Token == "" {
			return &ValidationError{Field: "settings.token", Message: "для работы через API нужен токен"}
		}
	}
	if !m.SupportsAPI() && (m.UpdatePricesViaAPI || m.UpdateStocksViaAPI) {
		return &ValidationError{Field: "type", Message: "канал не поддерживает обновления через API"}
	}
	return nil
}
