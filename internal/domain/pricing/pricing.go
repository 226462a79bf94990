// Package pricing вычисляет цену, остаток и доступность товара для конкретного маркетплейса.
package pricing

import (
	"strings"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/shopspring/decimal"
)

// ZeroReason причина обнуления остатка
type ZeroReason string

const (
	ReasonNone              ZeroReason = ""
	ReasonNullified         ZeroReason = "nullified"
	ReasonCategoryBlocked   ZeroReason = "category_blocked"
	ReasonBelowMinimalPrice ZeroReason = "below_minimal_price"
)

// Override настройки товара для маркетплейса
type Override struct {
	NullifyStock       bool
	IgnoreRestrictions bool
	ExternalIdentifier string
}

// NormalizeName приводит название спеццены к нижнему регистру и схлопывает пробелы
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// EffectivePrice возвращает спеццену с совпадающим названием или базовую цену.
// ok == false означает, что цены нет и товар нельзя выставлять.
func EffectivePrice(base decimal.Decimal, specials []models.SpecialPrice, specialPriceName string) (decimal.Decimal, bool) {
	price := base
	if name := NormalizeName(specialPriceName); name != "" {
		for _, sp := range specials {
			if NormalizeName(sp.Name) == name {
				price = sp.Price
				break
			}
		}
	}
	if !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

// ResolveSetting находит настройку товара для маркетплейса.
// Отсутствие настройки не ошибка: вызывающий использует значения конфигурации.
func ResolveSetting(settings []models.MarketplaceSetting, marketplaceID string) (Override, bool) {
	for _, s := range settings {
		if s.MarketplaceID == marketplaceID {
			return Override{
				NullifyStock:       s.NullifyStock,
				IgnoreRestrictions: s.IgnoreRestrictions,
				ExternalIdentifier: s.ExternalIdentifier,
			}, true
		}
	}
	return Override{}, false
}

// StockInput входные данные правила обнуления остатка
type StockInput struct {
	Stock               int
	NullifyStock        bool
	ConfigNullifyStocks bool
	CategoryBlocked     bool
	IgnoreRestrictions  bool
	Price               decimal.Decimal
	MinimalPrice        decimal.Decimal
}

// ResolveStock применяет правила обнуления по порядку, срабатывает первое подходящее.
// IgnoreRestrictions снимает блокировку категории и порог цены, но не принудительное обнуление.
func ResolveStock(in StockInput) (int, ZeroReason) {
	switch {
	case in.NullifyStock || in.ConfigNullifyStocks:
		return 0, ReasonNullified
	case in.CategoryBlocked && !in.IgnoreRestrictions:
		return 0, ReasonCategoryBlocked
	case in.MinimalPrice.IsPositive() && in.Price.LessThan(in.MinimalPrice) && !in.IgnoreRestrictions:
		return 0, ReasonBelowMinimalPrice
	}
	if in.Stock < 0 {
		return 0, ReasonNone
	}
	return in.Stock, ReasonNone
}

// View производное представление товара для маркетплейса
type View struct {
	Price     decimal.Decimal
	Stock     int
	Available bool
	Reason    ZeroReason
	Override  Override
}

// Derive вычисляет цену, остаток и доступность товара.
// ok == false, если у товара нет цены.
func Derive(p *models.Product, mp *models.Marketplace, categoryBlocked bool) (View, bool) {
	price, ok := EffectivePrice(p.BasePrice, p.SpecialPrices, mp.SpecialPriceName)
	if !ok {
		return View{}, false
	}
	override, _ := ResolveSetting(p.MarketplaceSettings, mp.ID)
	stock, reason := ResolveStock(StockInput{
		Stock:               p.Stock,
		NullifyStock:        override.NullifyStock,
		ConfigNullifyStocks: mp.NullifyStocks,
		CategoryBlocked:     categoryBlocked,
		IgnoreRestrictions:  override.IgnoreRestrictions,
		Price:               price,
		MinimalPrice:        mp.MinimalPrice,
	})
	return View{
		Price:     price,
		Stock:     stock,
		Available: stock > 0,
		Reason:    reason,
		Override:  override,
	}, true
}
