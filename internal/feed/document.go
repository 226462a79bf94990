package feed

import (
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// SkipReason причина исключения товара из фида
type SkipReason string

const (
	SkipDeleted     SkipReason = "deleted"
	SkipNoArticul   SkipReason = "no_articul"
	SkipNoCategory  SkipReason = "no_category"
	SkipNoPrice     SkipReason = "no_price"
	SkipProductType SkipReason = "product_type"
)

// Category категория в документе фида
type Category struct {
	ID       int    `json:"id"`
	ParentID *int   `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Code     string `json:"-"`
}

// Param произвольный параметр предложения
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Offer предложение в документе фида. Nil-поля не выгружаются.
type Offer struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	CategoryID      int                `json:"category_id"`
	Price           *decimal.Decimal   `json:"price,omitempty"`
	Stock           *int               `json:"stock,omitempty"`
	Available       *bool              `json:"available,omitempty"`
	Barcode         string             `json:"barcode,omitempty"`
	Vendor          string             `json:"vendor,omitempty"`
	Description     string             `json:"description,omitempty"`
	Weight          float64            `json:"weight,omitempty"`
	Dimensions      *models.Dimensions `json:"dimensions,omitempty"`
	CountryOfOrigin string             `json:"country_of_origin,omitempty"`
	Pictures        []string           `json:"pictures,omitempty"`
	Params          []Param            `json:"params,omitempty"`

	ZeroReason pricing.ZeroReason `json:"-"`
}

// Outlet склад, на котором лежит остаток
type Outlet struct {
	ID int64
}

// Delivery условия доставки для всех предложений
type Delivery struct {
	Days int
}

// Document готовый фид одной конфигурации за один запуск
type Document struct {
	Date         time.Time
	Shop         models.Shop
	Currency     string
	Capabilities Capabilities
	Outlet       *Outlet
	Delivery     *Delivery
	Categories   []Category
	Offers       []Offer

	// Warnings проблемы качества данных, например циклы в дереве категорий
	Warnings []string
	Skipped  map[SkipReason]int
}
