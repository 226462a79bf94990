// Package feed строит документ фида маркетплейса из категорий и товаров каталога.
package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/categories"
	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/domain/pricing"
)

// Builder накапливает категории и товары одного запуска генерации.
// Не предназначен для конкурентного использования.
type Builder struct {
	marketplace  *models.Marketplace
	capabilities Capabilities
	imageBaseURL string

	categories []*models.Category
	ids        map[string]int
	byCode     map[string]*models.Category
	products   []*models.Product
}

// NewBuilder создает построитель фида для конфигурации маркетплейса
func NewBuilder(mp *models.Marketplace, imageBaseURL string) *Builder {
	return &Builder{
		marketplace:  mp,
		capabilities: CapabilitiesFor(mp.Type),
		imageBaseURL: strings.TrimRight(imageBaseURL, "/"),
		ids:          make(map[string]int),
		byCode:       make(map[string]*models.Category),
	}
}

// AddCategory присваивает категории порядковый номер начиная с 1 в порядке добавления.
// Удаленные категории номер не получают, повторный код сохраняет первый номер.
func (b *Builder) AddCategory(c *models.Category) {
	if !categories.Visible(c) || c.Code == "" {
		return
	}
	if _, ok := b.ids[c.Code]; ok {
		return
	}
	b.categories = append(b.categories, c)
	b.ids[c.Code] = len(b.categories)
	b.byCode[c.Code] = c
}

// AddProduct добавляет товар в буфер
func (b *Builder) AddProduct(p *models.Product) {
	if p != nil {
		b.products = append(b.products, p)
	}
}

// Build собирает документ. Повторный вызов дает те же номера категорий.
func (b *Builder) Build(now time.Time) *Document {
	doc := &Document{
		Date:         now,
		Shop:         b.marketplace.Shop,
		Currency:     "RUR",
		Capabilities: b.capabilities,
		Skipped:      make(map[SkipReason]int),
	}

	if settings, err := b.marketplace.APISettings(); err == nil {
		doc.Currency = settings.Currency
		if b.capabilities.EmitOutlets && settings.WarehouseID > 0 && !b.marketplace.UpdateStocksViaAPI {
			doc.Outlet = &Outlet{ID: settings.WarehouseID}
		}
		if b.capabilities.EmitDeliveryOptions && settings.ShippingLeadTime > 0 {
			doc.Delivery = &Delivery{Days: settings.ShippingLeadTime}
		}
	}

	doc.Categories = make([]Category, 0, len(b.categories))
	for _, c := range b.categories {
		cat := Category{ID: b.ids[c.Code], Name: c.Name, Code: c.Code}
		if parentID, ok := b.ids[c.ParentCode]; ok && c.ParentCode != "" {
			cat.ParentID = &parentID
		}
		doc.Categories = append(doc.Categories, cat)
	}
	doc.Warnings = b.detectCycles()

	doc.Offers = make([]Offer, 0, len(b.products))
	for _, p := range b.products {
		offer, reason, ok := b.offer(p)
		if !ok {
			doc.Skipped[reason]++
			continue
		}
		doc.Offers = append(doc.Offers, offer)
	}

	return doc
}

func (b *Builder) offer(p *models.Product) (Offer, SkipReason, bool) {
	if p.IsDeleted {
		return Offer{}, SkipDeleted, false
	}
	if strings.TrimSpace(p.Articul) == "" {
		return Offer{}, SkipNoArticul, false
	}
	if !b.marketplace.AcceptsProductType(p.Type) {
		return Offer{}, SkipProductType, false
	}
	categoryID, ok := b.ids[p.CategoryCode]
	if p.CategoryCode == "" || !ok {
		return Offer{}, SkipNoCategory, false
	}

	blocked := categories.IsBlocked(b.byCode[p.CategoryCode], b.marketplace.ID)
	view, ok := pricing.Derive(p, b.marketplace, blocked)
	if !ok {
		return Offer{}, SkipNoPrice, false
	}

	offer := Offer{
		ID:              p.Articul,
		Name:            p.Name,
		CategoryID:      categoryID,
		Barcode:         p.Barcode,
		Vendor:          p.Brand,
		Description:     p.Description,
		CountryOfOrigin: p.CountryOfOrigin,
		ZeroReason:      view.Reason,
	}
	if !b.marketplace.UpdatePricesViaAPI {
		price := view.Price
		offer.Price = &price
	}
	if !b.marketplace.UpdateStocksViaAPI {
		stock, available := view.Stock, view.Available
		offer.Stock = &stock
		offer.Available = &available
	}
	if p.Weight > 0 {
		offer.Weight = p.Weight
	}
	if !p.Dimensions.IsZero() {
		dims := p.Dimensions
		offer.Dimensions = &dims
	}
	for _, img := range p.Images {
		if img = strings.TrimSpace(img); img != "" {
			offer.Pictures = append(offer.Pictures, b.pictureURL(img))
		}
	}
	for _, ch := range p.Characteristics {
		if strings.TrimSpace(ch.Key) == "" || strings.TrimSpace(ch.Value) == "" {
			continue
		}
		offer.Params = append(offer.Params, Param{Name: ch.Key, Value: ch.Value})
	}

	return offer, "", true
}

func (b *Builder) pictureURL(img string) string {
	if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") || b.imageBaseURL == "" {
		return img
	}
	return b.imageBaseURL + "/" + strings.TrimLeft(img, "/")
}

// detectCycles находит циклы в ссылках на родителей среди добавленных категорий.
// Циклы не исправляются, только попадают в предупреждения.
func (b *Builder) detectCycles() []string {
	var warnings []string
	reported := make(map[string]bool)

	for _, c := range b.categories {
		position := make(map[string]int)
		var path []string

		for code := c.Code; code != ""; {
			if pos, seen := position[code]; seen {
				cycle := path[pos:]
				key := cycleKey(cycle)
				if !reported[key] {
					reported[key] = true
					warnings = append(warnings, fmt.Sprintf("цикл в дереве категорий: %s -> %s",
						strings.Join(cycle, " -> "), code))
				}
				break
			}
			position[code] = len(path)
			path = append(path, code)

			next, ok := b.byCode[code]
			if !ok {
				break
			}
			code = next.ParentCode
			if _, added := b.byCode[code]; !added {
				break
			}
		}
	}

	return warnings
}

func cycleKey(cycle []string) string {
	sorted := append([]string(nil), cycle...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
