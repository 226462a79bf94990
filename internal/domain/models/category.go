package models

import "time"

// MarketplaceCategorySetting настройки категории для маркетплейса
type MarketplaceCategorySetting struct {
	MarketplaceID string `json:"marketplace_id"`
	Blocked       bool   `json:"blocked"`
}

// Category представляет категорию каталога. Дерево строится по кодам ERP.
type Category struct {
	ID                  string                       `json:"id"`
	Name                string                       `json:"name"`
	Code                string                       `json:"code"`
	ParentCode          string                       `json:"parent_code,omitempty"`
	IsDeleted           bool                         `json:"is_deleted"`
	MarketplaceSettings []MarketplaceCategorySetting `json:"marketplace_settings,omitempty"`
	UpdatedAt           time.Time                    `json:"updated_at"`
}

// SetBlocked устанавливает флаг блокировки категории для маркетплейса без дублирования записей
func (c *Category) SetBlocked(marketplaceID string, blocked bool) {
	for i := range c.MarketplaceSettings {
		if c.MarketplaceSettings[i].MarketplaceID == marketplaceID {
			c.MarketplaceSettings[i].Blocked = blocked
			return
		}
	}
	c.MarketplaceSettings = append(c.MarketplaceSettings, MarketplaceCategorySetting{
		MarketplaceID: marketplaceID,
		Blocked:       blocked,
	})
}
