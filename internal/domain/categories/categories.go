// Package categories определяет видимость категорий на маркетплейсах.
package categories

import "github.com/athebyme/gomarket-platform/internal/domain/models"

// IsBlocked сообщает, заблокирована ли категория для маркетплейса.
// Учитывается только собственная настройка категории, блокировка не наследуется.
func IsBlocked(c *models.Category, marketplaceID string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.MarketplaceSettings {
		if s.MarketplaceID == marketplaceID {
			return s.Blocked
		}
	}
	return false
}

// Visible сообщает, может ли категория попасть в выгрузку
func Visible(c *models.Category) bool {
	return c != nil && !c.IsDeleted
}

// Descendants возвращает всех потомков категории с кодом rootCode.
// Обход идет по ссылкам на родителя, циклы в дереве не приводят к зацикливанию.
func Descendants(all []*models.Category, rootCode string) []*models.Category {
	children := make(map[string][]*models.Category, len(all))
	for _, c := range all {
		if c.ParentCode != "" {
			children[c.ParentCode] = append(children[c.ParentCode], c)
		}
	}

	visited := map[string]bool{rootCode: true}
	queue := []string{rootCode}
	var result []*models.Category

	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		for _, child := range children[code] {
			if visited[child.Code] {
				continue
			}
			visited[child.Code] = true
			result = append(result, child)
			queue = append(queue, child.Code)
		}
	}

	return result
}
