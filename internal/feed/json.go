package feed

import (
	"encoding/json"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
)

type jsonCatalog struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Shop        models.Shop `json:"shop"`
	Currency    string      `json:"currency"`
	Categories  []Category  `json:"categories"`
	Offers      []Offer     `json:"offers"`
}

// JSONFormatter сериализует фид в JSON-каталог
type JSONFormatter struct{}

func (JSONFormatter) Extension() string { return ".json" }

func (JSONFormatter) Format(doc *Document) ([]byte, error) {
	return json.MarshalIndent(jsonCatalog{
		GeneratedAt: doc.Date.UTC(),
		Shop:        doc.Shop,
		Currency:    doc.Currency,
		Categories:  doc.Categories,
		Offers:      doc.Offers,
	}, "", "  ")
}
