package feed

import (
	"encoding/xml"
	"strconv"
)

const ymlDateLayout = "2006-01-02 15:04"

type ymlCatalog struct {
	XMLName xml.Name `xml:"yml_catalog"`
	Date    string   `xml:"date,attr"`
	Shop    ymlShop  `xml:"shop"`
}

type ymlShop struct {
	Name            string              `xml:"name,omitempty"`
	Company         string              `xml:"company,omitempty"`
	URL             string              `xml:"url,omitempty"`
	Currencies      []ymlCurrency       `xml:"currencies>currency"`
	Categories      []ymlCategory       `xml:"categories>category"`
	DeliveryOptions *ymlDeliveryOptions `xml:"delivery-options,omitempty"`
	Offers          []ymlOffer          `xml:"offers>offer"`
}

type ymlCurrency struct {
	ID   string `xml:"id,attr"`
	Rate string `xml:"rate,attr"`
}

type ymlCategory struct {
	ID       int    `xml:"id,attr"`
	ParentID string `xml:"parentId,attr,omitempty"`
	Name     string `xml:",chardata"`
}

// Обертки необязательных списков: omitempty не действует на путь a>b
type ymlDeliveryOptions struct {
	Option []ymlDelivery `xml:"option"`
}

type ymlOutlets struct {
	Outlet []ymlOutlet `xml:"outlet"`
}

type ymlDelivery struct {
	Cost string `xml:"cost,attr"`
	Days string `xml:"days,attr"`
}

type ymlOutlet struct {
	ID      int64 `xml:"id,attr"`
	InStock int   `xml:"instock,attr"`
}

type ymlParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type ymlOffer struct {
	ID              string      `xml:"id,attr"`
	Available       string      `xml:"available,attr,omitempty"`
	Name            string      `xml:"name"`
	CategoryID      int         `xml:"categoryId"`
	Price           string      `xml:"price,omitempty"`
	CurrencyID      string      `xml:"currencyId,omitempty"`
	Count           string      `xml:"count,omitempty"`
	Outlets         *ymlOutlets `xml:"outlets,omitempty"`
	Pictures        []string    `xml:"picture"`
	Vendor          string      `xml:"vendor,omitempty"`
	Barcode         string      `xml:"barcode,omitempty"`
	Description     string      `xml:"description,omitempty"`
	CountryOfOrigin string      `xml:"country_of_origin,omitempty"`
	Weight          string      `xml:"weight,omitempty"`
	Dimensions      string      `xml:"dimensions,omitempty"`
	Params          []ymlParam  `xml:"param"`
}

// YMLFormatter сериализует фид в YML (Yandex Market Language)
type YMLFormatter struct{}

func (YMLFormatter) Extension() string { return ".xml" }

func (YMLFormatter) Format(doc *Document) ([]byte, error) {
	catalog := ymlCatalog{
		Date: doc.Date.Format(ymlDateLayout),
		Shop: ymlShop{
			Name:       doc.Shop.Name,
			Company:    doc.Shop.Company,
			URL:        doc.Shop.URL,
			Currencies: []ymlCurrency{{ID: doc.Currency, Rate: "1"}},
		},
	}

	for _, c := range doc.Categories {
		cat := ymlCategory{ID: c.ID, Name: c.Name}
		if c.ParentID != nil {
			cat.ParentID = strconv.Itoa(*c.ParentID)
		}
		catalog.Shop.Categories = append(catalog.Shop.Categories, cat)
	}

	if doc.Delivery != nil {
		catalog.Shop.DeliveryOptions = &ymlDeliveryOptions{
			Option: []ymlDelivery{{Cost: "0", Days: strconv.Itoa(doc.Delivery.Days)}},
		}
	}

	for _, o := range doc.Offers {
		catalog.Shop.Offers = append(catalog.Shop.Offers, ymlOfferFrom(doc, o))
	}

	body, err := xml.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func ymlOfferFrom(doc *Document, o Offer) ymlOffer {
	offer := ymlOffer{
		ID:              o.ID,
		Name:            o.Name,
		CategoryID:      o.CategoryID,
		Pictures:        o.Pictures,
		Vendor:          o.Vendor,
		Barcode:         o.Barcode,
		Description:     o.Description,
		CountryOfOrigin: o.CountryOfOrigin,
	}
	if o.Available != nil {
		offer.Available = strconv.FormatBool(*o.Available)
	}
	if o.Price != nil {
		offer.Price = o.Price.String()
		offer.CurrencyID = doc.Currency
	}
	if o.Stock != nil {
		offer.Count = strconv.Itoa(*o.Stock)
		if doc.Outlet != nil {
			offer.Outlets = &ymlOutlets{Outlet: []ymlOutlet{{ID: doc.Outlet.ID, InStock: *o.Stock}}}
		}
	}
	if o.Weight > 0 {
		offer.Weight = formatFloat(o.Weight)
	}
	if o.Dimensions != nil {
		offer.Dimensions = formatFloat(o.Dimensions.Length) + "/" +
			formatFloat(o.Dimensions.Width) + "/" + formatFloat(o.Dimensions.Height)
	}
	for _, p := range o.Params {
		offer.Params = append(offer.Params, ymlParam{Name: p.Name, Value: p.Value})
	}
	return offer
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
