// Package marketapi клиент API маркетплейса: маппинг SKU, скрытие предложений и отправка цен.
package marketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-platform/pkg/models"
	"golang.org/x/oauth2"
)

const (
	mappingPageSize = 200
	hiddenPageSize  = 500
)

type paging struct {
	NextPageToken string `json:"nextPageToken,omitempty"`
}

type envelope[T any] struct {
	Status string        `json:"status"`
	Result T             `json:"result"`
	Errors []ErrorDetail `json:"errors,omitempty"`
}

type mappingEntry struct {
	Offer struct {
		ShopSKU string `json:"shopSku"`
	} `json:"offer"`
	Mapping *struct {
		MarketSKU int64 `json:"marketSku"`
	} `json:"mapping,omitempty"`
}

type mappingResult struct {
	Paging              paging         `json:"paging"`
	OfferMappingEntries []mappingEntry `json:"offerMappingEntries"`
}

type hiddenOfferDTO struct {
	SKU      string `json:"sku"`
	Comment  string `json:"comment,omitempty"`
	TTLHours int    `json:"ttlHours,omitempty"`
}

type hiddenResult struct {
	Paging       paging           `json:"paging"`
	HiddenOffers []hiddenOfferDTO `json:"hiddenOffers"`
}

type hiddenOffersRequest struct {
	HiddenOffers []hiddenOfferDTO `json:"hiddenOffers"`
}

type priceDTO struct {
	CurrencyID string `json:"currencyId"`
	Value      string `json:"value"`
}

type offerPriceDTO struct {
	SKU   string   `json:"sku"`
	Price priceDTO `json:"price"`
}

type pricesRequest struct {
	Offers []offerPriceDTO `json:"offers"`
}

// Client клиент API маркетплейса
type Client struct {
	exec           *Executor
	defaultBaseURL string
}

// NewClient создает клиент. defaultBaseURL используется, если в настройках конфигурации адрес не задан.
func NewClient(exec *Executor, defaultBaseURL string) *Client {
	return &Client{exec: exec, defaultBaseURL: strings.TrimRight(defaultBaseURL, "/")}
}

// SKUMappings возвращает соответствия артикулов SKU маркетплейса.
// Пустой shopSKUs означает все предложения кампании.
func (c *Client) SKUMappings(ctx context.Context, api *models.APISettings, shopSKUs []string) ([]pkgmodels.OfferMapping, error) {
	entries, err := FetchAll(ctx, func(ctx context.Context, token string) (Page[mappingEntry], error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(mappingPageSize))
		if token != "" {
			q.Set("page_token", token)
		}
		for _, sku := range shopSKUs {
			q.Add("shop_sku", sku)
		}

		var resp envelope[mappingResult]
		if err := c.do(ctx, api, http.MethodGet, "offer-mapping-entries", q, nil, &resp); err != nil {
			return Page[mappingEntry]{}, err
		}
		return Page[mappingEntry]{Items: resp.Result.OfferMappingEntries, NextToken: resp.Result.Paging.NextPageToken}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sku mappings: %w", err)
	}

	mappings := make([]pkgmodels.OfferMapping, 0, len(entries))
	for _, e := range entries {
		if e.Mapping == nil || e.Mapping.MarketSKU == 0 || e.Offer.ShopSKU == "" {
			continue
		}
		mappings = append(mappings, pkgmodels.OfferMapping{
			ShopSKU:   e.Offer.ShopSKU,
			MarketSKU: strconv.FormatInt(e.Mapping.MarketSKU, 10),
		})
	}
	return mappings, nil
}

// HiddenOffers возвращает все скрытые предложения кампании
func (c *Client) HiddenOffers(ctx context.Context, api *models.APISettings) ([]pkgmodels.HiddenOffer, error) {
	items, err := FetchAll(ctx, func(ctx context.Context, token string) (Page[hiddenOfferDTO], error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(hiddenPageSize))
		if token != "" {
			q.Set("page_token", token)
		}

		var resp envelope[hiddenResult]
		if err := c.do(ctx, api, http.MethodGet, "hidden-offers", q, nil, &resp); err != nil {
			return Page[hiddenOfferDTO]{}, err
		}
		return Page[hiddenOfferDTO]{Items: resp.Result.HiddenOffers, NextToken: resp.Result.Paging.NextPageToken}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch hidden offers: %w", err)
	}

	offers := make([]pkgmodels.HiddenOffer, 0, len(items))
	for _, h := range items {
		offers = append(offers, pkgmodels.HiddenOffer{SKU: h.SKU, Comment: h.Comment, TTLHours: h.TTLHours})
	}
	return offers, nil
}

// HideOffers скрывает предложения
func (c *Client) HideOffers(ctx context.Context, api *models.APISettings, offers []pkgmodels.HiddenOffer) error {
	if len(offers) == 0 {
		return nil
	}
	req := hiddenOffersRequest{HiddenOffers: make([]hiddenOfferDTO, 0, len(offers))}
	for _, o := range offers {
		req.HiddenOffers = append(req.HiddenOffers, hiddenOfferDTO{SKU: o.SKU, Comment: o.Comment, TTLHours: o.TTLHours})
	}
	return c.do(ctx, api, http.MethodPost, "hidden-offers", nil, req, nil)
}

// ShowOffers возвращает скрытые предложения в продажу
func (c *Client) ShowOffers(ctx context.Context, api *models.APISettings, skus []string) error {
	if len(skus) == 0 {
		return nil
	}
	req := hiddenOffersRequest{HiddenOffers: make([]hiddenOfferDTO, 0, len(skus))}
	for _, sku := range skus {
		req.HiddenOffers = append(req.HiddenOffers, hiddenOfferDTO{SKU: sku})
	}
	return c.do(ctx, api, http.MethodDelete, "hidden-offers", nil, req, nil)
}

// PushPrices отправляет цены. Ответ об отсутствии маппинга возвращается как *models.MappingNotFoundError.
func (c *Client) PushPrices(ctx context.Context, api *models.APISettings, prices []pkgmodels.PriceUpdate) error {
	if len(prices) == 0 {
		return nil
	}
	req := pricesRequest{Offers: make([]offerPriceDTO, 0, len(prices))}
	for _, p := range prices {
		currency := p.Currency
		if currency == "" {
			currency = api.Currency
		}
		req.Offers = append(req.Offers, offerPriceDTO{
			SKU:   p.SKU,
			Price: priceDTO{CurrencyID: currency, Value: p.Price.String()},
		})
	}
	return c.do(ctx, api, http.MethodPost, "offer-prices/updates", nil, req, nil)
}

func (c *Client) do(ctx context.Context, api *models.APISettings, method, path string, query url.Values, body any, out any) error {
	if api == nil || api.CampaignID <= 0 {
		return &models.ValidationError{Field: "settings.campaign_id", Message: "не задан идентификатор кампании"}
	}

	base := c.defaultBaseURL
	if api.BaseURL != "" {
		base = strings.TrimRight(api.BaseURL, "/")
	}
	endpoint := fmt.Sprintf("%s/campaigns/%d/%s", base, api.CampaignID, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	(&oauth2.Token{AccessToken: api.Token, TokenType: "Bearer"}).SetAuthHeader(req)

	if out == nil {
		out = &envelope[json.RawMessage]{}
	}
	if err := c.exec.DoJSON(ctx, req, strconv.FormatInt(api.CampaignID, 10), out); err != nil {
		return err
	}

	if status, ok := out.(interface{ failed() []ErrorDetail }); ok {
		if details := status.failed(); details != nil {
			return ClassifyError(http.StatusOK, mustMarshal(details))
		}
	}
	return nil
}

func (e *envelope[T]) failed() []ErrorDetail {
	if strings.EqualFold(e.Status, "ERROR") {
		if e.Errors == nil {
			return []ErrorDetail{}
		}
		return e.Errors
	}
	return nil
}

func mustMarshal(details []ErrorDetail) []byte {
	data, _ := json.Marshal(struct {
		Errors []ErrorDetail `json:"errors"`
	}{Errors: details})
	return data
}
